package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	DATABASE_FILE = "stakedash-%s.db"

	CONFIG_BUCKET        = "config"
	ENDPOINTS_BUCKET     = "endpoints"
	NOTIFICATIONS_BUCKET = "notifs"
	EXPOSURES_BUCKET     = "exposures"
	UNCLAIMED_BUCKET     = "unclaimed"
	SYNCED_BUCKET        = "synced"
)

type Storage struct {
	*bolt.DB
}

// InitStorage opens, or creates, the database for the network in dataDir
// and makes sure the top-level buckets exist
func InitStorage(dataDir, network string) (*Storage, error) {

	dbFile := filepath.Join(dataDir, fmt.Sprintf(DATABASE_FILE, network))

	db, err := bolt.Open(dbFile, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to init db")
	}

	// Ensure buckets exist
	err = db.Update(func(tx *bolt.Tx) error {

		cfgBucket, err := tx.CreateBucketIfNotExists([]byte(CONFIG_BUCKET))
		if err != nil {
			return errors.Wrap(err, "Cannot create config bucket")
		}

		if _, err := cfgBucket.CreateBucketIfNotExists([]byte(ENDPOINTS_BUCKET)); err != nil {
			return errors.Wrap(err, "Cannot create endpoints bucket")
		}

		if _, err := cfgBucket.CreateBucketIfNotExists([]byte(NOTIFICATIONS_BUCKET)); err != nil {
			return errors.Wrap(err, "Cannot create notifications bucket")
		}

		for _, b := range []string{EXPOSURES_BUCKET, UNCLAIMED_BUCKET, SYNCED_BUCKET} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return errors.Wrapf(err, "Cannot create %s bucket", b)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.WithField("File", dbFile).Debug("Database opened")

	return &Storage{db}, nil
}

func (s *Storage) Close() {
	if err := s.DB.Close(); err != nil {
		log.WithError(err).Error("Unable to close database")
		return
	}
	log.Info("Database closed")
}

// Itob returns an 8-byte big endian representation of v.
func Itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// Btoi returns the int of an 8-byte big endian slice
func Btoi(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}

package storage

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Era exposure records are stored as
//   exposures -> network -> era -> account = JSON
// The network bucket's sequence holds the most recent window end era.
// Era buckets below that marker are outside the supported window and get pruned.

// GetEraExposure returns the raw exposure record of the account for the era;
// nil if none has been saved
func (s *Storage) GetEraExposure(network string, era int, account string) ([]byte, error) {
	return s.getEraRecord(EXPOSURES_BUCKET, network, era, account)
}

// SaveEraExposure saves, or overwrites, the raw exposure record of the account for the era
func (s *Storage) SaveEraExposure(network string, era int, account string, exposure []byte, windowEndEra int) error {
	return s.saveEraRecord(EXPOSURES_BUCKET, network, era, account, exposure, windowEndEra)
}

// GetWindowEndEra returns the window end era marker of the bucket for the network
func (s *Storage) GetWindowEndEra(recordBucket, network string) (int, error) {

	var endEra uint64

	err := s.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		if b == nil {
			return errors.Errorf("Unable to locate %s bucket", recordBucket)
		}

		nb := b.Bucket([]byte(network))
		if nb == nil {
			return nil
		}
		endEra = nb.Sequence()

		return nil
	})

	return int(endEra), err
}

func (s *Storage) getEraRecord(recordBucket, network string, era int, account string) ([]byte, error) {

	var record []byte

	err := s.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		if b == nil {
			return errors.Errorf("Unable to locate %s bucket", recordBucket)
		}

		nb := b.Bucket([]byte(network))
		if nb == nil {
			return nil
		}

		eb := nb.Bucket(Itob(era))
		if eb == nil {
			return nil
		}

		// Values are only valid within the transaction
		if v := eb.Get([]byte(account)); v != nil {
			record = make([]byte, len(v))
			copy(record, v)
		}

		return nil
	})

	return record, err
}

func (s *Storage) saveEraRecord(recordBucket, network string, era int, account string, record []byte, windowEndEra int) error {

	return s.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(recordBucket))
		if b == nil {
			return errors.Errorf("Unable to locate %s bucket", recordBucket)
		}

		nb, err := b.CreateBucketIfNotExists([]byte(network))
		if err != nil {
			return errors.Wrap(err, "Unable to create network bucket")
		}

		// Only move the marker forward; older windows don't prune newer eras
		if windowEndEra > int(nb.Sequence()) {
			if err := nb.SetSequence(uint64(windowEndEra)); err != nil {
				return err
			}

			if err := pruneEras(nb, windowEndEra); err != nil {
				return errors.Wrap(err, "Unable to prune era buckets")
			}
		}

		eb, err := nb.CreateBucketIfNotExists(Itob(era))
		if err != nil {
			return errors.Wrap(err, "Unable to create era bucket")
		}

		return eb.Put([]byte(account), record)
	})
}

// pruneEras deletes all era buckets lower than endEra
func pruneEras(b *bolt.Bucket, endEra int) error {

	var stale [][]byte

	c := b.Cursor()
	for k, _ := c.First(); k != nil && Btoi(k) < endEra; k, _ = c.Next() {
		key := make([]byte, len(k))
		copy(key, k)
		stale = append(stale, key)
	}

	for _, k := range stale {
		if err := b.DeleteBucket(k); err != nil {
			return err
		}
	}

	return nil
}

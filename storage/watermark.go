package storage

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// The synced bucket keeps, per network, the result of the most recent
// completed payouts sync of each account. The network bucket's sequence
// is the highest active era any account was synced at.

func (s *Storage) GetSyncedWatermark(network string) (int, error) {

	var watermark uint64

	err := s.View(func(tx *bolt.Tx) error {
		nb := tx.Bucket([]byte(SYNCED_BUCKET)).Bucket([]byte(network))
		if nb != nil {
			watermark = nb.Sequence()
		}
		return nil
	})

	return int(watermark), err
}

// GetSyncRecord returns the raw record of the last sync for the account; nil if never synced
func (s *Storage) GetSyncRecord(network, account string) ([]byte, error) {

	var record []byte

	err := s.View(func(tx *bolt.Tx) error {
		nb := tx.Bucket([]byte(SYNCED_BUCKET)).Bucket([]byte(network))
		if nb == nil {
			return nil
		}

		if v := nb.Get([]byte(account)); v != nil {
			record = make([]byte, len(v))
			copy(record, v)
		}

		return nil
	})

	return record, err
}

func (s *Storage) RecordSync(network, account string, activeEra int, record []byte) error {

	return s.Update(func(tx *bolt.Tx) error {
		nb, err := tx.Bucket([]byte(SYNCED_BUCKET)).CreateBucketIfNotExists([]byte(network))
		if err != nil {
			return errors.Wrap(err, "Unable to create synced network bucket")
		}

		if uint64(activeEra) > nb.Sequence() {
			if err := nb.SetSequence(uint64(activeEra)); err != nil { // Record our watermark
				return err
			}
		}

		return nb.Put([]byte(account), record) // Save the account:record
	})
}

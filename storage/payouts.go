package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Unclaimed payouts share the era record layout of exposures
//   unclaimed -> network -> era -> account = JSON validator => amount

// GetUnclaimedPayouts returns the raw validator => amount map of the account for the era
func (s *Storage) GetUnclaimedPayouts(network string, era int, account string) ([]byte, error) {
	return s.getEraRecord(UNCLAIMED_BUCKET, network, era, account)
}

func (s *Storage) SaveUnclaimedPayouts(network string, era int, account string, payouts []byte, windowEndEra int) error {
	return s.saveEraRecord(UNCLAIMED_BUCKET, network, era, account, payouts, windowEndEra)
}

// GetUnclaimedPayoutsAll returns every saved era record of the account, keyed by era
func (s *Storage) GetUnclaimedPayoutsAll(network, account string) (map[int]json.RawMessage, error) {

	eraPayouts := make(map[int]json.RawMessage)

	err := s.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(UNCLAIMED_BUCKET))
		if b == nil {
			return errors.New("Unable to locate unclaimed payouts bucket")
		}

		nb := b.Bucket([]byte(network))
		if nb == nil {
			return nil
		}

		c := nb.Cursor()

		for k, _ := c.First(); k != nil; k, _ = c.Next() {

			// keys are era numbers, which are buckets of data
			eraBucket := nb.Bucket(k)
			if eraBucket == nil {
				continue
			}

			v := eraBucket.Get([]byte(account))
			if v == nil {
				continue
			}

			record := make(json.RawMessage, len(v))
			copy(record, v)
			eraPayouts[Btoi(k)] = record
		}

		return nil
	})

	return eraPayouts, err
}

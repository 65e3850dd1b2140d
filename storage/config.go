package storage

import (
	bolt "go.etcd.io/bbolt"
)

const (
	ACTIVE_ACCOUNT = "account"
)

func (s *Storage) GetActiveAccount() (string, error) {

	var account string

	err := s.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(CONFIG_BUCKET))
		account = string(b.Get([]byte(ACTIVE_ACCOUNT)))

		return nil
	})

	return account, err
}

func (s *Storage) SetActiveAccount(account string) error {

	return s.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(CONFIG_BUCKET))
		return b.Put([]byte(ACTIVE_ACCOUNT), []byte(account))
	})
}

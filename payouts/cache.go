package payouts

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"stakedash/exposure"
	"stakedash/metrics"
)

// ExposureCache keeps resolved exposures and computed payouts across runs.
// Puts overwrite. Lookup failures read as misses.
type ExposureCache interface {
	HasEraExposure(network string, era uint32, account string) bool
	GetEraExposure(network string, era uint32, account string) (exposure.EraExposure, bool)
	PutEraExposure(network string, era uint32, account string, record exposure.EraExposure, windowEndEra uint32)
	PutUnclaimedPayouts(network string, era uint32, account string, payouts map[string]decimal.Decimal, windowEndEra uint32)
}

// EraRecordStore is the persistent backing of the cache, satisfied by *storage.Storage
type EraRecordStore interface {
	GetEraExposure(network string, era int, account string) ([]byte, error)
	SaveEraExposure(network string, era int, account string, exposure []byte, windowEndEra int) error
	SaveUnclaimedPayouts(network string, era int, account string, payouts []byte, windowEndEra int) error
}

// PersistentCache fronts an EraRecordStore with an in-memory LRU of exposures
type PersistentCache struct {
	store  EraRecordStore
	recent *lru.Cache
}

var _ ExposureCache = (*PersistentCache)(nil)

func NewPersistentCache(store EraRecordStore, size int) (*PersistentCache, error) {

	recent, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to create exposure LRU")
	}

	return &PersistentCache{
		store:  store,
		recent: recent,
	}, nil
}

func cacheKey(network string, era uint32, account string) string {
	return fmt.Sprintf("%s/%d/%s", network, era, account)
}

func (c *PersistentCache) HasEraExposure(network string, era uint32, account string) bool {
	_, ok := c.GetEraExposure(network, era, account)
	return ok
}

func (c *PersistentCache) GetEraExposure(network string, era uint32, account string) (exposure.EraExposure, bool) {

	key := cacheKey(network, era, account)

	if v, ok := c.recent.Get(key); ok {
		metrics.CacheLookup(true)
		return v.(exposure.EraExposure), true
	}

	raw, err := c.store.GetEraExposure(network, int(era), account)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"Network": network, "Era": era, "Account": account,
		}).Error("Unable to read era exposure")
		metrics.CacheLookup(false)
		return nil, false
	}

	if raw == nil {
		metrics.CacheLookup(false)
		return nil, false
	}

	record := make(exposure.EraExposure)
	if err := json.Unmarshal(raw, &record); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"Network": network, "Era": era, "Account": account,
		}).Error("Unable to unmarshal era exposure")
		metrics.CacheLookup(false)
		return nil, false
	}

	c.recent.Add(key, record)
	metrics.CacheLookup(true)

	return record, true
}

func (c *PersistentCache) PutEraExposure(network string, era uint32, account string, record exposure.EraExposure, windowEndEra uint32) {

	if record == nil {
		record = make(exposure.EraExposure)
	}

	c.recent.Add(cacheKey(network, era, account), record)

	raw, err := json.Marshal(record)
	if err != nil {
		log.WithError(err).WithField("Era", era).Error("Unable to marshal era exposure")
		return
	}

	if err := c.store.SaveEraExposure(network, int(era), account, raw, int(windowEndEra)); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"Network": network, "Era": era, "Account": account,
		}).Error("Unable to save era exposure")
	}
}

func (c *PersistentCache) PutUnclaimedPayouts(network string, era uint32, account string, payouts map[string]decimal.Decimal, windowEndEra uint32) {

	raw, err := json.Marshal(payouts)
	if err != nil {
		log.WithError(err).WithField("Era", era).Error("Unable to marshal unclaimed payouts")
		return
	}

	if err := c.store.SaveUnclaimedPayouts(network, int(era), account, raw, int(windowEndEra)); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"Network": network, "Era": era, "Account": account,
		}).Error("Unable to save unclaimed payouts")
	}
}

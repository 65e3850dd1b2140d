package payouts

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakedash/exposure"
	"stakedash/storage"
)

type failingRecordStore struct{}

func (failingRecordStore) GetEraExposure(string, int, string) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func (failingRecordStore) SaveEraExposure(string, int, string, []byte, int) error {
	return errors.New("disk gone")
}

func (failingRecordStore) SaveUnclaimedPayouts(string, int, string, []byte, int) error {
	return errors.New("disk gone")
}

func TestPersistentCacheRoundTrip(t *testing.T) {

	db, err := storage.InitStorage(t.TempDir(), "westend")
	require.NoError(t, err)
	defer db.Close()

	c, err := NewPersistentCache(db, 16)
	require.NoError(t, err)

	assert.False(t, c.HasEraExposure("westend", 9, "A"))

	record := exposure.EraExposure{
		"V": {Staked: d("50"), Total: d("200"), IsValidator: false},
	}
	c.PutEraExposure("westend", 9, "A", record, 7)

	assert.True(t, c.HasEraExposure("westend", 9, "A"))
	assert.False(t, c.HasEraExposure("kusama", 9, "A"))

	// A fresh memory tier reads back from bolt
	c2, err := NewPersistentCache(db, 16)
	require.NoError(t, err)

	got, ok := c2.GetEraExposure("westend", 9, "A")
	require.True(t, ok)
	assertDecimal(t, "50", got["V"].Staked)
	assertDecimal(t, "200", got["V"].Total)

	// An empty record is still a resolved era
	c.PutEraExposure("westend", 8, "A", exposure.EraExposure{}, 7)
	got, ok = c2.GetEraExposure("westend", 8, "A")
	require.True(t, ok)
	assert.Empty(t, got)

	c.PutUnclaimedPayouts("westend", 9, "A", map[string]decimal.Decimal{"V": d("45")}, 7)
	raw, err := db.GetUnclaimedPayouts("westend", 9, "A")
	require.NoError(t, err)
	assert.JSONEq(t, `{"V":"45"}`, string(raw))
}

func TestPersistentCacheFailuresAreMisses(t *testing.T) {

	c, err := NewPersistentCache(failingRecordStore{}, 16)
	require.NoError(t, err)

	assert.False(t, c.HasEraExposure("westend", 9, "A"))

	_, ok := c.GetEraExposure("westend", 9, "A")
	assert.False(t, ok)

	// Write failure is logged; the memory tier still serves this process
	c.PutEraExposure("westend", 9, "A", exposure.EraExposure{}, 7)
	assert.True(t, c.HasEraExposure("westend", 9, "A"))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetSyncState(t *testing.T) {

	SetSyncState("syncing")
	assert.Equal(t, float64(1), testutil.ToFloat64(defaultMetrics().syncState.WithLabelValues("syncing")))
	assert.Equal(t, float64(0), testutil.ToFloat64(defaultMetrics().syncState.WithLabelValues("synced")))

	SetSyncState("synced")
	assert.Equal(t, float64(0), testutil.ToFloat64(defaultMetrics().syncState.WithLabelValues("syncing")))
	assert.Equal(t, float64(1), testutil.ToFloat64(defaultMetrics().syncState.WithLabelValues("synced")))
}

func TestCacheLookup(t *testing.T) {

	hits := testutil.ToFloat64(defaultMetrics().cacheLookups.WithLabelValues("hit"))
	misses := testutil.ToFloat64(defaultMetrics().cacheLookups.WithLabelValues("miss"))

	CacheLookup(true)
	CacheLookup(false)
	CacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(defaultMetrics().cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(defaultMetrics().cacheLookups.WithLabelValues("miss")))
}

func TestActiveEraAndUnclaimed(t *testing.T) {

	SetActiveEra(1234)
	assert.Equal(t, float64(1234), testutil.ToFloat64(defaultMetrics().activeEra))

	SetUnclaimed(1.5, 3)
	assert.Equal(t, 1.5, testutil.ToFloat64(defaultMetrics().unclaimedTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(defaultMetrics().unclaimedEras))
}

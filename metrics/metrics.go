package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stakedash"

var syncStates = []string{"unsynced", "syncing", "synced", "errored"}

type payoutsMetrics struct {
	syncState      *prometheus.GaugeVec
	activeEra      prometheus.Gauge
	unclaimedTotal prometheus.Gauge
	unclaimedEras  prometheus.Gauge
	erasResolved   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	staleDropped   prometheus.Counter
	runs           *prometheus.CounterVec
}

var (
	registryOnce sync.Once
	registry     *payoutsMetrics
)

func defaultMetrics() *payoutsMetrics {
	registryOnce.Do(func() {
		registry = &payoutsMetrics{
			syncState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "sync_state",
				Help:      "1 for the current payouts sync state, 0 for the others.",
			}, []string{"state"}),
			activeEra: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "active_era",
				Help:      "Active era last reported by the chain.",
			}),
			unclaimedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "unclaimed_total",
				Help:      "Unclaimed payouts of the active account, in network units.",
			}),
			unclaimedEras: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "unclaimed_eras",
				Help:      "Number of eras with unclaimed payouts for the active account.",
			}),
			erasResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "eras_resolved_total",
				Help:      "Eras whose exposure was resolved, by source.",
			}, []string{"source"}),
			cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "exposure_cache",
				Name:      "lookups_total",
				Help:      "Exposure cache lookups, by result.",
			}, []string{"result"}),
			staleDropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "stale_results_dropped_total",
				Help:      "Resolver responses and fetch results dropped because the account or run changed.",
			}),
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payouts",
				Name:      "runs_total",
				Help:      "Finished payout reconciliation runs, by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			registry.syncState,
			registry.activeEra,
			registry.unclaimedTotal,
			registry.unclaimedEras,
			registry.erasResolved,
			registry.cacheLookups,
			registry.staleDropped,
			registry.runs,
		)

		for _, s := range syncStates {
			registry.syncState.WithLabelValues(s).Set(0)
		}
	})
	return registry
}

func SetSyncState(state string) {
	m := defaultMetrics()
	for _, s := range syncStates {
		if s == state {
			m.syncState.WithLabelValues(s).Set(1)
		} else {
			m.syncState.WithLabelValues(s).Set(0)
		}
	}
}

func SetActiveEra(era uint32) {
	defaultMetrics().activeEra.Set(float64(era))
}

func SetUnclaimed(total float64, eras int) {
	m := defaultMetrics()
	m.unclaimedTotal.Set(total)
	m.unclaimedEras.Set(float64(eras))
}

// EraResolved counts an era whose exposure came from "cache" or "resolver"
func EraResolved(source string) {
	defaultMetrics().erasResolved.WithLabelValues(source).Inc()
}

func CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	defaultMetrics().cacheLookups.WithLabelValues(result).Inc()
}

func StaleDropped() {
	defaultMetrics().staleDropped.Inc()
}

// RunFinished counts a run ending in "synced" or "errored"
func RunFinished(outcome string) {
	defaultMetrics().runs.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	defaultMetrics()
	return promhttp.Handler()
}

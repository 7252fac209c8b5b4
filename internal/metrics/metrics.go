// Package metrics exposes prometheus counters for the cache-synchronization layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EffectsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitro_optimistic_effects_triggered_total",
		Help: "Optimistic effect writers invoked, by typename.",
	}, []string{"typename"})

	CacheWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitro_cache_writes_total",
		Help: "Query cache writes.",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitro_cache_evictions_total",
		Help: "Nodes evicted from cached connections.",
	})

	StateWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitro_state_writes_total",
		Help: "Reactive state writes that changed a value.",
	})

	StateWritesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vitro_state_writes_skipped_total",
		Help: "Reactive state writes skipped because the value was deeply equal.",
	})

	MutationRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitro_mutation_rollbacks_total",
		Help: "Optimistic writes rolled back after a failed mutation, by object.",
	}, []string{"object"})

	DroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitro_events_dropped_total",
		Help: "Bus messages dropped because the subscriber fell behind, by subscription subject.",
	}, []string{"subject"})

	ReconciledEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vitro_reconciled_events_total",
		Help: "Server-pushed record events applied to the cache, by kind.",
	}, []string{"kind"})
)

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

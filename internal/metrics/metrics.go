package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolver_cache_hits_total",
			Help: "Number of bounded cache lookups that found an entry, by cache.",
		},
		[]string{"cache"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolver_cache_misses_total",
			Help: "Number of bounded cache lookups that found nothing, by cache.",
		},
		[]string{"cache"},
	)
	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolver_cache_evictions_total",
			Help: "Number of entries evicted from a bounded cache, by cache.",
		},
		[]string{"cache"},
	)

	SnapshotRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolver_snapshot_refresh_total",
			Help: "Number of snapshot metadata refreshes, by result.",
		},
		[]string{"result"},
	)

	NodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_resolver_nodes_total",
			Help: "Number of tree nodes that finished expansion, by final state.",
		},
		[]string{"state"},
	)
	ProcessorErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "artifact_resolver_processor_errors_total",
			Help: "Number of dependency processor lookups that failed.",
		},
	)

	ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artifact_resolver_resolution_duration_seconds",
			Help:    "Time taken to resolve a set of roots into a tree.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	ctrlmetrics.Registry.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		SnapshotRefreshTotal,
		NodesTotal,
		ProcessorErrorsTotal,
		ResolutionDuration,
	)
}

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses tracks cache misses, including degraded lookups.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// storedBytes tracks the volume of response bytes written to the cache.
	storedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_stored_bytes_total",
			Help: "Total response bytes written to the cache",
		},
	)

	// invalidatedKeys tracks keys removed by invalidation.
	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "respcache_invalidated_keys_total",
			Help: "Total number of cache keys removed by invalidation",
		},
	)

	// serviceErrors tracks swallowed cache operation errors.
	serviceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "respcache_service_errors_total",
			Help: "Total number of cache operation errors absorbed by fail-open handling",
		},
		[]string{"operation"}, // "get", "set", "delete", "delete_pattern", "stats"
	)
)

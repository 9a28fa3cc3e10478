// Package metrics provides the centralized Prometheus registry for
// respcache. All metrics are defined in their respective packages
// (cache, store) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by respcache.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - respcache_hits_total (Counter): Cache hits
//   - respcache_misses_total (Counter): Cache misses, including degraded lookups
//   - respcache_stored_bytes_total (Counter): Response bytes written to the cache
//   - respcache_invalidated_keys_total (Counter): Keys removed by invalidation
//   - respcache_service_errors_total{operation} (Counter): Errors absorbed by fail-open handling
//
// Store Metrics (pkg/store):
//   - respcache_store_up (Gauge): Backing store connection state (1 live, 0 down)
//   - respcache_store_errors_total{operation} (Counter): Failed store operations
//   - respcache_store_reconnect_attempts_total (Counter): Background reconnect attempts
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   rate(respcache_hits_total[5m]) /
//   (rate(respcache_hits_total[5m]) + rate(respcache_misses_total[5m]))
//
//   # Store Availability
//   respcache_store_up == 0
//
//   # Fail-Open Error Rate
//   rate(respcache_service_errors_total[5m])

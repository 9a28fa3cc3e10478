package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeUp reflects the adapter's view of the store connection.
	storeUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "respcache_store_up",
		Help: "Whether the backing store connection is currently live (1) or not (0)",
	})

	// storeErrors tracks failed store operations by operation type.
	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "respcache_store_errors_total",
		Help: "Total number of failed store operations",
	}, []string{"operation"}) // "get", "set", "delete", "scan"

	// storeReconnects tracks background reconnect attempts.
	storeReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "respcache_store_reconnect_attempts_total",
		Help: "Total number of background store reconnect attempts",
	})
)

// Package cache provides the response cache service over a Redis
// backing store with uniform fail-open semantics.
//
// The service combines the store adapter (pkg/store) and the key
// namespace. Every operation is safe to call while the store is
// unreachable: reads report a miss, writes and deletes are dropped with
// a log line, and nothing ever propagates an error into the request
// path. Availability is observable via IsAvailable and GetStats.
//
// # Basic Usage
//
//	adapter, err := store.New(store.ConnectionSpec{URL: "redis://localhost:6379"},
//		store.DefaultReconnectConfig(), logger)
//	if err != nil {
//		// invalid configuration: run with caching disabled
//		svc := cache.NewDisabled(logger)
//		_ = svc
//	}
//	go adapter.Connect(context.Background())
//
//	svc := cache.NewService(adapter, cache.DefaultConfig(), logger)
//	defer svc.Disconnect()
//
//	svc.Set(ctx, key.String(), body, 0) // 0 = default TTL
//	if data, ok := svc.Get(ctx, key.String()); ok {
//		// serve cached response
//	}
//
// # Invalidation
//
//	svc.Delete(ctx, cachekey.Key{Resource: "users", Op: cachekey.OpGet, Identifier: "42"}.String())
//	svc.DeletePattern(ctx, cachekey.Pattern("users", cachekey.OpList))
//
// # Consistency
//
// Lookups and invalidations are not serialized against each other:
// after a successful mutating write there is a narrow window during
// which a concurrent read may still serve a stale entry that was
// already in flight. This is an accepted eventual-consistency window
// bounded by the fire-and-forget invalidation latency, not a defect.
//
// # Metrics
//
// The service exports Prometheus metrics:
//
//   - respcache_hits_total - Cache hits
//   - respcache_misses_total - Cache misses (including degraded lookups)
//   - respcache_stored_bytes_total - Bytes written to the cache
//   - respcache_invalidated_keys_total - Keys removed by invalidation
//   - respcache_service_errors_total{operation} - Absorbed operation errors
package cache

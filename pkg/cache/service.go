package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/restcache/respcache/pkg/store"
)

// Config holds cache service configuration.
type Config struct {
	// Enabled toggles the whole cache subsystem.
	Enabled bool

	// KeyPrefix namespaces every stored key so multiple logical caches
	// can share one backing store instance.
	KeyPrefix string

	// DefaultTTL applies to Set calls that pass ttl == 0.
	DefaultTTL time.Duration

	// LookupTimeout bounds a single Get against a slow store; past it
	// the lookup is treated as a miss.
	LookupTimeout time.Duration
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		KeyPrefix:     "respcache",
		DefaultTTL:    5 * time.Minute,
		LookupTimeout: 150 * time.Millisecond,
	}
}

// Stats describes the live state of the cache namespace.
type Stats struct {
	Connected   bool   `json:"connected"`
	KeyCount    int64  `json:"keyCount"`
	MemoryUsage string `json:"memoryUsage,omitempty"`
}

// Service is the cache façade combining the store adapter and the key
// namespace. Every operation is fail-open: when the store is down or an
// operation errors, callers get the absent/default value and the error
// goes to the log, never to the caller. The service exclusively owns
// the adapter's connection handle.
type Service struct {
	adapter *store.Adapter
	cfg     Config
	logger  zerolog.Logger
}

// NewService creates a cache service over the given adapter.
func NewService(adapter *store.Adapter, cfg Config, logger zerolog.Logger) *Service {
	if adapter == nil {
		panic("store adapter cannot be nil")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = DefaultConfig().LookupTimeout
	}
	return &Service{
		adapter: adapter,
		cfg:     cfg,
		logger:  logger,
	}
}

// NewDisabled creates a service that reports unavailable and ignores
// all operations. Used when caching is switched off or the store
// configuration is invalid.
func NewDisabled(logger zerolog.Logger) *Service {
	return &Service{
		cfg:    Config{Enabled: false},
		logger: logger,
	}
}

// IsAvailable reports whether caching is enabled and the store holds a
// live connection.
func (s *Service) IsAvailable() bool {
	return s.cfg.Enabled && s.adapter != nil && s.adapter.Available()
}

// namespaced prefixes a key with the configured namespace.
func (s *Service) namespaced(key string) string {
	return s.cfg.KeyPrefix + ":" + key
}

// Get returns the value stored under key. The second return value is
// false on a miss, on a slow lookup past the configured timeout, and on
// any store failure.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.IsAvailable() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	data, err := s.adapter.Get(ctx, s.namespaced(key))
	if err != nil {
		if err != store.ErrNotFound {
			serviceErrors.WithLabelValues("get").Inc()
			s.logger.Debug().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		}
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return data, true
}

// Set stores value under key. A ttl of 0 applies the configured default;
// a negative ttl stores without expiration. Failures are logged and
// dropped.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !s.IsAvailable() {
		return
	}
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}
	if err := s.adapter.Set(ctx, s.namespaced(key), value, ttl); err != nil {
		serviceErrors.WithLabelValues("set").Inc()
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache set failed")
		return
	}
	storedBytes.Add(float64(len(value)))
}

// Delete removes a single key. Missing keys and store failures are
// silently ignored.
func (s *Service) Delete(ctx context.Context, key string) {
	if !s.IsAvailable() {
		return
	}
	if err := s.adapter.Delete(ctx, s.namespaced(key)); err != nil {
		serviceErrors.WithLabelValues("delete").Inc()
		s.logger.Debug().Err(err).Str("key", key).Msg("Cache delete failed")
		return
	}
	invalidatedKeys.Inc()
}

// DeletePattern removes every key matching the glob pattern within the
// service's namespace and returns how many keys were deleted. A pattern
// matching nothing deletes zero keys silently.
func (s *Service) DeletePattern(ctx context.Context, pattern string) int {
	if !s.IsAvailable() {
		return 0
	}

	keys, err := s.adapter.ScanKeys(ctx, s.namespaced(pattern))
	if err != nil {
		serviceErrors.WithLabelValues("delete_pattern").Inc()
		s.logger.Debug().Err(err).Str("pattern", pattern).Msg("Cache pattern scan failed")
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	if err := s.adapter.DeleteMany(ctx, keys); err != nil {
		serviceErrors.WithLabelValues("delete_pattern").Inc()
		s.logger.Debug().Err(err).Str("pattern", pattern).Msg("Cache pattern delete failed")
		return 0
	}

	invalidatedKeys.Add(float64(len(keys)))
	s.logger.Debug().Str("pattern", pattern).Int("keys", len(keys)).Msg("Cache pattern invalidated")
	return len(keys)
}

// Clear removes every key in the service's namespace. Keys belonging to
// other consumers of the same backing store are left untouched.
func (s *Service) Clear(ctx context.Context) int {
	return s.DeletePattern(ctx, "*")
}

// GetStats returns live connection status and key count for the
// namespace. Read-only.
func (s *Service) GetStats(ctx context.Context) Stats {
	stats := Stats{Connected: s.IsAvailable()}
	if !stats.Connected {
		return stats
	}

	count, err := s.adapter.KeyCount(ctx, s.namespaced("*"))
	if err != nil {
		serviceErrors.WithLabelValues("stats").Inc()
		s.logger.Debug().Err(err).Msg("Cache key count failed")
		return stats
	}
	stats.KeyCount = count
	stats.MemoryUsage = s.adapter.MemoryUsage(ctx)
	return stats
}

// Disconnect tears down the store connection. Idempotent; a no-op if
// the service never had an adapter.
func (s *Service) Disconnect() {
	if s.adapter == nil {
		return
	}
	if err := s.adapter.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Store close failed")
		return
	}
	s.logger.Info().Msg("Cache disconnected")
}

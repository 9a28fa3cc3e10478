// Package store wraps the Redis backing store behind byte-oriented
// get/set/delete/scan primitives with TTL support.
//
// The adapter owns the connection lifecycle: it connects lazily, retries
// lost connections with capped backoff, and after exhausting
// its retry budget marks itself permanently unavailable. Callers observe
// failures only as ErrUnavailable; converting that into graceful
// degradation is the cache service's job.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable indicates the backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrConfig indicates an invalid connection specification.
	ErrConfig = errors.New("invalid store configuration")
)

// ConnectionSpec describes how to reach the backing store.
// Exactly one form is used: URL takes precedence when set, otherwise
// the structured host/port fields apply.
type ConnectionSpec struct {
	// URL is a redis:// connection string.
	URL string

	// Structured form, used when URL is empty.
	Host     string
	Port     int
	Password string
	DB       int
}

// options resolves the spec into redis client options.
// Resolution happens once at construction time.
func (s ConnectionSpec) options() (*redis.Options, error) {
	if s.URL != "" {
		opts, err := redis.ParseURL(s.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: parse url: %v", ErrConfig, err)
		}
		return opts, nil
	}
	if s.Host == "" {
		return nil, fmt.Errorf("%w: host or url required", ErrConfig)
	}
	port := s.Port
	if port == 0 {
		port = 6379
	}
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", s.Host, port),
		Password: s.Password,
		DB:       s.DB,
	}, nil
}

// ReconnectConfig controls the backoff behavior after a lost connection.
type ReconnectConfig struct {
	// MaxAttempts is the number of reconnect attempts before the adapter
	// gives up for good.
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number for each backoff step.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff step.
	MaxDelay time.Duration
}

// DefaultReconnectConfig returns the default reconnect configuration.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Adapter is a thin wrapper over a Redis client. It is safe for
// concurrent use; the underlying client is pooled.
type Adapter struct {
	client    *redis.Client
	logger    zerolog.Logger
	reconnect ReconnectConfig

	available    atomic.Bool
	permDown     atomic.Bool
	reconnecting atomic.Bool

	closeOnce sync.Once
}

// New creates an adapter from the given spec. The network is not touched
// here; call Connect to establish the connection.
func New(spec ConnectionSpec, reconnect ReconnectConfig, logger zerolog.Logger) (*Adapter, error) {
	opts, err := spec.options()
	if err != nil {
		return nil, err
	}
	if reconnect.MaxAttempts <= 0 {
		reconnect = DefaultReconnectConfig()
	}
	return &Adapter{
		client:    redis.NewClient(opts),
		logger:    logger,
		reconnect: reconnect,
	}, nil
}

// Connect pings the store with a bounded timeout and marks the adapter
// available on success. A failed first connect starts the background
// reconnect loop instead of blocking the caller, so it is safe (and
// intended) to run Connect in a goroutine at startup.
func (a *Adapter) Connect(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn().Err(err).Msg("Initial store connection failed")
		a.startReconnect()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	a.available.Store(true)
	storeUp.Set(1)
	a.logger.Info().Str("addr", a.client.Options().Addr).Msg("Connected to store")
	return nil
}

// Available reports whether the adapter currently holds a live connection.
func (a *Adapter) Available() bool {
	return a.available.Load()
}

// Get returns the bytes stored under key.
// Returns ErrNotFound for missing keys and ErrUnavailable when the
// store cannot be reached.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	if !a.available.Load() {
		return nil, ErrUnavailable
	}
	data, err := a.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, a.fail("get", err)
	}
	return data, nil
}

// Set stores value under key. A ttl <= 0 means no expiration.
func (a *Adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !a.available.Load() {
		return ErrUnavailable
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := a.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return a.fail("set", err)
	}
	return nil
}

// Delete removes a single key. Deleting a missing key is not an error.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	return a.DeleteMany(ctx, []string{key})
}

// DeleteMany removes all given keys in one round trip.
func (a *Adapter) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if !a.available.Load() {
		return ErrUnavailable
	}
	if err := a.client.Del(ctx, keys...).Err(); err != nil {
		return a.fail("delete", err)
	}
	return nil
}

// ScanKeys enumerates all keys matching the glob pattern using SCAN.
// The enumeration is lazy on the server side and is not a consistent
// snapshot if writes occur concurrently.
func (a *Adapter) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	if !a.available.Load() {
		return nil, ErrUnavailable
	}
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := a.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, a.fail("scan", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// KeyCount returns the number of keys matching the pattern.
func (a *Adapter) KeyCount(ctx context.Context, pattern string) (int64, error) {
	keys, err := a.ScanKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// MemoryUsage returns the store's human-readable memory usage, or an
// empty string if the INFO section cannot be read or parsed.
func (a *Adapter) MemoryUsage(ctx context.Context) string {
	if !a.available.Load() {
		return ""
	}
	info, err := a.client.Info(ctx, "memory").Result()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(info, "\r\n") {
		if v, ok := strings.CutPrefix(line, "used_memory_human:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Close tears down the connection. Idempotent and safe to call even if
// Connect never succeeded.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.available.Store(false)
		storeUp.Set(0)
		err = a.client.Close()
	})
	return err
}

// fail marks the adapter unavailable, kicks off the reconnect loop and
// wraps the underlying error as ErrUnavailable.
func (a *Adapter) fail(op string, err error) error {
	storeErrors.WithLabelValues(op).Inc()
	if a.available.CompareAndSwap(true, false) {
		storeUp.Set(0)
		a.logger.Warn().Err(err).Str("operation", op).Msg("Store connection lost")
		a.startReconnect()
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// startReconnect spawns a single background reconnect loop. Once the
// retry budget is exhausted the adapter stays down until the process is
// restarted; this prevents reconnect storms against a dead dependency.
func (a *Adapter) startReconnect() {
	if a.permDown.Load() {
		return
	}
	if !a.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer a.reconnecting.Store(false)

		for attempt := 1; attempt <= a.reconnect.MaxAttempts; attempt++ {
			delay := a.reconnect.BaseDelay * time.Duration(attempt)
			if delay > a.reconnect.MaxDelay {
				delay = a.reconnect.MaxDelay
			}
			time.Sleep(delay)

			storeReconnects.Inc()
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.client.Ping(ctx).Err()
			cancel()

			if err == nil {
				a.available.Store(true)
				storeUp.Set(1)
				a.logger.Info().Int("attempt", attempt).Msg("Store connection restored")
				return
			}

			a.logger.Debug().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Store reconnect failed")
		}

		a.permDown.Store(true)
		a.logger.Error().
			Int("max_attempts", a.reconnect.MaxAttempts).
			Msg("Store reconnect attempts exhausted, caching stays disabled")
	}()
}

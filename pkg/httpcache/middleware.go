// Package httpcache provides the HTTP caching interceptor: a standard
// net/http middleware that serves read responses from the cache service
// and invalidates affected entries after successful writes.
//
// The middleware is strictly fail-open. Any cache-subsystem failure is
// absorbed at this boundary and the request completes exactly as if
// caching were disabled.
package httpcache

import (
	"context"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/restcache/respcache/pkg/cache"
	"github.com/restcache/respcache/pkg/cachekey"
)

// Config holds interceptor configuration.
type Config struct {
	// PathPrefix is stripped from request paths before deriving the
	// resource name, e.g. "/api".
	PathPrefix string

	// TTL applied to stored responses; 0 uses the cache service default.
	TTL time.Duration

	// ExcludeRoutes are path globs that bypass caching entirely.
	ExcludeRoutes []string

	// ExcludeAuthenticated skips caching for requests carrying
	// credentials (Authorization header or cookies).
	ExcludeAuthenticated bool

	// CachePrivate emits "Cache-Control: private" instead of "public".
	CachePrivate bool
}

// DefaultConfig returns the default interceptor configuration.
func DefaultConfig() Config {
	return Config{
		PathPrefix:           "/api",
		TTL:                  5 * time.Minute,
		ExcludeAuthenticated: true,
	}
}

// Middleware intercepts the request/response pipeline around a
// downstream handler. It holds a reference to an explicitly constructed
// cache service; multiple independently configured instances can
// coexist in one process.
type Middleware struct {
	service *cache.Service
	cfg     Config
	logger  zerolog.Logger
}

// New creates a caching middleware over the given cache service.
func New(service *cache.Service, cfg Config, logger zerolog.Logger) *Middleware {
	if service == nil {
		panic("cache service cannot be nil")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Middleware{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handler wraps the downstream handler with cache lookup, response
// capture and write invalidation.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			m.handleRead(w, r, next)
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			m.handleWrite(w, r, next)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// handleRead implements lookup, hit serving with conditional-request
// support, and miss capture.
func (m *Middleware) handleRead(w http.ResponseWriter, r *http.Request, next http.Handler) {
	if !m.admissible(r) {
		next.ServeHTTP(w, r)
		return
	}

	key, ok := m.requestKey(r)
	if !ok {
		next.ServeHTTP(w, r)
		return
	}
	keyStr := key.String()

	if body, hit := m.service.Get(r.Context(), keyStr); hit {
		m.serveHit(w, r, body)
		return
	}

	// The stored body is replayed verbatim to later clients, so the
	// upstream must not negotiate a content encoding for this request.
	r.Header.Del("Accept-Encoding")

	// Miss: buffer the downstream response so cache headers can be
	// attached once the final body is known.
	rec := newRecorder()
	next.ServeHTTP(rec, r)

	cacheable := rec.status == http.StatusOK
	if cacheable {
		body := make([]byte, rec.body.Len())
		copy(body, rec.body.Bytes())
		m.storeAsync(keyStr, body)
	}

	copyHeader(w.Header(), rec.header)
	w.Header().Set("X-Cache", "MISS")
	if cacheable {
		w.Header().Set("ETag", cachekey.ETag(rec.body.Bytes()))
		w.Header().Set("Cache-Control", m.cacheControl())
	}
	w.WriteHeader(rec.status)
	if _, err := w.Write(rec.body.Bytes()); err != nil {
		m.logger.Debug().Err(err).Msg("Client write failed")
	}
}

// serveHit writes a cached body, honoring If-None-Match.
func (m *Middleware) serveHit(w http.ResponseWriter, r *http.Request, body []byte) {
	etag := cachekey.ETag(body)

	w.Header().Set("X-Cache", "HIT")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", m.cacheControl())

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		m.logger.Debug().Err(err).Msg("Client write failed")
	}
}

// handleWrite serves a mutating request unmodified and invalidates the
// affected resource after a successful downstream response.
func (m *Middleware) handleWrite(w http.ResponseWriter, r *http.Request, next http.Handler) {
	resource, identifier, ok := m.parseResource(r.URL.Path)
	if !ok || !m.service.IsAvailable() {
		next.ServeHTTP(w, r)
		return
	}

	// Implicit status is 200 when the handler never calls WriteHeader.
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(sw, r)

	if sw.status >= 200 && sw.status < 300 {
		m.invalidateAsync(resource, identifier)
	}
}

// admissible applies the pre-handler admission check for read requests.
func (m *Middleware) admissible(r *http.Request) bool {
	if !m.service.IsAvailable() {
		return false
	}
	if m.cfg.ExcludeAuthenticated && isAuthenticated(r) {
		return false
	}
	for _, pattern := range m.cfg.ExcludeRoutes {
		if matched, err := path.Match(pattern, r.URL.Path); err == nil && matched {
			return false
		}
	}
	return true
}

func isAuthenticated(r *http.Request) bool {
	return r.Header.Get("Authorization") != "" || len(r.Cookies()) > 0
}

func (m *Middleware) cacheControl() string {
	scope := "public"
	if m.cfg.CachePrivate {
		scope = "private"
	}
	return scope + ", max-age=" + strconv.Itoa(int(m.cfg.TTL.Seconds()))
}

// storeAsync writes a captured response to the cache without delaying
// the client response. The write survives client disconnects; its
// outcome is logged and discarded.
func (m *Middleware) storeAsync(key string, body []byte) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.service.Set(ctx, key, body, m.cfg.TTL)
	}()
}

// invalidateAsync removes the single-resource entry (when an identifier
// is present) and always the list and count patterns for the resource.
// Over-invalidation by pattern is deliberate: precise dependency
// tracking between entries and rows is not maintained, so correctness
// is bought with additional cache misses. There remains a narrow window
// during which a concurrent read can serve an entry that was already in
// flight; see the pkg/cache docs.
func (m *Middleware) invalidateAsync(resource, identifier string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if identifier != "" {
			m.service.Delete(ctx, cachekey.Key{
				Resource:   resource,
				Op:         cachekey.OpGet,
				Identifier: identifier,
			}.String())
		}
		m.service.DeletePattern(ctx, cachekey.Pattern(resource, cachekey.OpList))
		m.service.DeletePattern(ctx, cachekey.Pattern(resource, cachekey.OpCount))

		m.logger.Debug().
			Str("resource", resource).
			Str("identifier", identifier).
			Msg("Invalidated cached entries after write")
	}()
}

// Package admin provides the operational HTTP surface of the cache:
// live statistics, full namespace clear, and pattern-scoped clear.
// The routes are meant for operators and should not be mounted on the
// public unauthenticated surface.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/restcache/respcache/pkg/cache"
)

// Handlers holds dependencies for the cache admin endpoints.
type Handlers struct {
	Service *cache.Service
	Logger  zerolog.Logger
}

// Routes returns a chi.Router with all cache admin endpoints mounted.
// Intended to be mounted under /_cache.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Post("/clear", h.clear)
	r.Delete("/{pattern}", h.deletePattern)
	return r
}

// TokenMiddleware guards the admin routes with a static bearer token.
// An empty token disables the check.
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"success": false,
					"message": "missing or invalid admin token",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// stats returns live connection status and key count for the namespace.
// Read-only, no side effects.
func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.GetStats(r.Context()))
}

// clear deletes every key in the cache namespace.
func (h *Handlers) clear(w http.ResponseWriter, r *http.Request) {
	deleted := h.Service.Clear(r.Context())
	h.Logger.Info().Int("keys", deleted).Msg("Cache cleared via admin endpoint")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("cleared %d cached entries", deleted),
	})
}

// deletePattern deletes all keys matching an operator-supplied glob,
// confined to the cache namespace.
func (h *Handlers) deletePattern(w http.ResponseWriter, r *http.Request) {
	pattern := chi.URLParam(r, "pattern")
	if pattern == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "pattern required",
		})
		return
	}

	deleted := h.Service.DeletePattern(r.Context(), pattern)
	h.Logger.Info().Str("pattern", pattern).Int("keys", deleted).Msg("Cache pattern cleared via admin endpoint")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("cleared %d entries matching %q", deleted, pattern),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

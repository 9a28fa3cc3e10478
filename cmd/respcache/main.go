// Command respcache runs a caching reverse proxy in front of a
// data-access API. Read responses are cached in Redis and invalidated
// automatically when writes pass through; a store outage transparently
// disables caching without affecting the proxied API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/restcache/respcache/pkg/admin"
	"github.com/restcache/respcache/pkg/cache"
	"github.com/restcache/respcache/pkg/config"
	"github.com/restcache/respcache/pkg/httpcache"
	"github.com/restcache/respcache/pkg/logging"
	"github.com/restcache/respcache/pkg/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("RESPCACHE_CONFIG"), "path to config file (YAML or JSON)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid config")
	}
	if cfg.UpstreamURL == "" {
		logger.Fatal().Msg("upstream_url is required")
	}
	upstream, _ := url.Parse(cfg.UpstreamURL)

	service := buildCacheService(cfg, logger)
	defer service.Disconnect()

	interceptor := httpcache.New(service, httpcache.Config{
		PathPrefix:           cfg.PathPrefix,
		TTL:                  time.Duration(cfg.DefaultTTLSeconds) * time.Second,
		ExcludeRoutes:        cfg.ExcludeRoutes,
		ExcludeAuthenticated: cfg.ExcludeAuthenticated,
		CachePrivate:         cfg.CachePrivate,
	}, logging.NewLogger("httpcache"))

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	adminHandlers := &admin.Handlers{
		Service: service,
		Logger:  logging.NewLogger("admin"),
	}
	r.Route("/_cache", func(r chi.Router) {
		r.Use(admin.TokenMiddleware(cfg.AdminToken))
		r.Mount("/", adminHandlers.Routes())
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Handle("/*", interceptor.Handler(proxy))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("upstream", cfg.UpstreamURL).
			Bool("cache_enabled", cfg.Enabled).
			Msg("Starting respcache proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown failed")
	}
}

// buildCacheService wires the store adapter and the cache service from
// config. Invalid store configuration is surfaced once as a warning and
// caching then runs in disabled mode; the proxy itself is unaffected.
func buildCacheService(cfg *config.Config, logger zerolog.Logger) *cache.Service {
	if !cfg.Enabled {
		logger.Info().Msg("Caching disabled by configuration")
		return cache.NewDisabled(logging.NewLogger("cache"))
	}

	adapter, err := store.New(store.ConnectionSpec{
		URL:      cfg.Redis.URL,
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, store.DefaultReconnectConfig(), logging.NewLogger("store"))
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid store configuration, caching disabled")
		return cache.NewDisabled(logging.NewLogger("cache"))
	}

	// Connect in the background so a slow or down store never blocks startup.
	go adapter.Connect(context.Background())

	return cache.NewService(adapter, cache.Config{
		Enabled:    true,
		KeyPrefix:  cfg.KeyPrefix,
		DefaultTTL: time.Duration(cfg.DefaultTTLSeconds) * time.Second,
	}, logging.NewLogger("cache"))
}

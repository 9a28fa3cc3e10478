package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/httputil"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/restcache/respcache/internal/testutil"
	"github.com/restcache/respcache/pkg/admin"
	"github.com/restcache/respcache/pkg/cache"
	"github.com/restcache/respcache/pkg/httpcache"
	"github.com/restcache/respcache/pkg/store"
)

// setupRedis starts a Redis container and returns a connected adapter.
func setupRedis(t *testing.T) (*store.Adapter, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	adapter, err := store.New(store.ConnectionSpec{Host: host, Port: port.Int()},
		store.DefaultReconnectConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	if err := adapter.Connect(ctx); err != nil {
		t.Fatalf("adapter.Connect failed: %v", err)
	}

	cleanup := func() {
		adapter.Close()
		container.Terminate(ctx)
	}
	return adapter, cleanup
}

// setupProxy builds the production wiring: mock upstream API behind a
// reverse proxy wrapped in the caching middleware.
func setupProxy(t *testing.T, svc *cache.Service) (*httptest.Server, *testutil.MockAPI) {
	t.Helper()

	mockAPI := testutil.NewMockAPI()
	t.Cleanup(mockAPI.Close)

	upstream, err := url.Parse(mockAPI.URL())
	if err != nil {
		t.Fatalf("parse mock URL: %v", err)
	}

	interceptor := httpcache.New(svc, httpcache.DefaultConfig(), zerolog.Nop())
	proxy := httputil.NewSingleHostReverseProxy(upstream)

	srv := httptest.NewServer(interceptor.Handler(proxy))
	t.Cleanup(srv.Close)

	return srv, mockAPI
}

func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return fn()
}

// TestFullCacheFlow covers the complete lifecycle through the real
// proxy wiring: miss, hit, conditional GET, write invalidation.
func TestFullCacheFlow(t *testing.T) {
	adapter, cleanup := setupRedis(t)
	defer cleanup()

	svc := cache.NewService(adapter, cache.DefaultConfig(), zerolog.Nop())
	srv, mockAPI := setupProxy(t, svc)

	mockAPI.SetListResponse("users", `[{"id":1,"name":"alice"}]`)

	// First request: miss, forwarded upstream.
	first, err := http.Get(srv.URL + "/api/users")
	if err != nil {
		t.Fatalf("first GET failed: %v", err)
	}
	firstBody, _ := io.ReadAll(first.Body)
	first.Body.Close()

	if got := first.Header.Get("X-Cache"); got != "MISS" {
		t.Errorf("first GET X-Cache = %q, want MISS", got)
	}
	etag := first.Header.Get("ETag")
	if etag == "" {
		t.Error("first GET has no ETag")
	}
	if mockAPI.GetPathCount("/api/users") != 1 {
		t.Errorf("upstream hit %d times, want 1", mockAPI.GetPathCount("/api/users"))
	}

	if !waitForCondition(t, 3*time.Second, func() bool {
		_, ok := svc.Get(context.Background(), "users:list:all")
		return ok
	}) {
		t.Fatal("cached entry never appeared")
	}

	// Second request: hit, upstream untouched.
	second, err := http.Get(srv.URL + "/api/users")
	if err != nil {
		t.Fatalf("second GET failed: %v", err)
	}
	secondBody, _ := io.ReadAll(second.Body)
	second.Body.Close()

	if got := second.Header.Get("X-Cache"); got != "HIT" {
		t.Errorf("second GET X-Cache = %q, want HIT", got)
	}
	if string(firstBody) != string(secondBody) {
		t.Errorf("cached body %q differs from original %q", secondBody, firstBody)
	}
	if mockAPI.GetPathCount("/api/users") != 1 {
		t.Errorf("upstream hit %d times after cache hit, want 1", mockAPI.GetPathCount("/api/users"))
	}

	// Conditional GET against the cached entry.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/users", nil)
	req.Header.Set("If-None-Match", etag)
	conditional, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional GET failed: %v", err)
	}
	condBody, _ := io.ReadAll(conditional.Body)
	conditional.Body.Close()

	if conditional.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", conditional.StatusCode)
	}
	if len(condBody) != 0 {
		t.Errorf("304 response carries a body: %q", condBody)
	}

	// A successful create invalidates the list.
	post, err := http.Post(srv.URL+"/api/users", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	post.Body.Close()

	if !waitForCondition(t, 3*time.Second, func() bool {
		_, ok := svc.Get(context.Background(), "users:list:all")
		return !ok
	}) {
		t.Fatal("cached entry survived invalidation")
	}

	third, err := http.Get(srv.URL + "/api/users")
	if err != nil {
		t.Fatalf("third GET failed: %v", err)
	}
	third.Body.Close()
	if got := third.Header.Get("X-Cache"); got != "MISS" {
		t.Errorf("GET after write X-Cache = %q, want MISS", got)
	}
}

// TestAdminFlow exercises the operational endpoints against live data.
func TestAdminFlow(t *testing.T) {
	adapter, cleanup := setupRedis(t)
	defer cleanup()

	svc := cache.NewService(adapter, cache.DefaultConfig(), zerolog.Nop())

	handlers := &admin.Handlers{Service: svc, Logger: zerolog.Nop()}
	adminSrv := httptest.NewServer(handlers.Routes())
	defer adminSrv.Close()

	ctx := context.Background()
	svc.Set(ctx, "users:list:all", []byte("v"), time.Minute)
	svc.Set(ctx, "users:get:1", []byte("v"), time.Minute)
	svc.Set(ctx, "posts:list:all", []byte("v"), time.Minute)

	// Stats reflect the live namespace.
	resp, err := http.Get(adminSrv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats failed: %v", err)
	}
	var stats cache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	resp.Body.Close()
	if !stats.Connected || stats.KeyCount != 3 {
		t.Errorf("stats = %+v, want connected with 3 keys", stats)
	}

	// Pattern delete is resource-scoped.
	req, _ := http.NewRequest(http.MethodDelete, adminSrv.URL+"/users:list:*", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE pattern failed: %v", err)
	}
	resp.Body.Close()
	if _, ok := svc.Get(ctx, "posts:list:all"); !ok {
		t.Error("pattern delete removed a foreign resource key")
	}

	// Clear empties the namespace.
	resp, err = http.Post(adminSrv.URL+"/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /clear failed: %v", err)
	}
	resp.Body.Close()
	if stats := svc.GetStats(ctx); stats.KeyCount != 0 {
		t.Errorf("KeyCount after clear = %d, want 0", stats.KeyCount)
	}
}

// TestStoreOutageFailOpen verifies the proxy keeps serving when the
// store disappears mid-flight.
func TestStoreOutageFailOpen(t *testing.T) {
	adapter, cleanup := setupRedis(t)
	svc := cache.NewService(adapter, cache.DefaultConfig(), zerolog.Nop())
	srv, mockAPI := setupProxy(t, svc)

	mockAPI.SetListResponse("users", `[]`)

	resp, err := http.Get(srv.URL + "/api/users")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	// Kill the store.
	cleanup()

	resp, err = http.Get(srv.URL + "/api/users")
	if err != nil {
		t.Fatalf("GET with dead store failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET with dead store status = %d, want 200", resp.StatusCode)
	}
	if string(body) != `[]` {
		t.Errorf("GET with dead store body = %q", body)
	}
}

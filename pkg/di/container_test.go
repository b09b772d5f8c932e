package di

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-cacheable/interceptor"
	"github.com/goliatone/go-cacheable/pkg/testsupport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestContainer(t *testing.T, cfg Config, opts ...Option) *Container {
	t.Helper()
	container, err := NewContainer(context.Background(), cfg, append([]Option{WithLogger(discardLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })
	return container
}

func TestNewContainer(t *testing.T) {
	cfg, err := ParseConfig(testsupport.LoadFixture(t, testsupport.FixturePath("config.yaml")))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}
	container := newTestContainer(t, cfg)

	names := container.Manager().Names()
	expected := []string{"audit", "reports", "users"}
	if len(names) != len(expected) {
		t.Fatalf("expected caches %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("expected cache %s at %d, got %s", expected[i], i, names[i])
		}
	}

	if container.Dispatcher() == nil {
		t.Error("Container should have a non-nil dispatcher")
	}
	if container.Management() == nil {
		t.Error("Container should have a non-nil management service")
	}
	if container.Config().ErrorPolicy != PolicyRecover {
		t.Errorf("expected stored config, got %+v", container.Config())
	}

	info, err := container.Management().Cache(context.Background(), "reports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info["backend"] != "sqlite" {
		t.Errorf("expected sqlite backend, got %v", info["backend"])
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults(WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close(context.Background())

	names := container.Manager().Names()
	if len(names) != 1 || names[0] != "default" {
		t.Errorf("expected the default cache, got %v", names)
	}

	// operations that name no cache fall back to the configured default
	calls := 0
	find, err := interceptor.Wrap(container.Dispatcher(), interceptor.Operation{
		Name:      "settings.find",
		Cacheable: &interceptor.Cacheable{},
	}, func(ctx context.Context, args ...any) (string, error) {
		calls++
		return "dark", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if v, err := find(context.Background(), "theme"); err != nil || v != "dark" {
			t.Fatalf("expected dark, got %v (%v)", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one call, got %d", calls)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	_, err := NewContainer(context.Background(), Config{
		Caches: []CacheConfig{{Name: "users", Backend: "memcached"}},
	})
	if err == nil {
		t.Error("NewContainer() should fail with invalid config")
	}

	_, err = NewContainer(context.Background(), Config{
		Caches: []CacheConfig{{Name: "users", Backend: BackendMemory}},
	}, WithCache(testsupport.NewRecordingCache("users", nil)))
	if err == nil {
		t.Error("NewContainer() should fail when an extra cache reuses a configured name")
	}
}

func TestNewContainer_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	container := newTestContainer(t, Config{
		Caches: []CacheConfig{{
			Name:    "sessions",
			Backend: BackendRedis,
			Redis:   &RedisConfig{Addr: mr.Addr(), Prefix: "sess"},
		}},
	})

	c, err := container.Manager().Cache("sessions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Put(context.Background(), "s1", "token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists("sess:s1") {
		t.Error("expected the entry under the configured prefix")
	}
}

func TestNewContainer_RedisDefaultsPrefixToName(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	container := newTestContainer(t, Config{
		Caches: []CacheConfig{
			{Name: "sessions", Backend: BackendRedis, Redis: &RedisConfig{Addr: mr.Addr()}},
			{Name: "tokens", Backend: BackendRedis, Redis: &RedisConfig{Addr: mr.Addr()}},
		},
	})

	sessions, err := container.Manager().Cache("sessions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens, err := container.Manager().Cache("tokens")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sessions.Put(ctx, "k", "session"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tokens.Put(ctx, "k", "token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mr.Exists("sessions:k") || !mr.Exists("tokens:k") {
		t.Fatalf("expected entries under the cache names, got keys %v", mr.Keys())
	}

	if err := container.Management().Invalidate(ctx, "sessions"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mr.Exists("sessions:k") {
		t.Error("expected sessions to be cleared")
	}
	if _, found, err := tokens.Get(ctx, "k"); err != nil || !found {
		t.Errorf("expected tokens to survive clearing sessions, found=%v err=%v", found, err)
	}
}

func TestContainer_ExtrasAndKeyGenerators(t *testing.T) {
	recording := testsupport.NewRecordingCache("recorded", nil)
	container := newTestContainer(t, DefaultConfig(),
		WithCache(recording),
		WithKeyGenerator("upper", cache.KeyGeneratorFunc(func(_ string, params ...any) any {
			return "KEY"
		})),
	)

	find, err := interceptor.Wrap(container.Dispatcher(), interceptor.Operation{
		Name:      "things.find",
		Cacheable: &interceptor.Cacheable{CacheNames: []string{"recorded"}, KeyGenerator: "upper"},
	}, func(ctx context.Context, args ...any) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := find(context.Background(), "anything"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := recording.Peek("KEY"); !ok || v != 7 {
		t.Errorf("expected 7 stored under KEY, got %v", v)
	}
}

func TestContainer_Metrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	cfg := DefaultConfig()
	cfg.MetricsPrefix = "app_"
	container := newTestContainer(t, cfg, WithRegisterer(reg))

	find, err := interceptor.Wrap(container.Dispatcher(), interceptor.Operation{
		Name:      "users.find",
		Cacheable: &interceptor.Cacheable{},
	}, func(ctx context.Context, args ...any) (string, error) {
		return "alice", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := find(context.Background(), "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count, err := testutil.GatherAndCount(reg, "app_cache_events_total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected a hit and a miss series, got %d", count)
	}

	if err := container.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err = testutil.GatherAndCount(reg, "app_cache_events_total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected series to be dropped on close, got %d", count)
	}
}

func TestContainer_Handler(t *testing.T) {
	container := newTestContainer(t, DefaultConfig())
	server := httptest.NewServer(container.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/caches/default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["name"] != "default" {
		t.Errorf("expected default, got %v", body["name"])
	}
}

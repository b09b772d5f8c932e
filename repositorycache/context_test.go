package repositorycache

import (
	"context"
	"testing"
)

func TestWithCacheScope(t *testing.T) {
	ctx := context.Background()
	if got := cacheScopeFromContext(ctx); got != DefaultScope {
		t.Errorf("expected %s, got %s", DefaultScope, got)
	}

	ctx = WithCacheScope(ctx, "tenant-1")
	ctx = WithCacheScope(ctx, " active ", "")
	if got := cacheScopeFromContext(ctx); got != "tenant-1:active" {
		t.Errorf("expected tenant-1:active, got %s", got)
	}

	if got := cacheScopeFromContext(WithCacheScope(context.Background())); got != DefaultScope {
		t.Errorf("expected an empty scope to be ignored, got %s", got)
	}
}

func TestWithoutCache(t *testing.T) {
	if cacheSkipped(context.Background()) {
		t.Error("expected cache to be used by default")
	}
	if !cacheSkipped(WithoutCache(context.Background())) {
		t.Error("expected cache to be skipped")
	}
}

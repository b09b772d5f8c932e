package cacheinfra

import (
	"context"

	"github.com/goliatone/go-cacheable/cache"
)

// NoopCache never stores anything. Every read is a miss.
type NoopCache struct {
	name string
}

var _ cache.SyncCache = (*NoopCache)(nil)

func NewNoopCache(name string) *NoopCache {
	return &NoopCache{name: name}
}

func (c *NoopCache) Name() string     { return c.name }
func (c *NoopCache) NativeCache() any { return nil }

func (c *NoopCache) Get(context.Context, any) (any, bool, error) {
	return nil, false, nil
}

func (c *NoopCache) GetOrCompute(ctx context.Context, _ any, compute cache.ComputeFunc) (any, error) {
	return compute(ctx)
}

func (c *NoopCache) Put(context.Context, any, any) error { return nil }

func (c *NoopCache) PutIfAbsent(context.Context, any, any) (any, bool, error) {
	return nil, false, nil
}

func (c *NoopCache) Invalidate(context.Context, any) error { return nil }
func (c *NoopCache) InvalidateAll(context.Context) error   { return nil }

func (c *NoopCache) Async() cache.AsyncCache {
	return cache.AsyncOf(c, cache.InlineExecutor)
}

func (c *NoopCache) Info(context.Context) (map[string]any, error) {
	return map[string]any{"backend": "noop", "size": 0}, nil
}

package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/viccon/sturdyc"
)

// MemoryCache is an in-process cache backed by a sturdyc client.
type MemoryCache struct {
	name   string
	cfg    Config
	client *sturdyc.Client[any]
}

var (
	_ cache.SyncCache    = (*MemoryCache)(nil)
	_ cache.InfoProvider = (*MemoryCache)(nil)
)

// NewMemoryCache validates cfg and builds a sturdyc client with it:
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New, the rest
// through ToSturdycOptions.
func NewMemoryCache(name string, cfg Config) (*MemoryCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryCache{name: name, cfg: cfg, client: client}, nil
}

func (c *MemoryCache) Name() string {
	return c.name
}

// NativeCache returns the *sturdyc.Client[any].
func (c *MemoryCache) NativeCache() any {
	return c.client
}

func (c *MemoryCache) Get(_ context.Context, key any) (any, bool, error) {
	v, ok := c.client.Get(cache.KeyString(key))
	return v, ok, nil
}

// fetchFailure and absentRecord stand in for nil fetch results. sturdyc
// rejects a nil value with ErrInvalidType and drops the fetch error with it.
type fetchFailure struct{ err error }

type absentRecord struct{}

// GetOrCompute relies on sturdyc's in-flight deduplication: concurrent callers
// for the same key share one compute call. With EarlyRefresh configured,
// sturdyc may also rerun compute in the background for hot keys.
func (c *MemoryCache) GetOrCompute(ctx context.Context, key any, compute cache.ComputeFunc) (any, error) {
	v, err := c.client.GetOrFetch(ctx, cache.KeyString(key), func(ctx context.Context) (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return fetchFailure{err: err}, err
		}
		if cache.IsAbsent(v) {
			// not stored unless missing record storage is enabled
			return absentRecord{}, sturdyc.ErrNotFound
		}
		return v, nil
	})

	switch r := v.(type) {
	case fetchFailure:
		return nil, r.err
	case absentRecord:
		return nil, nil
	}
	if errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *MemoryCache) Put(ctx context.Context, key, value any) error {
	if cache.IsAbsent(value) {
		return c.Invalidate(ctx, key)
	}
	c.client.Set(cache.KeyString(key), value)
	return nil
}

// PutIfAbsent goes through GetOrFetch so the check and the store happen under
// the same in-flight guard.
func (c *MemoryCache) PutIfAbsent(ctx context.Context, key, value any) (any, bool, error) {
	k := cache.KeyString(key)
	if cache.IsAbsent(value) {
		v, ok := c.client.Get(k)
		return v, ok, nil
	}

	if v, ok := c.client.Get(k); ok {
		return v, true, nil
	}

	var inserted atomic.Bool
	v, err := c.client.GetOrFetch(ctx, k, func(context.Context) (any, error) {
		inserted.Store(true)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	if inserted.Load() {
		return nil, false, nil
	}
	return v, true, nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key any) error {
	c.client.Delete(cache.KeyString(key))
	return nil
}

func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	for _, key := range c.client.ScanKeys() {
		c.client.Delete(key)
	}
	return nil
}

func (c *MemoryCache) Async() cache.AsyncCache {
	return cache.AsyncOf(c, cache.InlineExecutor)
}

func (c *MemoryCache) Info(_ context.Context) (map[string]any, error) {
	return map[string]any{
		"backend":             "memory",
		"size":                c.client.Size(),
		"capacity":            c.cfg.Capacity,
		"shards":              c.cfg.NumShards,
		"ttl":                 c.cfg.TTL.String(),
		"eviction_percentage": c.cfg.EvictionPercentage,
		"early_refresh":       c.cfg.EarlyRefresh != nil,
	}, nil
}

package cacheinfra

import (
	"context"
	"errors"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const redisScanBatch = 100

// RedisCache stores msgpack encoded values in Redis. Reads return
// cache.Encoded payloads.
type RedisCache struct {
	name   string
	client redis.UniversalClient
	opts   options
	group  singleflight.Group
}

var (
	_ cache.SyncCache    = (*RedisCache)(nil)
	_ cache.InfoProvider = (*RedisCache)(nil)
)

// NewRedisCache returns a cache named name backed by client.
// The caller owns the client lifecycle.
func NewRedisCache(name string, client redis.UniversalClient, opts ...Option) *RedisCache {
	return &RedisCache{
		name:   name,
		client: client,
		opts:   applyOptions(opts),
	}
}

func (c *RedisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.opts.queryTimeout)
}

func (c *RedisCache) prefixKey(key any) string {
	k := cache.KeyString(key)
	if c.opts.prefix == "" {
		return k
	}
	return c.opts.prefix + ":" + k
}

func (c *RedisCache) Name() string {
	return c.name
}

// NativeCache returns the redis.UniversalClient.
func (c *RedisCache) NativeCache() any {
	return c.client
}

func (c *RedisCache) Get(ctx context.Context, key any) (any, bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()

	data, err := c.client.Get(qctx, c.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cache.Encoded(data), true, nil
}

func (c *RedisCache) GetOrCompute(ctx context.Context, key any, compute cache.ComputeFunc) (any, error) {
	return computeOnce(ctx, &c.group, c, key, compute)
}

func (c *RedisCache) Put(ctx context.Context, key, value any) error {
	if cache.IsAbsent(value) {
		return c.Invalidate(ctx, key)
	}
	data, err := cache.Encode(value)
	if err != nil {
		return err
	}

	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.Set(qctx, c.prefixKey(key), []byte(data), c.opts.ttl).Err()
}

func (c *RedisCache) PutIfAbsent(ctx context.Context, key, value any) (any, bool, error) {
	if cache.IsAbsent(value) {
		return c.Get(ctx, key)
	}
	data, err := cache.Encode(value)
	if err != nil {
		return nil, false, err
	}

	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	stored, err := c.client.SetNX(qctx, c.prefixKey(key), []byte(data), c.opts.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if stored {
		return nil, false, nil
	}
	return c.Get(ctx, key)
}

func (c *RedisCache) Invalidate(ctx context.Context, key any) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.Del(qctx, c.prefixKey(key)).Err()
}

// InvalidateAll deletes every key under the configured prefix. Without a
// prefix it clears every key in the selected database.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += redisScanBatch {
		end := min(start+redisScanBatch, len(keys))
		qctx, cancel := c.queryCtx(ctx)
		err := c.client.Del(qctx, keys[start:end]...).Err()
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *RedisCache) scan(ctx context.Context) ([]string, error) {
	match := "*"
	if c.opts.prefix != "" {
		match = c.opts.prefix + ":*"
	}

	qctx, cancel := c.queryCtx(ctx)
	defer cancel()

	var keys []string
	iter := c.client.Scan(qctx, 0, match, redisScanBatch).Iterator()
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (c *RedisCache) Async() cache.AsyncCache {
	return cache.AsyncOf(c, cache.GoroutineExecutor)
}

func (c *RedisCache) Info(ctx context.Context) (map[string]any, error) {
	keys, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"backend": "redis",
		"prefix":  c.opts.prefix,
		"ttl":     c.opts.ttl.String(),
		"size":    len(keys),
	}, nil
}

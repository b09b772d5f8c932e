// Package stores builds the cache backends shipped with this module.
//
// Every constructor returns a cache.SyncCache:
//
//	users, err := stores.NewMemory("users", stores.DefaultMemoryConfig())
//	sessions := stores.NewRedis("sessions", redisClient, stores.WithPrefix("sess"))
//	reports, err := stores.OpenSQLite(ctx, "reports", "cache.db", stores.WithTTL(time.Hour))
//
// Redis and SQLite store msgpack payloads, so reads return cache.Encoded
// values. The dispatcher decodes them into the wrapped operation's result type.
package stores

import (
	"context"
	"time"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-cacheable/internal/cacheinfra"
	"github.com/redis/go-redis/v9"
)

// Option configures the Redis and SQLite backends.
type Option = cacheinfra.Option

// WithTTL sets how long stored entries live. Zero keeps entries until evicted.
func WithTTL(d time.Duration) Option { return cacheinfra.WithTTL(d) }

// WithQueryTimeout bounds every backend round trip.
func WithQueryTimeout(d time.Duration) Option { return cacheinfra.WithQueryTimeout(d) }

// WithExpiryCheck sets how often the SQLite backend purges expired rows.
func WithExpiryCheck(d time.Duration) Option { return cacheinfra.WithExpiryCheck(d) }

// WithPrefix namespaces Redis keys.
func WithPrefix(p string) Option { return cacheinfra.WithPrefix(p) }

// NewMemory returns a sturdyc backed in-process cache.
func NewMemory(name string, cfg MemoryConfig) (cache.SyncCache, error) {
	c, err := cacheinfra.NewMemoryCache(name, cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewRedis returns a cache stored in Redis. The caller owns client.
func NewRedis(name string, client redis.UniversalClient, opts ...Option) cache.SyncCache {
	return cacheinfra.NewRedisCache(name, client, opts...)
}

// SQLiteCache is a cache.SyncCache that must be closed.
type SQLiteCache interface {
	cache.SyncCache
	Close() error
}

// OpenSQLite returns a cache stored in the SQLite database at path.
func OpenSQLite(ctx context.Context, name, path string, opts ...Option) (SQLiteCache, error) {
	c, err := cacheinfra.OpenSQLiteCache(ctx, name, path, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewNoop returns a cache that never stores anything.
func NewNoop(name string) cache.SyncCache {
	return cacheinfra.NewNoopCache(name)
}

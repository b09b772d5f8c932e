package cacheinfra

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-cacheable/cache"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// SQLiteCache stores msgpack encoded values in a SQLite table. Several caches
// may share one database file; rows are scoped by cache name.
type SQLiteCache struct {
	name  string
	db    *sql.DB
	opts  options
	group singleflight.Group

	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
}

var (
	_ cache.SyncCache    = (*SQLiteCache)(nil)
	_ cache.InfoProvider = (*SQLiteCache)(nil)
)

// OpenSQLiteCache opens (or creates) the database at path and starts the
// background expiry sweep. An empty path or ":memory:" uses an in-memory
// database. Close releases the database.
func OpenSQLiteCache(ctx context.Context, name, path string, opts ...Option) (*SQLiteCache, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		cache TEXT NOT NULL,
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (cache, key)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`); err != nil {
		db.Close()
		return nil, err
	}

	childCtx, cancel := context.WithCancel(ctx)
	c := &SQLiteCache{
		name:   name,
		db:     db,
		opts:   applyOptions(opts),
		cancel: cancel,
	}

	c.waitGroup.Add(1)
	go c.run(childCtx)

	return c, nil
}

func (c *SQLiteCache) Name() string {
	return c.name
}

// NativeCache returns the *sql.DB.
func (c *SQLiteCache) NativeCache() any {
	return c.db
}

func (c *SQLiteCache) expiresAt() int64 {
	if c.opts.ttl <= 0 {
		return 0
	}
	return time.Now().Add(c.opts.ttl).UnixNano()
}

func (c *SQLiteCache) Get(ctx context.Context, key any) (any, bool, error) {
	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()

	k := cache.KeyString(key)
	var data []byte
	var expiresAt int64
	err := c.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache_entries WHERE cache = ? AND key = ?`, c.name, k,
	).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if expiresAt != 0 && expiresAt < time.Now().UnixNano() {
		_, _ = c.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE cache = ? AND key = ?`, c.name, k)
		return nil, false, nil
	}
	return cache.Encoded(data), true, nil
}

func (c *SQLiteCache) GetOrCompute(ctx context.Context, key any, compute cache.ComputeFunc) (any, error) {
	return computeOnce(ctx, &c.group, c, key, compute)
}

func (c *SQLiteCache) Put(ctx context.Context, key, value any) error {
	if cache.IsAbsent(value) {
		return c.Invalidate(ctx, key)
	}
	data, err := cache.Encode(value)
	if err != nil {
		return err
	}

	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()
	_, err = c.db.ExecContext(qctx,
		`INSERT INTO cache_entries (cache, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		c.name, cache.KeyString(key), []byte(data), c.expiresAt(),
	)
	return err
}

func (c *SQLiteCache) PutIfAbsent(ctx context.Context, key, value any) (any, bool, error) {
	if cache.IsAbsent(value) {
		return c.Get(ctx, key)
	}
	// drops an expired row so it does not block the insert
	if prev, found, err := c.Get(ctx, key); err != nil || found {
		return prev, found, err
	}
	data, err := cache.Encode(value)
	if err != nil {
		return nil, false, err
	}

	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()
	res, err := c.db.ExecContext(qctx,
		`INSERT INTO cache_entries (cache, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache, key) DO NOTHING`,
		c.name, cache.KeyString(key), []byte(data), c.expiresAt(),
	)
	if err != nil {
		return nil, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return nil, false, nil
	}
	return c.Get(ctx, key)
}

func (c *SQLiteCache) Invalidate(ctx context.Context, key any) error {
	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()
	_, err := c.db.ExecContext(qctx,
		`DELETE FROM cache_entries WHERE cache = ? AND key = ?`, c.name, cache.KeyString(key))
	return err
}

func (c *SQLiteCache) InvalidateAll(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()
	_, err := c.db.ExecContext(qctx, `DELETE FROM cache_entries WHERE cache = ?`, c.name)
	return err
}

func (c *SQLiteCache) Async() cache.AsyncCache {
	return cache.AsyncOf(c, cache.GoroutineExecutor)
}

func (c *SQLiteCache) Info(ctx context.Context) (map[string]any, error) {
	qctx, cancel := context.WithTimeout(ctx, c.opts.queryTimeout)
	defer cancel()

	var size int
	err := c.db.QueryRowContext(qctx,
		`SELECT COUNT(*) FROM cache_entries WHERE cache = ? AND (expires_at = 0 OR expires_at >= ?)`,
		c.name, time.Now().UnixNano(),
	).Scan(&size)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"backend": "sqlite",
		"ttl":     c.opts.ttl.String(),
		"size":    size,
	}, nil
}

// Close stops the expiry sweep and closes the database.
func (c *SQLiteCache) Close() error {
	var dbErr error
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
		dbErr = c.db.Close()
	})
	return dbErr
}

func (c *SQLiteCache) run(ctx context.Context) {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.opts.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = c.db.ExecContext(ctx,
				`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
		}
	}
}

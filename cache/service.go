package cache

import (
	"context"
	"sort"
)

// ComputeFunc produces the value for a missing key. It runs at most once per key
// when handed to SyncCache.GetOrCompute.
type ComputeFunc func(ctx context.Context) (any, error)

// SyncCache is the blocking contract every backend exposes to the dispatcher.
// Implementations must be safe for concurrent use.
type SyncCache interface {
	// Name returns the name the cache is registered under.
	Name() string

	// NativeCache returns the underlying client, for diagnostics only.
	NativeCache() any

	// Get returns the value stored under key. found is false on a miss.
	Get(ctx context.Context, key any) (value any, found bool, err error)

	// GetOrCompute returns the stored value or computes, stores and returns it.
	// compute runs at most once per key under concurrent callers. An error from
	// compute is returned as is and nothing is stored. An absent computed value
	// is returned but not stored.
	GetOrCompute(ctx context.Context, key any, compute ComputeFunc) (any, error)

	// Put stores value under key. An absent value invalidates the key.
	Put(ctx context.Context, key, value any) error

	// PutIfAbsent stores value only when key has no entry. It returns the
	// existing value and true when one was present.
	PutIfAbsent(ctx context.Context, key, value any) (previous any, found bool, err error)

	Invalidate(ctx context.Context, key any) error
	InvalidateAll(ctx context.Context) error

	// Async returns the non-blocking mirror of this cache.
	Async() AsyncCache
}

// Lookup is the outcome of an asynchronous read.
type Lookup struct {
	Value any
	Found bool
}

// AsyncCache mirrors SyncCache, returning pending handles instead of blocking.
type AsyncCache interface {
	Name() string
	Get(ctx context.Context, key any) *Future[Lookup]
	GetOrCompute(ctx context.Context, key any, compute ComputeFunc) *Future[any]
	Put(ctx context.Context, key, value any) *Future[bool]
	PutIfAbsent(ctx context.Context, key, value any) *Future[Lookup]
	Invalidate(ctx context.Context, key any) *Future[bool]
	InvalidateAll(ctx context.Context) *Future[bool]
}

// InfoProvider is implemented by caches able to report summary statistics.
type InfoProvider interface {
	Info(ctx context.Context) (map[string]any, error)
}

// Named is the minimal view of a cache handed to error policies.
type Named interface {
	Name() string
}

// Resolver looks up a cache by name.
type Resolver interface {
	Cache(name string) (SyncCache, error)
}

// Manager is a Resolver that can enumerate its caches.
type Manager interface {
	Resolver
	Names() []string
}

type staticManager struct {
	caches map[string]SyncCache
	names  []string
}

// NewManager returns a Manager over a fixed set of caches.
func NewManager(caches ...SyncCache) (Manager, error) {
	m := &staticManager{caches: make(map[string]SyncCache, len(caches))}
	for _, c := range caches {
		if c == nil {
			continue
		}
		name := c.Name()
		if _, exists := m.caches[name]; exists {
			return nil, duplicateCacheError(name)
		}
		m.caches[name] = c
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	return m, nil
}

func (m *staticManager) Cache(name string) (SyncCache, error) {
	c, ok := m.caches[name]
	if !ok {
		return nil, cacheNotFoundError(name)
	}
	return c, nil
}

func (m *staticManager) Names() []string {
	return append([]string(nil), m.names...)
}

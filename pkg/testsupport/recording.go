package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-cacheable/cache"
	"golang.org/x/sync/singleflight"
)

// Operations recorded by RecordingCache.
const (
	OpGet           = "get"
	OpGetOrCompute  = "get_or_compute"
	OpPut           = "put"
	OpPutIfAbsent   = "put_if_absent"
	OpInvalidate    = "invalidate"
	OpInvalidateAll = "invalidate_all"
)

// Call is one recorded cache call. Key is empty for invalidate all.
type Call struct {
	Cache string
	Op    string
	Key   string
}

// Journal collects calls from several caches in the order they happened.
type Journal struct {
	mu    sync.Mutex
	calls []Call
}

func (j *Journal) record(c Call) {
	j.mu.Lock()
	j.calls = append(j.calls, c)
	j.mu.Unlock()
}

// Calls returns a copy of the recorded calls.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Call(nil), j.calls...)
}

// Reset forgets every recorded call.
func (j *Journal) Reset() {
	j.mu.Lock()
	j.calls = nil
	j.mu.Unlock()
}

// RecordingCache is an in-memory cache.SyncCache that records every call and
// can be told to fail a given operation.
type RecordingCache struct {
	name    string
	journal *Journal
	group   singleflight.Group

	mu       sync.Mutex
	data     map[string]any
	failures map[string]error
}

var (
	_ cache.SyncCache    = (*RecordingCache)(nil)
	_ cache.InfoProvider = (*RecordingCache)(nil)
)

// NewRecordingCache returns an empty cache. Calls go to journal, or to a
// private journal when journal is nil.
func NewRecordingCache(name string, journal *Journal) *RecordingCache {
	if journal == nil {
		journal = &Journal{}
	}
	return &RecordingCache{
		name:     name,
		journal:  journal,
		data:     make(map[string]any),
		failures: make(map[string]error),
	}
}

// Fail makes every later call of op return err. A nil err clears the failure.
func (c *RecordingCache) Fail(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
		return
	}
	c.failures[op] = err
}

// Seed stores value without recording a call.
func (c *RecordingCache) Seed(key, value any) {
	c.mu.Lock()
	c.data[cache.KeyString(key)] = value
	c.mu.Unlock()
}

// Peek reads key without recording a call.
func (c *RecordingCache) Peek(key any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[cache.KeyString(key)]
	return v, ok
}

// Len returns the number of stored entries.
func (c *RecordingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Journal returns the journal this cache records to.
func (c *RecordingCache) Journal() *Journal {
	return c.journal
}

// Calls returns the calls made on this cache only.
func (c *RecordingCache) Calls() []Call {
	var out []Call
	for _, call := range c.journal.Calls() {
		if call.Cache == c.name {
			out = append(out, call)
		}
	}
	return out
}

// CountOf returns how many times op was called on this cache.
func (c *RecordingCache) CountOf(op string) int {
	n := 0
	for _, call := range c.Calls() {
		if call.Op == op {
			n++
		}
	}
	return n
}

func (c *RecordingCache) begin(op string, key any) error {
	k := ""
	if op != OpInvalidateAll {
		k = cache.KeyString(key)
	}
	c.journal.record(Call{Cache: c.name, Op: op, Key: k})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[op]
}

func (c *RecordingCache) Name() string {
	return c.name
}

// NativeCache returns the backing map. Callers must not mutate it.
func (c *RecordingCache) NativeCache() any {
	return c.data
}

func (c *RecordingCache) Get(_ context.Context, key any) (any, bool, error) {
	if err := c.begin(OpGet, key); err != nil {
		return nil, false, err
	}
	v, ok := c.Peek(key)
	return v, ok, nil
}

func (c *RecordingCache) GetOrCompute(ctx context.Context, key any, compute cache.ComputeFunc) (any, error) {
	if err := c.begin(OpGetOrCompute, key); err != nil {
		return nil, err
	}
	if v, ok := c.Peek(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(cache.KeyString(key), func() (any, error) {
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if !cache.IsAbsent(v) {
			c.Seed(key, v)
		}
		return v, nil
	})
	return v, err
}

func (c *RecordingCache) Put(_ context.Context, key, value any) error {
	if err := c.begin(OpPut, key); err != nil {
		return err
	}
	if cache.IsAbsent(value) {
		c.remove(key)
		return nil
	}
	c.Seed(key, value)
	return nil
}

func (c *RecordingCache) PutIfAbsent(_ context.Context, key, value any) (any, bool, error) {
	if err := c.begin(OpPutIfAbsent, key); err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cache.KeyString(key)
	if prev, ok := c.data[k]; ok {
		return prev, true, nil
	}
	if !cache.IsAbsent(value) {
		c.data[k] = value
	}
	return nil, false, nil
}

func (c *RecordingCache) Invalidate(_ context.Context, key any) error {
	if err := c.begin(OpInvalidate, key); err != nil {
		return err
	}
	c.remove(key)
	return nil
}

func (c *RecordingCache) InvalidateAll(context.Context) error {
	if err := c.begin(OpInvalidateAll, nil); err != nil {
		return err
	}
	c.mu.Lock()
	clear(c.data)
	c.mu.Unlock()
	return nil
}

func (c *RecordingCache) remove(key any) {
	c.mu.Lock()
	delete(c.data, cache.KeyString(key))
	c.mu.Unlock()
}

// Async runs the mirror inline so recorded order matches the sync path.
func (c *RecordingCache) Async() cache.AsyncCache {
	return cache.AsyncOf(c, cache.InlineExecutor)
}

func (c *RecordingCache) Info(context.Context) (map[string]any, error) {
	return map[string]any{
		"backend": "recording",
		"size":    c.Len(),
	}, nil
}

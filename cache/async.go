package cache

import "context"

// Executor decides where the asynchronous mirror runs a blocking call.
type Executor func(task func())

// InlineExecutor runs tasks on the calling goroutine. Suitable for in-memory
// backends whose calls never block for long.
func InlineExecutor(task func()) { task() }

// GoroutineExecutor runs every task on its own goroutine.
func GoroutineExecutor(task func()) { go task() }

type asyncCache struct {
	cache SyncCache
	exec  Executor
}

// AsyncOf builds the asynchronous mirror of c. A nil exec runs calls on their
// own goroutine. GetOrCompute always runs on its own goroutine because the
// compute callback may wait on other pending work.
func AsyncOf(c SyncCache, exec Executor) AsyncCache {
	if exec == nil {
		exec = GoroutineExecutor
	}
	return &asyncCache{cache: c, exec: exec}
}

func submit[T any](exec Executor, fn func() (T, error)) *Future[T] {
	f, complete := NewFuture[T]()
	exec(func() {
		complete(fn())
	})
	return f
}

func (a *asyncCache) Name() string {
	return a.cache.Name()
}

func (a *asyncCache) Get(ctx context.Context, key any) *Future[Lookup] {
	return submit(a.exec, func() (Lookup, error) {
		v, found, err := a.cache.Get(ctx, key)
		return Lookup{Value: v, Found: found}, err
	})
}

func (a *asyncCache) GetOrCompute(ctx context.Context, key any, compute ComputeFunc) *Future[any] {
	return Go(ctx, func(ctx context.Context) (any, error) {
		return a.cache.GetOrCompute(ctx, key, compute)
	})
}

func (a *asyncCache) Put(ctx context.Context, key, value any) *Future[bool] {
	return submit(a.exec, func() (bool, error) {
		return true, a.cache.Put(ctx, key, value)
	})
}

func (a *asyncCache) PutIfAbsent(ctx context.Context, key, value any) *Future[Lookup] {
	return submit(a.exec, func() (Lookup, error) {
		prev, found, err := a.cache.PutIfAbsent(ctx, key, value)
		return Lookup{Value: prev, Found: found}, err
	})
}

func (a *asyncCache) Invalidate(ctx context.Context, key any) *Future[bool] {
	return submit(a.exec, func() (bool, error) {
		return true, a.cache.Invalidate(ctx, key)
	})
}

func (a *asyncCache) InvalidateAll(ctx context.Context) *Future[bool] {
	return submit(a.exec, func() (bool, error) {
		return true, a.cache.InvalidateAll(ctx)
	})
}

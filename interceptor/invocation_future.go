package interceptor

import (
	"context"

	"github.com/goliatone/go-cacheable/cache"
)

// runFuture is the non-blocking counterpart of runSync. Backend calls go
// through each cache's async mirror and every synchronous step is chained onto
// the returned future, which fails with the first fatal error.
func (inv *invocation) runFuture(ctx context.Context, proceed func(context.Context) *cache.Future[any]) *cache.Future[any] {
	p := inv.plan
	if !p.ReadEligible && !p.HasWrites() {
		return proceed(ctx)
	}

	var read *cache.Future[any]
	switch {
	case p.ReadEligible && p.Atomic:
		read = inv.readAtomicFuture(ctx, proceed)
	case p.ReadEligible:
		read = inv.readChainFuture(ctx, proceed)
	default:
		read = proceed(ctx)
	}

	return cache.Then(read, func(value any) *cache.Future[any] {
		return inv.applyWritesFuture(ctx, value)
	})
}

func (inv *invocation) readAtomicFuture(ctx context.Context, proceed func(context.Context) *cache.Future[any]) *cache.Future[any] {
	caches, err := inv.d.caches(inv.plan.CacheNames[:1])
	if err != nil {
		return cache.Failed[any](err)
	}
	c := caches[0]
	key := inv.plan.key(inv.args)

	var (
		computed bool
		result   any
	)
	pending := c.Async().GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		value, err := proceed(ctx).Await(ctx)
		if err != nil {
			return nil, &computeError{err: err}
		}
		computed, result = true, value
		return value, nil
	})

	out, complete := cache.NewFuture[any]()
	pending.OnComplete(func(v any, err error) {
		value, rerun, err := inv.atomicOutcome(ctx, c, key, v, err, computed, result)
		if rerun {
			proceed(ctx).OnComplete(complete)
			return
		}
		complete(value, err)
	})
	return out
}

func (inv *invocation) readChainFuture(ctx context.Context, proceed func(context.Context) *cache.Future[any]) *cache.Future[any] {
	caches, err := inv.d.caches(inv.plan.CacheNames)
	if err != nil {
		return cache.Failed[any](err)
	}
	key := inv.plan.key(inv.args)

	out, complete := cache.NewFuture[any]()
	var next func(i int)
	next = func(i int) {
		if i == len(caches) {
			cache.Then(proceed(ctx), func(value any) *cache.Future[any] {
				return valueAfter(inv.d.storeFuture(ctx, caches, key, value), value)
			}).OnComplete(complete)
			return
		}

		c := caches[i]
		c.Async().Get(ctx, key).OnComplete(func(l cache.Lookup, err error) {
			value, hit, err := inv.lookup(ctx, c, key, l.Value, l.Found, err)
			switch {
			case err != nil:
				complete(nil, err)
			case hit:
				complete(value, nil)
			default:
				next(i + 1)
			}
		})
	}
	next(0)
	return out
}

func (inv *invocation) applyWritesFuture(ctx context.Context, value any) *cache.Future[any] {
	d, p := inv.d, inv.plan
	chain := cache.Resolved(true)

	for _, step := range p.Puts {
		chain = cache.Then(chain, func(bool) *cache.Future[bool] {
			if step.Async {
				d.submit(ctx, p.Operation, func(ctx context.Context) error {
					return d.putStep(ctx, d.asyncPolicy, p.Operation, step, inv.args, value)
				})
				return cache.Resolved(true)
			}
			caches, err := d.caches(step.CacheNames)
			if err != nil {
				return cache.Failed[bool](err)
			}
			return d.storeFuture(ctx, caches, step.keyFor(p.Operation, inv.args), value)
		})
	}

	for _, step := range p.Invalidates {
		chain = cache.Then(chain, func(bool) *cache.Future[bool] {
			if step.Async {
				d.submit(ctx, p.Operation, func(ctx context.Context) error {
					return d.invalidateStep(ctx, d.asyncPolicy, p.Operation, step, inv.args)
				})
				return cache.Resolved(true)
			}
			return d.invalidateFuture(ctx, p.Operation, step, inv.args)
		})
	}

	return valueAfter(chain, value)
}

// storeFuture writes value to every cache concurrently. An absent value
// removes the key instead.
func (d *Dispatcher) storeFuture(ctx context.Context, caches []cache.SyncCache, key, value any) *cache.Future[bool] {
	absent := cache.IsAbsent(value)
	pending := make([]*cache.Future[bool], len(caches))
	for i, c := range caches {
		var f *cache.Future[bool]
		if absent {
			f = c.Async().Invalidate(ctx, key)
		} else {
			f = c.Async().Put(ctx, key, value)
		}
		pending[i] = d.recoverWith(f, func(err error) cache.Verdict {
			return d.handlePut(ctx, d.policy, c, key, value, err)
		})
	}
	return allDone(pending)
}

func (d *Dispatcher) invalidateFuture(ctx context.Context, operation string, step Step, args []any) *cache.Future[bool] {
	caches, err := d.caches(step.CacheNames)
	if err != nil {
		return cache.Failed[bool](err)
	}

	pending := make([]*cache.Future[bool], len(caches))
	if step.All {
		for i, c := range caches {
			pending[i] = d.recoverWith(c.Async().InvalidateAll(ctx), func(err error) cache.Verdict {
				return d.handleInvalidateAll(ctx, d.policy, c, err)
			})
		}
		return allDone(pending)
	}

	key := step.keyFor(operation, args)
	for i, c := range caches {
		pending[i] = d.recoverWith(c.Async().Invalidate(ctx, key), func(err error) cache.Verdict {
			return d.handleInvalidate(ctx, d.policy, c, key, err)
		})
	}
	return allDone(pending)
}

// recoverWith routes a failure of f through verdict and swallows it unless it
// is fatal.
func (d *Dispatcher) recoverWith(f *cache.Future[bool], verdict func(error) cache.Verdict) *cache.Future[bool] {
	return cache.Recover(f, func(err error) *cache.Future[bool] {
		if verdict(err) == cache.Fatal {
			return cache.Failed[bool](err)
		}
		return cache.Resolved(true)
	})
}

func allDone(pending []*cache.Future[bool]) *cache.Future[bool] {
	return cache.Map(cache.All(pending...), func([]bool) (bool, error) {
		return true, nil
	})
}

func valueAfter[T any](f *cache.Future[T], value any) *cache.Future[any] {
	return cache.Map(f, func(T) (any, error) {
		return value, nil
	})
}

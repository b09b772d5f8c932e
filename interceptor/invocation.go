package interceptor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-errors"
)

// invocation is the state of one dispatch.
type invocation struct {
	d    *Dispatcher
	plan *Plan
	args []any
	// decode converts a value read from a cache into the wrapped result type
	decode func(any) (any, error)
	hit    atomic.Bool
}

func (d *Dispatcher) invocation(plan *Plan, args []any, decode func(any) (any, error)) *invocation {
	return &invocation{d: d, plan: plan, args: args, decode: decode}
}

// runSync reads, runs the operation on a miss, then applies puts and
// invalidations in declared order, blocking until all synchronous steps are
// done.
func (inv *invocation) runSync(ctx context.Context, proceed cache.ComputeFunc) (any, error) {
	p := inv.plan
	if !p.ReadEligible && !p.HasWrites() {
		return proceed(ctx)
	}

	var (
		value any
		err   error
	)
	switch {
	case p.ReadEligible && p.Atomic:
		value, err = inv.readAtomic(ctx, proceed)
	case p.ReadEligible:
		value, err = inv.readChain(ctx, proceed)
	default:
		value, err = proceed(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := inv.applyWrites(ctx, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (inv *invocation) readAtomic(ctx context.Context, proceed cache.ComputeFunc) (any, error) {
	caches, err := inv.d.caches(inv.plan.CacheNames[:1])
	if err != nil {
		return nil, err
	}
	c := caches[0]
	key := inv.plan.key(inv.args)

	var (
		computed bool
		result   any
	)
	v, err := c.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		value, err := proceed(ctx)
		if err != nil {
			return nil, &computeError{err: err}
		}
		computed, result = true, value
		return value, nil
	})

	value, rerun, err := inv.atomicOutcome(ctx, c, key, v, err, computed, result)
	if err != nil {
		return nil, err
	}
	if rerun {
		return proceed(ctx)
	}
	return value, nil
}

// atomicOutcome interprets a get-or-compute result. rerun is set when the
// backend failed, the policy recovered and the operation has not run yet.
func (inv *invocation) atomicOutcome(ctx context.Context, c cache.SyncCache, key, v any, err error, computed bool, result any) (value any, rerun bool, _ error) {
	if err == nil {
		if computed {
			inv.miss(ctx, c)
			return result, false, nil
		}
		if v, err = inv.decode(v); err == nil {
			inv.markHit(ctx, c)
			return v, false, nil
		}
	}

	// the operation's own failure is returned as is
	var ce *computeError
	if errors.As(err, &ce) {
		return nil, false, ce.err
	}
	if inv.d.handleLoad(ctx, inv.d.policy, c, key, err) == cache.Fatal {
		return nil, false, err
	}
	if computed {
		return result, false, nil
	}
	return nil, true, nil
}

func (inv *invocation) readChain(ctx context.Context, proceed cache.ComputeFunc) (any, error) {
	caches, err := inv.d.caches(inv.plan.CacheNames)
	if err != nil {
		return nil, err
	}
	key := inv.plan.key(inv.args)

	for _, c := range caches {
		v, found, err := c.Get(ctx, key)
		value, hit, err := inv.lookup(ctx, c, key, v, found, err)
		if err != nil {
			return nil, err
		}
		if hit {
			return value, nil
		}
	}

	value, err := proceed(ctx)
	if err != nil {
		return nil, err
	}
	if err := inv.d.store(ctx, inv.d.policy, caches, key, value); err != nil {
		return nil, err
	}
	return value, nil
}

// lookup interprets one read of the chain. A non nil error means the policy
// declared a backend failure fatal.
func (inv *invocation) lookup(ctx context.Context, c cache.SyncCache, key, v any, found bool, err error) (any, bool, error) {
	if err == nil && found && !cache.IsAbsent(v) {
		if v, err = inv.decode(v); err == nil {
			inv.markHit(ctx, c)
			return v, true, nil
		}
	}
	if err != nil {
		if inv.d.handleLoad(ctx, inv.d.policy, c, key, err) == cache.Fatal {
			return nil, false, err
		}
		return nil, false, nil
	}
	inv.miss(ctx, c)
	return nil, false, nil
}

func (inv *invocation) markHit(ctx context.Context, c cache.SyncCache) {
	inv.hit.Store(true)
	inv.d.recorder.RecordHit(c.Name(), inv.plan.Operation)
	inv.d.logger.LogAttrs(ctx, slog.LevelDebug, "cache hit",
		slog.String("cache", c.Name()), slog.String("operation", inv.plan.Operation))
}

func (inv *invocation) miss(ctx context.Context, c cache.SyncCache) {
	inv.d.recorder.RecordMiss(c.Name(), inv.plan.Operation)
	inv.d.logger.LogAttrs(ctx, slog.LevelDebug, "cache miss",
		slog.String("cache", c.Name()), slog.String("operation", inv.plan.Operation))
}

func (inv *invocation) applyWrites(ctx context.Context, value any) error {
	d, p := inv.d, inv.plan

	for _, step := range p.Puts {
		if step.Async {
			d.submit(ctx, p.Operation, func(ctx context.Context) error {
				return d.putStep(ctx, d.asyncPolicy, p.Operation, step, inv.args, value)
			})
			continue
		}
		if err := d.putStep(ctx, d.policy, p.Operation, step, inv.args, value); err != nil {
			return err
		}
	}

	for _, step := range p.Invalidates {
		if step.Async {
			d.submit(ctx, p.Operation, func(ctx context.Context) error {
				return d.invalidateStep(ctx, d.asyncPolicy, p.Operation, step, inv.args)
			})
			continue
		}
		if err := d.invalidateStep(ctx, d.policy, p.Operation, step, inv.args); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) putStep(ctx context.Context, policy cache.ErrorPolicy, operation string, step Step, args []any, value any) error {
	caches, err := d.caches(step.CacheNames)
	if err != nil {
		return err
	}
	return d.store(ctx, policy, caches, step.keyFor(operation, args), value)
}

// store writes value to every cache. An absent value removes the key instead.
func (d *Dispatcher) store(ctx context.Context, policy cache.ErrorPolicy, caches []cache.SyncCache, key, value any) error {
	absent := cache.IsAbsent(value)
	for _, c := range caches {
		var err error
		if absent {
			err = c.Invalidate(ctx, key)
		} else {
			err = c.Put(ctx, key, value)
		}
		if err != nil && d.handlePut(ctx, policy, c, key, value, err) == cache.Fatal {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) invalidateStep(ctx context.Context, policy cache.ErrorPolicy, operation string, step Step, args []any) error {
	caches, err := d.caches(step.CacheNames)
	if err != nil {
		return err
	}

	if step.All {
		for _, c := range caches {
			if err := c.InvalidateAll(ctx); err != nil && d.handleInvalidateAll(ctx, policy, c, err) == cache.Fatal {
				return err
			}
		}
		return nil
	}

	key := step.keyFor(operation, args)
	for _, c := range caches {
		if err := c.Invalidate(ctx, key); err != nil && d.handleInvalidate(ctx, policy, c, key, err) == cache.Fatal {
			return err
		}
	}
	return nil
}

// submit hands an async step to the pool without waiting for queue space.
// The step runs detached from the caller's cancellation and its failure is
// only logged. A step that finds the queue full or the pool closed is dropped.
func (d *Dispatcher) submit(ctx context.Context, operation string, step func(context.Context) error) {
	taskCtx := context.WithoutCancel(ctx)
	err := d.pool.TrySubmit(func() {
		if err := step(taskCtx); err != nil {
			d.logger.LogAttrs(taskCtx, slog.LevelWarn, "async cache step failed",
				slog.String("operation", operation), slog.String("error", err.Error()))
		}
	})
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "async cache step dropped",
			slog.String("operation", operation), slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) handleLoad(ctx context.Context, policy cache.ErrorPolicy, c cache.SyncCache, key any, err error) cache.Verdict {
	d.recorder.RecordError(c.Name(), ErrorKindLoad)
	return policy.HandleLoadError(ctx, c, key, err)
}

func (d *Dispatcher) handlePut(ctx context.Context, policy cache.ErrorPolicy, c cache.SyncCache, key, value any, err error) cache.Verdict {
	d.recorder.RecordError(c.Name(), ErrorKindPut)
	return policy.HandlePutError(ctx, c, key, value, err)
}

func (d *Dispatcher) handleInvalidate(ctx context.Context, policy cache.ErrorPolicy, c cache.SyncCache, key any, err error) cache.Verdict {
	d.recorder.RecordError(c.Name(), ErrorKindInvalidate)
	return policy.HandleInvalidateError(ctx, c, key, err)
}

func (d *Dispatcher) handleInvalidateAll(ctx context.Context, policy cache.ErrorPolicy, c cache.SyncCache, err error) cache.Verdict {
	d.recorder.RecordError(c.Name(), ErrorKindInvalidateAll)
	return policy.HandleInvalidateAllError(ctx, c, err)
}

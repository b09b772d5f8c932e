package interceptor

import (
	"context"
	"iter"

	"github.com/goliatone/go-cacheable/cache"
)

// Func is an operation returning a value.
type Func[R any] func(ctx context.Context, args ...any) (R, error)

// ActionFunc is an operation without a result.
type ActionFunc func(ctx context.Context, args ...any) error

// FutureFunc is an operation returning a pending result. It must not return a
// nil future.
type FutureFunc[R any] func(ctx context.Context, args ...any) *cache.Future[R]

// StreamFunc is an operation producing a sequence of results.
type StreamFunc[R any] func(ctx context.Context, args ...any) iter.Seq2[R, error]

// Wrap registers op and returns fn decorated with its cache declarations.
// The returned function blocks until every synchronous step has run.
//
//	find, err := interceptor.Wrap(d, interceptor.Operation{
//		Name:      "users.find",
//		Cacheable: &interceptor.Cacheable{CacheNames: []string{"users"}},
//	}, repo.Find)
func Wrap[R any](d *Dispatcher, op Operation, fn Func[R]) (Func[R], error) {
	if err := d.Register(op); err != nil {
		return nil, err
	}

	name, condition := op.Name, op.Condition
	return func(ctx context.Context, args ...any) (R, error) {
		var zero R
		if condition != nil && !condition(args) {
			return fn(ctx, args...)
		}

		plan, err := d.Plan(name)
		if err != nil {
			return zero, err
		}

		inv := d.invocation(plan, args, decodeAs[R])
		ctx, span := d.startSpan(ctx, plan)
		v, err := inv.runSync(ctx, func(ctx context.Context) (any, error) {
			return fn(ctx, args...)
		})
		endSpan(span, inv, err)
		if err != nil {
			return zero, err
		}
		return cache.As[R](v)
	}, nil
}

// WrapAction registers op as a void operation and returns fn decorated with
// its invalidations. Puts and reads do not apply to actions.
func WrapAction(d *Dispatcher, op Operation, fn ActionFunc) (ActionFunc, error) {
	op.Void = true
	wrapped, err := Wrap[struct{}](d, op, func(ctx context.Context, args ...any) (struct{}, error) {
		return struct{}{}, fn(ctx, args...)
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args ...any) error {
		_, err := wrapped(ctx, args...)
		return err
	}, nil
}

// WrapFuture registers op and returns fn decorated with its cache
// declarations. Backend calls go through the async mirror of each cache and
// the returned future settles after every synchronous step.
func WrapFuture[R any](d *Dispatcher, op Operation, fn FutureFunc[R]) (FutureFunc[R], error) {
	if err := d.Register(op); err != nil {
		return nil, err
	}

	name, condition := op.Name, op.Condition
	return func(ctx context.Context, args ...any) *cache.Future[R] {
		if condition != nil && !condition(args) {
			return fn(ctx, args...)
		}

		plan, err := d.Plan(name)
		if err != nil {
			return cache.Failed[R](err)
		}

		inv := d.invocation(plan, args, decodeAs[R])
		ctx, span := d.startSpan(ctx, plan)
		out := inv.runFuture(ctx, func(ctx context.Context) *cache.Future[any] {
			return cache.Map(fn(ctx, args...), func(r R) (any, error) {
				return r, nil
			})
		})
		out.OnComplete(func(_ any, err error) {
			endSpan(span, inv, err)
		})
		return cache.Map(out, cache.As[R])
	}, nil
}

// WrapStream registers op and returns fn decorated with its cache
// declarations. Only the first element of the sequence is cached: the
// decorated sequence yields at most one element, and none when the cached or
// produced value is absent. Dispatch happens when the sequence is iterated.
func WrapStream[R any](d *Dispatcher, op Operation, fn StreamFunc[R]) (StreamFunc[R], error) {
	if err := d.Register(op); err != nil {
		return nil, err
	}

	name, condition := op.Name, op.Condition
	return func(ctx context.Context, args ...any) iter.Seq2[R, error] {
		if condition != nil && !condition(args) {
			return fn(ctx, args...)
		}

		return func(yield func(R, error) bool) {
			var zero R
			plan, err := d.Plan(name)
			if err != nil {
				yield(zero, err)
				return
			}

			inv := d.invocation(plan, args, decodeAs[R])
			ctx, span := d.startSpan(ctx, plan)
			v, err := inv.runFuture(ctx, func(ctx context.Context) *cache.Future[any] {
				first, err := firstOf(fn(ctx, args...))
				if err != nil {
					return cache.Failed[any](err)
				}
				return cache.Resolved(first)
			}).Await(ctx)
			endSpan(span, inv, err)

			if err != nil {
				yield(zero, err)
				return
			}
			if cache.IsAbsent(v) {
				return
			}
			r, err := cache.As[R](v)
			if err != nil {
				yield(zero, err)
				return
			}
			yield(r, nil)
		}
	}, nil
}

// firstOf pulls the first element of seq. An empty sequence yields nil.
func firstOf[R any](seq iter.Seq2[R, error]) (any, error) {
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

func decodeAs[R any](v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	r, err := cache.As[R](v)
	if err != nil {
		return nil, err
	}
	return r, nil
}

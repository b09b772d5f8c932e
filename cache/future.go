package cache

import (
	"context"
	"fmt"
	"sync"
)

// Future is a pending result that completes exactly once.
// Callbacks registered with OnComplete run on the goroutine that completes the
// future, or inline when the future is already complete.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	callbacks []func(T, error)
}

// CompleteFunc settles a Future. Calls after the first are ignored.
type CompleteFunc[T any] func(value T, err error)

// NewFuture returns a pending future and the function that settles it.
func NewFuture[T any]() (*Future[T], CompleteFunc[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.complete
}

// Resolved returns a future already completed with value.
func Resolved[T any](value T) *Future[T] {
	f, complete := NewFuture[T]()
	complete(value, nil)
	return f
}

// Failed returns a future already completed with err.
func Failed[T any](err error) *Future[T] {
	f, complete := NewFuture[T]()
	var zero T
	complete(zero, err)
	return f
}

// Go runs fn on a new goroutine and returns its pending result.
// A panic inside fn fails the future.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f, complete := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				complete(zero, fmt.Errorf("future panicked: %v", r))
			}
		}()
		complete(fn(ctx))
	}()
	return f
}

func (f *Future[T]) complete(value T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the future completes.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// OnComplete registers cb to run once the future settles.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()
	cb(value, err)
}

// Then chains fn onto a successful completion of f. Errors skip fn.
func Then[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out, complete := NewFuture[U]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			var zero U
			complete(zero, err)
			return
		}
		next := fn(value)
		if next == nil {
			var zero U
			complete(zero, nil)
			return
		}
		next.OnComplete(complete)
	})
	return out
}

// Map transforms the value of a successful completion of f.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out, complete := NewFuture[U]()
	f.OnComplete(func(value T, err error) {
		if err != nil {
			var zero U
			complete(zero, err)
			return
		}
		complete(fn(value))
	})
	return out
}

// Recover lets fn replace a failed completion of f.
func Recover[T any](f *Future[T], fn func(error) *Future[T]) *Future[T] {
	out, complete := NewFuture[T]()
	f.OnComplete(func(value T, err error) {
		if err == nil {
			complete(value, nil)
			return
		}
		fn(err).OnComplete(complete)
	})
	return out
}

// All completes when every future has completed, with the values in order, or
// with the first error observed.
func All[T any](futures ...*Future[T]) *Future[[]T] {
	out, complete := NewFuture[[]T]()
	if len(futures) == 0 {
		complete(nil, nil)
		return out
	}

	var (
		mu      sync.Mutex
		pending = len(futures)
		values  = make([]T, len(futures))
	)
	for i, f := range futures {
		f.OnComplete(func(value T, err error) {
			if err != nil {
				complete(nil, err)
				return
			}
			mu.Lock()
			values[i] = value
			pending--
			last := pending == 0
			mu.Unlock()
			if last {
				complete(values, nil)
			}
		})
	}
	return out
}

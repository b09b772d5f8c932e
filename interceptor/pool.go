package interceptor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultQueueSize is the queue length used when NewPool is given none.
const DefaultQueueSize = 256

// Pool runs fire-and-forget cache work on a fixed set of workers draining a
// bounded queue.
type Pool struct {
	tasks  chan func()
	group  errgroup.Group
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger that receives recovered task panics.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool starts size workers sharing a queue of the given length. A size of
// zero or less uses GOMAXPROCS workers.
func NewPool(size, queue int, opts ...PoolOption) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if queue <= 0 {
		queue = DefaultQueueSize
	}

	p := &Pool{
		tasks:  make(chan func(), queue),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for range size {
		p.group.Go(func() error {
			for task := range p.tasks {
				p.run(task)
			}
			return nil
		})
	}
	return p
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("cache task panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Submit queues task. It blocks while the queue is full, and fails with
// ErrPoolClosed once Close was called or with ctx.Err() if ctx ends first.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues task without waiting. It fails with ErrPoolFull when the
// queue has no room and with ErrPoolClosed once Close was called.
func (p *Pool) TrySubmit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Close stops accepting tasks and waits for queued ones to finish, or for ctx
// to end.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- p.group.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package interceptor

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Dispatcher runs the cache-aside protocol for registered operations.
type Dispatcher struct {
	resolver cache.Resolver
	keys     *cache.KeyGeneratorRegistry

	policy      cache.ErrorPolicy
	asyncPolicy cache.ErrorPolicy
	pool        *Pool

	recorder Recorder
	tracer   trace.Tracer
	logger   *slog.Logger

	defaultCacheNames   []string
	defaultKeyGenerator string

	operations *xsync.MapOf[string, Operation]
	plans      *xsync.MapOf[string, *Plan]
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithErrorPolicy sets the policy consulted for backend failures on the
// caller's path. Defaults to cache.FatalPolicy.
func WithErrorPolicy(p cache.ErrorPolicy) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.policy = p
		}
	}
}

// WithAsyncErrorPolicy sets the policy consulted for failures of async puts
// and invalidations. Its verdict is only logged since nobody is waiting for
// the outcome. Defaults to a cache.RecoverPolicy.
func WithAsyncErrorPolicy(p cache.ErrorPolicy) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.asyncPolicy = p
		}
	}
}

func WithKeyGenerators(r *cache.KeyGeneratorRegistry) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.keys = r
		}
	}
}

// WithDefaultKeyGenerator names the generator used when neither a declaration
// nor its operation config names one.
func WithDefaultKeyGenerator(name string) Option {
	return func(d *Dispatcher) {
		d.defaultKeyGenerator = name
	}
}

// WithPool replaces the worker pool running async steps. The Dispatcher
// closes it on Close.
func WithPool(p *Pool) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.pool = p
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithDefaultCacheNames sets the cache names used by declarations that name
// none and whose operation config names none either.
func WithDefaultCacheNames(names ...string) Option {
	return func(d *Dispatcher) {
		d.defaultCacheNames = append([]string(nil), names...)
	}
}

// NewDispatcher returns a Dispatcher resolving caches through resolver.
func NewDispatcher(resolver cache.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:   resolver,
		policy:     cache.FatalPolicy{},
		recorder:   noopRecorder{},
		tracer:     tracenoop.NewTracerProvider().Tracer(""),
		logger:     slog.Default(),
		operations: xsync.NewMapOf[string, Operation](),
		plans:      xsync.NewMapOf[string, *Plan](),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.keys == nil {
		d.keys = cache.NewKeyGeneratorRegistry()
	}
	if d.asyncPolicy == nil {
		d.asyncPolicy = cache.NewRecoverPolicy(d.logger)
	}
	if d.pool == nil {
		d.pool = NewPool(0, DefaultQueueSize, WithPoolLogger(d.logger))
	}
	return d
}

// Register validates op and records it under its name. Each name can be
// registered once.
func (d *Dispatcher) Register(op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if _, loaded := d.operations.LoadOrStore(op.Name, op); loaded {
		return duplicateOperationError(op.Name)
	}
	return nil
}

// Operations returns the names of the registered operations.
func (d *Dispatcher) Operations() []string {
	names := make([]string, 0, d.operations.Size())
	d.operations.Range(func(name string, _ Operation) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Close waits for queued async work to finish.
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.pool.Close(ctx)
}

func (d *Dispatcher) caches(names []string) ([]cache.SyncCache, error) {
	out := make([]cache.SyncCache, 0, len(names))
	for _, name := range names {
		c, err := d.resolver.Cache(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

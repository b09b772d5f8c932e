// Package di builds the caches, dispatcher and management service described
// by a Config and hands out cached repositories wired to them.
package di

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-cacheable/cache"
	"github.com/goliatone/go-cacheable/interceptor"
	"github.com/goliatone/go-cacheable/management"
	"github.com/goliatone/go-cacheable/metrics"
	"github.com/goliatone/go-cacheable/repositorycache"
	"github.com/goliatone/go-cacheable/stores"
)

// Container owns every component built from a Config. Close releases them.
type Container struct {
	config Config
	logger *slog.Logger

	manager    cache.Manager
	keys       *cache.KeyGeneratorRegistry
	dispatcher *interceptor.Dispatcher
	management *management.Service
	recorder   *metrics.Recorder

	closers []io.Closer
}

// Option configures a Container.
type Option func(*containerOptions)

type containerOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer
	extra      []cache.SyncCache
	keys       map[string]cache.KeyGenerator
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer exports hit, miss and error counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *containerOptions) {
		o.registerer = reg
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *containerOptions) {
		o.tracer = t
	}
}

// WithCache adds caches built outside the configuration.
func WithCache(caches ...cache.SyncCache) Option {
	return func(o *containerOptions) {
		o.extra = append(o.extra, caches...)
	}
}

// WithKeyGenerator registers a custom key generator under name.
func WithKeyGenerator(name string, gen cache.KeyGenerator) Option {
	return func(o *containerOptions) {
		if o.keys == nil {
			o.keys = make(map[string]cache.KeyGenerator)
		}
		o.keys[name] = gen
	}
}

// NewContainer validates cfg and builds its caches and dispatcher. Redis and
// SQLite connections are opened here and closed by Close.
func NewContainer(ctx context.Context, cfg Config, opts ...Option) (*Container, error) {
	o := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg, logger: o.logger}

	caches := make([]cache.SyncCache, 0, len(cfg.Caches)+len(o.extra))
	for _, cc := range cfg.Caches {
		built, err := c.buildCache(ctx, cc)
		if err != nil {
			_ = c.closeAll()
			return nil, err
		}
		caches = append(caches, built)
	}
	caches = append(caches, o.extra...)

	manager, err := cache.NewManager(caches...)
	if err != nil {
		_ = c.closeAll()
		return nil, err
	}
	c.manager = manager

	c.keys = cache.NewKeyGeneratorRegistry()
	for name, gen := range o.keys {
		c.keys.Register(name, gen)
	}

	dispatcherOpts := []interceptor.Option{
		interceptor.WithLogger(o.logger),
		interceptor.WithKeyGenerators(c.keys),
		interceptor.WithDefaultKeyGenerator(cfg.KeyGenerator),
		interceptor.WithDefaultCacheNames(cfg.DefaultCacheNames...),
		interceptor.WithErrorPolicy(errorPolicy(cfg.ErrorPolicy, o.logger)),
		interceptor.WithPool(interceptor.NewPool(cfg.Workers.Size, cfg.Workers.Queue,
			interceptor.WithPoolLogger(o.logger))),
		interceptor.WithTracer(o.tracer),
	}
	if o.registerer != nil {
		c.recorder = metrics.NewRecorder(cfg.MetricsPrefix, o.registerer)
		dispatcherOpts = append(dispatcherOpts, interceptor.WithRecorder(c.recorder))
	}
	c.dispatcher = interceptor.NewDispatcher(manager, dispatcherOpts...)
	c.management = management.NewService(manager, management.WithLogger(o.logger))

	o.logger.Debug("cache container ready", slog.Any("caches", manager.Names()))
	return c, nil
}

// NewContainerWithDefaults builds a container from DefaultConfig.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(context.Background(), DefaultConfig(), opts...)
}

func (c *Container) buildCache(ctx context.Context, cc CacheConfig) (cache.SyncCache, error) {
	switch cc.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cc.Redis.Addr,
			Username: cc.Redis.Username,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
		})
		c.closers = append(c.closers, client)
		// caches sharing a database must not clear each other
		prefix := cc.Redis.Prefix
		if prefix == "" {
			prefix = cc.Name
		}
		opts := []stores.Option{
			stores.WithPrefix(prefix),
			stores.WithQueryTimeout(cc.Redis.QueryTimeout),
		}
		if cc.Redis.TTL > 0 {
			opts = append(opts, stores.WithTTL(cc.Redis.TTL))
		}
		return stores.NewRedis(cc.Name, client, opts...), nil

	case BackendSQLite:
		sc := SQLiteConfig{}
		if cc.SQLite != nil {
			sc = *cc.SQLite
		}
		opts := []stores.Option{
			stores.WithQueryTimeout(sc.QueryTimeout),
			stores.WithExpiryCheck(sc.ExpiryCheck),
		}
		if sc.TTL > 0 {
			opts = append(opts, stores.WithTTL(sc.TTL))
		}
		db, err := stores.OpenSQLite(ctx, cc.Name, sc.Path, opts...)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db)
		return db, nil

	case BackendNoop:
		return stores.NewNoop(cc.Name), nil
	}

	memory := stores.MemoryConfig{}
	if cc.Memory != nil {
		memory = *cc.Memory
	}
	return stores.NewMemory(cc.Name, memory.WithDefaults())
}

func errorPolicy(name string, logger *slog.Logger) cache.ErrorPolicy {
	if name == PolicyRecover {
		return cache.NewRecoverPolicy(logger)
	}
	return cache.FatalPolicy{}
}

func (c *Container) Config() Config {
	return c.config
}

func (c *Container) Manager() cache.Manager {
	return c.manager
}

func (c *Container) Dispatcher() *interceptor.Dispatcher {
	return c.dispatcher
}

func (c *Container) KeyGenerators() *cache.KeyGeneratorRegistry {
	return c.keys
}

func (c *Container) Management() *management.Service {
	return c.management
}

// Handler serves the management endpoints over the container's caches.
func (c *Container) Handler() http.Handler {
	return management.Handler(c.management)
}

// Close drains queued async cache work, then closes the backend connections.
// Metric series recorded for the container's caches are dropped.
func (c *Container) Close(ctx context.Context) error {
	err := c.dispatcher.Close(ctx)
	if c.recorder != nil {
		for _, name := range c.manager.Names() {
			c.recorder.DeleteCache(name)
		}
	}
	return stderrors.Join(err, c.closeAll())
}

func (c *Container) closeAll() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}

// NewCachedRepository wraps base with the container's dispatcher.
// Example: NewCachedRepository[User](container, baseUserRepository)
func NewCachedRepository[T any](c *Container, base repository.Repository[T], opts ...repositorycache.Option) (*repositorycache.CachedRepository[T], error) {
	return repositorycache.New(c.dispatcher, base, opts...)
}

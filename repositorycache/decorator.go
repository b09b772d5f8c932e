package repositorycache

import (
	"context"

	"github.com/goliatone/go-cacheable/interceptor"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult is the cached form of a List call.
type listResult[T any] struct {
	Records []T `json:"records" msgpack:"records"`
	Total   int `json:"total" msgpack:"total"`
}

type mutation func(ctx context.Context) (any, error)

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	cacheName    string
	keyGenerator string
	atomic       bool
}

// WithCacheName stores entries in the named cache instead of the one derived
// from the record type. The name also prefixes the registered operations.
func WithCacheName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.cacheName = name
		}
	}
}

// WithKeyGenerator selects a registered key generator. Defaults to
// "operation" so reads of different methods never share an entry.
func WithKeyGenerator(name string) Option {
	return func(o *options) {
		if name != "" {
			o.keyGenerator = name
		}
	}
}

// WithAtomicReads loads misses through the cache's get-or-compute, so
// concurrent readers of one key hit the database once.
func WithAtomicReads() Option {
	return func(o *options) {
		o.atomic = true
	}
}

// CachedRepository decorates a repository. Get, GetByID, GetByIdentifier,
// List and Count are read through the cache. Every successful write clears
// the repository cache. Transactional reads and raw queries are not cached.
type CachedRepository[T any] struct {
	base      repository.Repository[T]
	cacheName string

	get             interceptor.Func[T]
	getByID         interceptor.Func[T]
	getByIdentifier interceptor.Func[T]
	list            interceptor.Func[listResult[T]]
	count           interceptor.Func[int]
	write           interceptor.Func[any]
}

// New registers the repository operations with d and returns the decorator.
// The cache must be resolvable by d when the first call is made.
func New[T any](d *interceptor.Dispatcher, base repository.Repository[T], opts ...Option) (*CachedRepository[T], error) {
	o := options{
		cacheName:    CacheNameFor[T](),
		keyGenerator: "operation",
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &CachedRepository[T]{base: base, cacheName: o.cacheName}
	config := interceptor.Config{CacheNames: []string{o.cacheName}, KeyGenerator: o.keyGenerator}

	read := func(method string, params ...string) interceptor.Operation {
		return interceptor.Operation{
			Name:      o.cacheName + "." + method,
			Params:    append([]string{"scope", "skip"}, append(params, "criteria")...),
			Config:    config,
			Cacheable: &interceptor.Cacheable{Params: append([]string{"scope"}, params...), Atomic: o.atomic},
			Condition: cacheable,
		}
	}

	var err error
	if c.get, err = interceptor.Wrap(d, read("get"), func(ctx context.Context, args ...any) (T, error) {
		return base.Get(ctx, selectCriteria(args[2])...)
	}); err != nil {
		return nil, err
	}
	if c.getByID, err = interceptor.Wrap(d, read("get_by_id", "id"), func(ctx context.Context, args ...any) (T, error) {
		return base.GetByID(ctx, args[2].(string), selectCriteria(args[3])...)
	}); err != nil {
		return nil, err
	}
	if c.getByIdentifier, err = interceptor.Wrap(d, read("get_by_identifier", "identifier"), func(ctx context.Context, args ...any) (T, error) {
		return base.GetByIdentifier(ctx, args[2].(string), selectCriteria(args[3])...)
	}); err != nil {
		return nil, err
	}
	if c.list, err = interceptor.Wrap(d, read("list"), func(ctx context.Context, args ...any) (listResult[T], error) {
		records, total, err := base.List(ctx, selectCriteria(args[2])...)
		return listResult[T]{Records: records, Total: total}, err
	}); err != nil {
		return nil, err
	}
	if c.count, err = interceptor.Wrap(d, read("count"), func(ctx context.Context, args ...any) (int, error) {
		return base.Count(ctx, selectCriteria(args[2])...)
	}); err != nil {
		return nil, err
	}

	if c.write, err = interceptor.Wrap(d, interceptor.Operation{
		Name:        o.cacheName + ".write",
		Params:      []string{"mutation"},
		Config:      config,
		Invalidates: []interceptor.Invalidate{{All: true}},
	}, func(ctx context.Context, args ...any) (any, error) {
		return args[0].(mutation)(ctx)
	}); err != nil {
		return nil, err
	}

	return c, nil
}

// CacheName returns the cache the repository reads from.
func (c *CachedRepository[T]) CacheName() string {
	return c.cacheName
}

// cacheable reports whether a read may use the cache. args are
// scope, skip, the method arguments, then the criteria.
func cacheable(args []any) bool {
	if skip, _ := args[1].(bool); skip {
		return false
	}
	criteria, _ := args[len(args)-1].([]repository.SelectCriteria)
	scope, _ := args[0].(string)
	return len(criteria) == 0 || scope != DefaultScope
}

func selectCriteria(v any) []repository.SelectCriteria {
	criteria, _ := v.([]repository.SelectCriteria)
	return criteria
}

func readArgs(ctx context.Context, args ...any) []any {
	return append([]any{cacheScopeFromContext(ctx), cacheSkipped(ctx)}, args...)
}

// mutate runs fn and clears the repository cache when it succeeds.
func mutate[R any](ctx context.Context, write interceptor.Func[any], fn func(context.Context) (R, error)) (R, error) {
	v, err := write(ctx, mutation(func(ctx context.Context) (any, error) {
		return fn(ctx)
	}))
	if err != nil {
		var zero R
		return zero, err
	}
	out, _ := v.(R)
	return out, nil
}

func mutateErr(ctx context.Context, write interceptor.Func[any], fn func(context.Context) error) error {
	_, err := mutate(ctx, write, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return c.get(ctx, readArgs(ctx, criteria)...)
}

func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.getByID(ctx, readArgs(ctx, id, criteria)...)
}

func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.getByIdentifier(ctx, readArgs(ctx, identifier, criteria)...)
}

func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	res, err := c.list(ctx, readArgs(ctx, criteria)...)
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return c.count(ctx, readArgs(ctx, criteria)...)
}

func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.Create(ctx, record, criteria...)
	})
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.CreateTx(ctx, tx, record, criteria...)
	})
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.CreateMany(ctx, records, criteria...)
	})
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.CreateManyTx(ctx, tx, records, criteria...)
	})
}

// GetOrCreate may insert, so it clears the cache like any write.
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.GetOrCreate(ctx, record)
	})
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.GetOrCreateTx(ctx, tx, record)
	})
}

func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.Update(ctx, record, criteria...)
	})
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.UpdateTx(ctx, tx, record, criteria...)
	})
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.UpdateMany(ctx, records, criteria...)
	})
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.UpdateManyTx(ctx, tx, records, criteria...)
	})
}

func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.Upsert(ctx, record, criteria...)
	})
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) (T, error) {
		return c.base.UpsertTx(ctx, tx, record, criteria...)
	})
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.UpsertMany(ctx, records, criteria...)
	})
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return mutate(ctx, c.write, func(ctx context.Context) ([]T, error) {
		return c.base.UpsertManyTx(ctx, tx, records, criteria...)
	})
}

func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.Delete(ctx, record)
	})
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.DeleteTx(ctx, tx, record)
	})
}

func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.DeleteMany(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.DeleteManyTx(ctx, tx, criteria...)
	})
}

func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.DeleteWhere(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.DeleteWhereTx(ctx, tx, criteria...)
	})
}

// ForceDelete bypasses soft delete.
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.ForceDelete(ctx, record)
	})
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return mutateErr(ctx, c.write, func(ctx context.Context) error {
		return c.base.ForceDeleteTx(ctx, tx, record)
	})
}

// Reads inside a transaction see uncommitted state and are never cached.

func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw is not cached; the statement may write.
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

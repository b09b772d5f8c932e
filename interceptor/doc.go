// Package interceptor applies cache declarations to plain Go functions.
//
// An Operation declares how a function interacts with caches: a Cacheable read
// path, Put steps writing the result and Invalidate steps removing entries.
// Wrapping a function registers its declaration with a Dispatcher and returns
// a function with the same shape:
//
//	d := interceptor.NewDispatcher(manager, interceptor.WithErrorPolicy(cache.NewRecoverPolicy(logger)))
//
//	find, err := interceptor.Wrap(d, interceptor.Operation{
//		Name:      "users.find",
//		Cacheable: &interceptor.Cacheable{CacheNames: []string{"users", "users-remote"}},
//	}, func(ctx context.Context, args ...any) (*User, error) {
//		return repo.Find(ctx, args[0].(string))
//	})
//
// Each call reads the caches in order and returns the first hit. On a miss the
// function runs once and its result is written to every cache of the chain.
// With Cacheable.Atomic set, the first cache's get-or-compute runs the function
// at most once per key across concurrent callers. Puts then invalidations run
// after the read, in declared order, on hits and misses alike. An absent
// result (nil) is never stored; a put of an absent result removes the key.
//
// Backend failures go to the configured cache.ErrorPolicy. Errors returned by
// the wrapped function are returned to the caller unchanged.
//
// WrapFuture and WrapStream apply the same protocol to functions returning a
// *cache.Future or an iter.Seq2. Steps marked Async run on a bounded worker
// pool and report failures to the async error policy only.
package interceptor

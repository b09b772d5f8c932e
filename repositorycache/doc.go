// Package repositorycache decorates go-repository-bun repositories with the
// cache-aside behaviour of the interceptor package.
//
// Reads (Get, GetByID, GetByIdentifier, List, Count) are registered as
// cacheable operations against one cache per repository, named after the
// record type unless WithCacheName says otherwise:
//
//	d := interceptor.NewDispatcher(manager)
//	users, err := repositorycache.New(d, base) // cache "users" for *User
//	user, err := users.GetByID(ctx, "42")       // miss, then hit
//
// Successful writes, including their Tx variants, clear the whole repository
// cache. Failed writes leave it untouched.
//
// Criteria are functions and cannot be part of a key. A read carrying criteria
// is therefore sent straight to the database unless the caller names the query:
//
//	ctx = repositorycache.WithCacheScope(ctx, "active")
//	active, total, err := users.List(ctx, activeOnly)
//
// WithoutCache skips the cache for one call. Reads inside a transaction and
// raw queries are never cached.
package repositorycache

package repositorycache

import (
	"context"
	"strings"
)

// DefaultScope is the scope of reads made without WithCacheScope.
const DefaultScope = "default"

type cacheScopeContextKey struct{}

type skipCacheContextKey struct{}

// WithCacheScope names the query made with ctx. Criteria are functions and
// cannot be told apart, so reads carrying criteria are only cached when the
// caller scopes them. Nested scopes are joined with a colon.
//
//	ctx = repositorycache.WithCacheScope(ctx, "active")
//	users, total, err := repo.List(ctx, repository.SelectWhere("active", true))
func WithCacheScope(ctx context.Context, parts ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	var kept []string
	if existing, ok := ctx.Value(cacheScopeContextKey{}).(string); ok {
		kept = append(kept, existing)
	}
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ctx
	}
	return context.WithValue(ctx, cacheScopeContextKey{}, strings.Join(kept, ":"))
}

// WithoutCache makes reads with ctx skip the cache entirely.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, skipCacheContextKey{}, true)
}

func cacheScopeFromContext(ctx context.Context) string {
	if ctx == nil {
		return DefaultScope
	}
	if scope, ok := ctx.Value(cacheScopeContextKey{}).(string); ok && scope != "" {
		return scope
	}
	return DefaultScope
}

func cacheSkipped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	skip, _ := ctx.Value(skipCacheContextKey{}).(bool)
	return skip
}

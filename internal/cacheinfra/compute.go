package cacheinfra

import (
	"context"

	"github.com/goliatone/go-cacheable/cache"
	"golang.org/x/sync/singleflight"
)

// computeOnce implements GetOrCompute for backends without a native atomic
// primitive. Callers in this process racing on the same key share one compute
// call; the guarantee does not extend across processes.
func computeOnce(ctx context.Context, group *singleflight.Group, c cache.SyncCache, key any, compute cache.ComputeFunc) (any, error) {
	if v, found, err := c.Get(ctx, key); err != nil || found {
		return v, err
	}

	v, err, _ := group.Do(cache.KeyString(key), func() (any, error) {
		if v, found, err := c.Get(ctx, key); err != nil || found {
			return v, err
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if cache.IsAbsent(v) {
			return v, nil
		}
		if err := c.Put(ctx, key, v); err != nil {
			return nil, err
		}
		return v, nil
	})
	return v, err
}

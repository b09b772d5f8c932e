// Package cache defines the contract between the caching dispatcher and its
// storage backends, plus the pieces both sides share.
//
// # Overview
//
//   - SyncCache and AsyncCache: the blocking and non-blocking backend contract
//   - Future: a completion-once pending result used by the asynchronous contract
//   - KeyGenerator and KeyGeneratorRegistry: cache key derivation
//   - ErrorPolicy: decides whether a backend failure is fatal or recovered
//   - Manager: resolves caches by name
//
// # Backends
//
// A backend implements SyncCache and usually derives its asynchronous mirror
// with AsyncOf:
//
//	func (c *myCache) Async() cache.AsyncCache {
//		return cache.AsyncOf(c, cache.InlineExecutor)
//	}
//
// Put with an absent value (nil, or a nil pointer, map or slice) must behave as
// Invalidate. GetOrCompute must run the compute callback at most once per key
// under concurrent callers and must return the callback's error untouched.
//
// Serializing backends return Encoded payloads from Get. Callers convert any
// cached value back into a Go type with As:
//
//	user, err := cache.As[User](value)
//
// # Key Generation
//
// DefaultKeyGenerator uses reflection to handle arbitrary arguments:
//
//   - Function pointers: %p formatting, stable only within a process
//   - Basic types: direct string representation
//   - Slices/arrays: recursive serialization of elements
//   - Maps: sorted key-value pairs for deterministic output
//   - Structs: exported fields with name:value pairs
//   - Anything else: JSON fallback
//
// The operation name does not take part in default keys. OperationKeyGenerator
// prefixes it when separate operations share a cache and must not collide.
// TrailingArgKeyGenerator drops the last argument and HashedKeyGenerator caps
// key length with an xxhash digest.
//
// Closures passed as arguments produce keys that differ per call site and per
// process. For distributed backends, register a generator that maps criteria to
// stable names.
package cache

package shmstore

// loaderfunc.go defines LoaderFunc, the user-supplied callback that produces
// a value when CachedStore.GetOrLoad misses. Kept in its own file so it can
// be referenced from cache.go and loader.go without ordering concerns.
//
// The signature honors context cancellation; implementations must not
// re-enter the cache that is serving them.
//
// © 2025 shmstore authors. MIT License.

import "context"

// LoaderFunc is invoked by GetOrLoad when a key is absent. The same
// LoaderFunc may be invoked concurrently for different keys; it must be
// safe for concurrent use. It must not call back into the CachedStore that
// invoked it, or deadlock may result.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

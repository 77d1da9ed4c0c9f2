package shmstore

// loader.go implements the singleflight-based de-duplication layer behind
// CachedStore.GetOrLoad: when many goroutines miss on the same key at once,
// only one of them actually calls the LoaderFunc; the rest share its result.
//
// golang.org/x/sync/singleflight is wrapped behind a generic helper keyed
// by the hex-encoded keydom digest, which is already computed for every
// store operation, so no extra hash is needed.
//
// © 2025 shmstore authors. MIT License.

import (
	"context"
	"encoding/hex"

	"golang.org/x/sync/singleflight"
)

// singleflightGroup wraps one singleflight.Group per CachedStore instance.
type singleflightGroup[K comparable, V any] struct {
	g singleflight.Group
}

func newSingleflightGroup[K comparable, V any]() singleflightGroup[K, V] {
	return singleflightGroup[K, V]{}
}

// GetOrLoad returns the cached value for k if present (checking the local
// cache, then the underlying store); on a miss it calls fn exactly once
// across all concurrently-waiting callers and populates the cache with the
// result before returning it.
func (c *CachedStore[K, V]) GetOrLoad(ctx context.Context, k K, fn LoaderFunc[K, V]) (V, error) {
	if v, ok := c.cache.Get(k); ok {
		return v, nil
	}

	key, err := c.newKey(k)
	if err != nil {
		var zero V
		return zero, err
	}
	digest := key.Digest()
	dedupKey := hex.EncodeToString(digest[:])

	res, err, _ := c.group.g.Do(dedupKey, func() (any, error) {
		if v, getErr := c.view.Get(k); getErr == nil {
			return v, nil
		}
		v, loadErr := fn(ctx, k)
		if loadErr != nil {
			return v, loadErr
		}
		if addErr := c.view.Add(k, v); addErr != nil {
			return v, addErr
		}
		return v, nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero V
		return zero, ctxErr
	}
	if err != nil {
		var zero V
		return zero, err
	}
	v := res.(V)
	c.cache.Add(k, v)
	return v, nil
}

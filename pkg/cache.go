package shmstore

// cache.go implements CachedStore[K,V], the top-level composition:
// {Immediate} ← {Overlay} ← {Old/New split} ← {LocalCache}. One generic
// facade type a caller constructs once and calls Get/Add/Remove on, with
// functional options and telemetry/metrics wired at construction.
//
// © 2025 shmstore authors. MIT License.

import (
	"go.uber.org/zap"

	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/keydom"
	"github.com/Voskan/shmstore/internal/localcache"
	"github.com/Voskan/shmstore/internal/oldnew"
	"github.com/Voskan/shmstore/internal/overlay"
	"github.com/Voskan/shmstore/internal/store"
	"github.com/Voskan/shmstore/internal/telemetry"
)

// CachedStore is the public, per-value-type entry point: a typed cache
// over one shared arena, with overlay and old/new semantics underneath.
// Not safe for concurrent writers in the same process — within a single
// process all operations are synchronous and single-threaded; concurrent
// reads from other processes mapping the same arena are fine.
type CachedStore[K comparable, V any] struct {
	immediate *store.Store[keydom.Key, V]
	overlayS  *overlay.Stack[keydom.Key, V]
	view      *oldnew.View[K, V]
	cache     *localcache.LocalCache[K, V]
	telem     *telemetry.Registry
	logger    *zap.Logger
	group     singleflightGroup[K, V]
	metrics   metricsSink
	typeTag   string
}

func newCachedStore[K comparable, V any](a *arena.Arena, telem *telemetry.Registry, logger *zap.Logger, opts []Option[K, V]) *CachedStore[K, V] {
	o := defaultStoreOptions[K, V](0)
	for _, opt := range opts {
		opt(o)
	}

	codec := o.codec
	sampleRate := o.sampleRate

	var immediate *store.Store[keydom.Key, V]
	if sampleRate > 0 {
		immediate = store.NewProfiled[keydom.Key, V](o.prefix, a, codec, sampleRate, telem, o.typeTag)
	} else {
		immediate = store.New[keydom.Key, V](o.prefix, a, codec, telem, o.typeTag)
	}

	stack := overlay.New[keydom.Key, V](immediate)
	view := oldnew.New[K, V](o.prefix, stack)
	cache := localcache.New[K, V](o.l1Capacity, o.l2C, o.equal, telem)

	return &CachedStore[K, V]{
		immediate: immediate,
		overlayS:  stack,
		view:      view,
		cache:     cache,
		telem:     telem,
		logger:    logger,
		group:     newSingleflightGroup[K, V](),
		metrics:   noopMetrics{},
		typeTag:   o.typeTag,
	}
}

// Get consults the local cache first; on miss it calls through the
// old/new view and overlay stack down to the arena, populating the cache
// on a hit from below.
func (c *CachedStore[K, V]) Get(k K) (V, error) {
	if v, ok := c.cache.Get(k); ok {
		c.metrics.incHit(c.typeTag)
		return v, nil
	}
	c.metrics.incMiss(c.typeTag)
	v, err := c.view.Get(k)
	if err != nil {
		var zero V
		return zero, err
	}
	c.cache.Add(k, v)
	return v, nil
}

// Add always writes through to the underlying view and populates the
// cache.
func (c *CachedStore[K, V]) Add(k K, v V) error {
	if err := c.view.Add(k, v); err != nil {
		return err
	}
	c.cache.Add(k, v)
	c.metrics.incAdd(c.typeTag)
	return nil
}

// WriteAround writes to the underlying store without touching the cache,
// for callers who know the cache entry is fresher than the store. This is
// only safe because the underlying Add is idempotent: a key that already
// exists is left untouched rather than overwritten, so WriteAround can
// never clobber a fresher cache entry. That invariant is not expressible
// in the type system, so it is asserted here at runtime rather than
// silently generalized to a last-write-wins mode — if a future value type
// needs last-write-wins, this short-circuit must be revisited.
func (c *CachedStore[K, V]) WriteAround(k K, v V) error {
	mem, err := c.view.Mem(k)
	if err != nil {
		return err
	}
	if mem {
		return nil
	}
	return c.view.Add(k, v)
}

// Mem reports membership through the full stack (overlay + arena), not
// the cache — a cache miss never implies absence.
func (c *CachedStore[K, V]) Mem(k K) (bool, error) {
	return c.view.Mem(k)
}

// Remove deletes k from the underlying view and clears it from both cache
// tiers.
func (c *CachedStore[K, V]) Remove(k K) error {
	if err := c.view.Remove(k); err != nil {
		return err
	}
	c.cache.Remove(k)
	c.metrics.incRemove(c.typeTag)
	return nil
}

// Move relocates the binding from src to dst at the current overlay view.
func (c *CachedStore[K, V]) Move(src, dst K) error {
	if err := c.view.Move(src, dst); err != nil {
		return err
	}
	c.cache.Remove(src)
	c.cache.Remove(dst)
	return nil
}

// GetOld, MemOld and RemoveOld bypass the cache entirely.
func (c *CachedStore[K, V]) GetOld(k K) (V, error)  { return c.view.GetOld(k) }
func (c *CachedStore[K, V]) MemOld(k K) (bool, error) { return c.view.MemOld(k) }
func (c *CachedStore[K, V]) RemoveOld(k K) error      { return c.view.RemoveOld(k) }

// Oldify moves k's new-namespace binding to the old namespace, and
// invalidates its cache entry (the affected key's cache entry no longer
// reflects the new namespace's bindings).
func (c *CachedStore[K, V]) Oldify(k K) error {
	if err := c.view.Oldify(k); err != nil {
		return err
	}
	c.cache.Remove(k)
	c.metrics.incOldify(c.typeTag)
	return nil
}

// Revive moves k's old-namespace binding back to the new namespace,
// invalidating its cache entry.
func (c *CachedStore[K, V]) Revive(k K) error {
	if err := c.view.Revive(k); err != nil {
		return err
	}
	c.cache.Remove(k)
	c.metrics.incRevive(c.typeTag)
	return nil
}

// OldifyBatch oldifies every key in ks, invalidating each affected key's
// cache entry. Per-element semantics; atomicity across the batch is not
// guaranteed.
func (c *CachedStore[K, V]) OldifyBatch(ks []K) []error {
	errs := c.view.OldifyBatch(ks)
	for _, k := range ks {
		c.cache.Remove(k)
	}
	return errs
}

// ReviveBatch revives every key in ks, invalidating each affected key's
// cache entry.
func (c *CachedStore[K, V]) ReviveBatch(ks []K) []error {
	errs := c.view.ReviveBatch(ks)
	for _, k := range ks {
		c.cache.Remove(k)
	}
	return errs
}

// RemoveBatch removes every key in ks from the new namespace.
func (c *CachedStore[K, V]) RemoveBatch(ks []K) []error {
	errs := c.view.RemoveBatch(ks)
	for _, k := range ks {
		c.cache.Remove(k)
	}
	return errs
}

// RemoveOldBatch removes every key in ks from the old namespace. Bypasses
// the cache, matching RemoveOld.
func (c *CachedStore[K, V]) RemoveOldBatch(ks []K) []error {
	return c.view.RemoveOldBatch(ks)
}

// GetBatch reads every key in ks through Get (consulting the cache per
// key).
func (c *CachedStore[K, V]) GetBatch(ks []K) ([]V, []error) {
	vals := make([]V, len(ks))
	errs := make([]error, len(ks))
	for i, k := range ks {
		vals[i], errs[i] = c.Get(k)
	}
	return vals, errs
}

// GetOldBatch reads every key in ks from the old namespace, bypassing the
// cache.
func (c *CachedStore[K, V]) GetOldBatch(ks []K) ([]V, []error) {
	return c.view.GetOldBatch(ks)
}

// PushStack opens a new speculative overlay frame and clears the entire
// cache, since cache entries are not stack-qualified.
func (c *CachedStore[K, V]) PushStack() {
	c.overlayS.PushStack()
	c.cache.Clear()
}

// PopStack discards the top overlay frame's pending actions and clears the
// entire cache. Fatal (panics) if the stack is already empty.
func (c *CachedStore[K, V]) PopStack() {
	c.overlayS.PopStack()
	c.cache.Clear()
}

// Revert drops the top frame's pending action on a single key.
func (c *CachedStore[K, V]) Revert(k K) error {
	key, err := c.newKey(k)
	if err != nil {
		return err
	}
	return c.overlayS.Revert(key)
}

// Commit applies the top frame's pending action on a single key to the
// frame beneath (or the arena, at depth 1).
func (c *CachedStore[K, V]) Commit(k K) error {
	key, err := c.newKey(k)
	if err != nil {
		return err
	}
	return c.overlayS.Commit(key)
}

// RevertAll drops every pending action in the top overlay frame.
func (c *CachedStore[K, V]) RevertAll() error { return c.overlayS.RevertAll() }

// CommitAll applies every pending action in the top overlay frame to the
// frame beneath (or the arena).
func (c *CachedStore[K, V]) CommitAll() error { return c.overlayS.CommitAll() }

func (c *CachedStore[K, V]) newKey(k K) (keydom.Key, error) {
	// Mirrors oldnew.View's own key construction; duplicated here (rather
	// than exported from oldnew) since only the new-namespace overlay
	// frame operations need direct keydom.Key access — everything else
	// goes through the View.
	return keydom.Make[K](c.prefixFor(), k)
}

func (c *CachedStore[K, V]) prefixFor() uint32 {
	return c.immediate.Prefix()
}

// Collect runs the arena's mark-and-sweep compaction. Blocking; callers
// should ensure no other process is writing concurrently.
func (c *CachedStore[K, V]) Collect() error {
	return c.immediate.Arena().Collect()
}

// GetTelemetry folds every registered store sampler into one structured
// snapshot; the overlay stack and local cache register no sampler.
func (c *CachedStore[K, V]) GetTelemetry() telemetry.Snapshot {
	if c.telem == nil {
		return telemetry.Snapshot{Name: "root"}
	}
	return c.telem.GetTelemetry()
}

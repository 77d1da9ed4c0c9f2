// Package oldnew implements the old/new view: two disjoint digest
// namespaces sharing one underlying overlay/store, with oldify/revive as
// the only operations that cross between them. Both reduce to the
// underlying rename-with-preconditions Move primitive.
//
// © 2025 shmstore authors. MIT License.
package oldnew

import "github.com/Voskan/shmstore/internal/keydom"

// Underlying is whatever the view forwards namespaced keydom.Key
// operations to — typically an *overlay.Stack[keydom.Key, V], but any type
// with this shape (including a bare store.Store) satisfies it.
type Underlying[V any] interface {
	Mem(k keydom.Key) (bool, error)
	Get(k keydom.Key) (V, error)
	Add(k keydom.Key, v V) error
	Remove(k keydom.Key) error
	Move(src, dst keydom.Key) error
}

// View presents the old/new split over user keys of type K, backed by one
// Underlying[V] whose keys are the namespaced keydom.Key values Make/
// MakeOld produce. New and Old never see each other through Get/Mem/Remove;
// only Oldify/Revive cross the boundary.
type View[K any, V any] struct {
	prefix uint32
	u      Underlying[V]
}

// New constructs a View over prefix using u for storage.
func New[K any, V any](prefix uint32, u Underlying[V]) *View[K, V] {
	return &View[K, V]{prefix: prefix, u: u}
}

func (v *View[K, V]) newKey(k K) (keydom.Key, error) { return keydom.Make[K](v.prefix, k) }

// Mem reports membership in the new namespace.
func (v *View[K, V]) Mem(k K) (bool, error) {
	key, err := v.newKey(k)
	if err != nil {
		return false, err
	}
	return v.u.Mem(key)
}

// Get reads from the new namespace.
func (v *View[K, V]) Get(k K) (V, error) {
	var zero V
	key, err := v.newKey(k)
	if err != nil {
		return zero, err
	}
	return v.u.Get(key)
}

// Add writes to the new namespace.
func (v *View[K, V]) Add(k K, val V) error {
	key, err := v.newKey(k)
	if err != nil {
		return err
	}
	return v.u.Add(key, val)
}

// Remove deletes from the new namespace.
func (v *View[K, V]) Remove(k K) error {
	key, err := v.newKey(k)
	if err != nil {
		return err
	}
	return v.u.Remove(key)
}

// Move relocates the new-namespace binding from src to dst, matching
// overlay-level move preconditions (mem(src) && !mem(dst)).
func (v *View[K, V]) Move(src, dst K) error {
	srcKey, err := v.newKey(src)
	if err != nil {
		return err
	}
	dstKey, err := v.newKey(dst)
	if err != nil {
		return err
	}
	return v.u.Move(srcKey, dstKey)
}

// MemOld reports membership in the old namespace.
func (v *View[K, V]) MemOld(k K) (bool, error) {
	key, err := v.newKey(k)
	if err != nil {
		return false, err
	}
	return v.u.Mem(key.ToOld())
}

// GetOld reads from the old namespace.
func (v *View[K, V]) GetOld(k K) (V, error) {
	var zero V
	key, err := v.newKey(k)
	if err != nil {
		return zero, err
	}
	return v.u.Get(key.ToOld())
}

// RemoveOld deletes from the old namespace.
func (v *View[K, V]) RemoveOld(k K) error {
	key, err := v.newKey(k)
	if err != nil {
		return err
	}
	return v.u.Remove(key.ToOld())
}

// Oldify moves the binding at k's new-namespace digest to its
// old-namespace digest. Requires mem(k) && !mem_old(k), matching the
// underlying Move precondition.
func (v *View[K, V]) Oldify(k K) error {
	key, err := v.newKey(k)
	if err != nil {
		return err
	}
	return v.u.Move(key, key.ToOld())
}

// Revive reverses Oldify: the old-namespace binding for k replaces
// whatever new-namespace binding currently exists. Any pre-existing new
// binding is removed first, to preserve the underlying Move's
// !mem(dst) precondition.
func (v *View[K, V]) Revive(k K) error {
	key, err := v.newKey(k)
	if err != nil {
		return err
	}
	mem, err := v.u.Mem(key)
	if err != nil {
		return err
	}
	if mem {
		if err := v.u.Remove(key); err != nil {
			return err
		}
	}
	return v.u.Move(key.ToOld(), key)
}

// Batch semantics are per-element; atomicity across the batch is not
// guaranteed, and one element failing does not abort the rest.

// OldifyBatch oldifies every key in ks, continuing past individual errors.
func (v *View[K, V]) OldifyBatch(ks []K) []error {
	errs := make([]error, len(ks))
	for i, k := range ks {
		errs[i] = v.Oldify(k)
	}
	return errs
}

// ReviveBatch revives every key in ks, continuing past individual errors.
func (v *View[K, V]) ReviveBatch(ks []K) []error {
	errs := make([]error, len(ks))
	for i, k := range ks {
		errs[i] = v.Revive(k)
	}
	return errs
}

// RemoveBatch removes every key in ks from the new namespace.
func (v *View[K, V]) RemoveBatch(ks []K) []error {
	errs := make([]error, len(ks))
	for i, k := range ks {
		errs[i] = v.Remove(k)
	}
	return errs
}

// RemoveOldBatch removes every key in ks from the old namespace.
func (v *View[K, V]) RemoveOldBatch(ks []K) []error {
	errs := make([]error, len(ks))
	for i, k := range ks {
		errs[i] = v.RemoveOld(k)
	}
	return errs
}

// GetBatch reads every key in ks from the new namespace.
func (v *View[K, V]) GetBatch(ks []K) ([]V, []error) {
	vals := make([]V, len(ks))
	errs := make([]error, len(ks))
	for i, k := range ks {
		vals[i], errs[i] = v.Get(k)
	}
	return vals, errs
}

// GetOldBatch reads every key in ks from the old namespace.
func (v *View[K, V]) GetOldBatch(ks []K) ([]V, []error) {
	vals := make([]V, len(ks))
	errs := make([]error, len(ks))
	for i, k := range ks {
		vals[i], errs[i] = v.GetOld(k)
	}
	return vals, errs
}

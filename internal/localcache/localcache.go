package localcache

import "github.com/Voskan/shmstore/internal/telemetry"

// LocalCache is the two-tier composition: L1 is an OrderedCache (LRA), L2
// is a FreqCache (LFU). Get checks L1 first; on miss
// it checks L2 and, on hit, promotes the entry into L1; on an L1 hit it also
// adds into L2 to refresh that key's frequency. Add writes to both; Remove
// clears both.
type LocalCache[K comparable, V any] struct {
	l1 *OrderedCache[K, V]
	l2 *FreqCache[K, V]
}

// New constructs a LocalCache with L1 capacity l1Cap and L2 collecting
// capacity l2C (the FreqCache grows to 2*l2C before collecting back to
// l2C). equal is forwarded to the FreqCache's identity check; telem, if
// non-nil, has this cache's invalidation callback registered so a global
// invalidate_all reaches it.
func New[K comparable, V any](l1Cap, l2C int, equal func(a, b V) bool, telem *telemetry.Registry) *LocalCache[K, V] {
	lc := &LocalCache[K, V]{
		l1: NewOrderedCache[K, V](l1Cap),
		l2: NewFreqCache[K, V](l2C, equal),
	}
	if telem != nil {
		telem.RegisterInvalidator(lc.Clear)
	}
	return lc
}

// Get consults L1 first, then L2 on miss (promoting into L1 on an L2 hit).
// An L1 hit also feeds L2 so its frequency counter advances even though L1
// already served the read.
func (c *LocalCache[K, V]) Get(k K) (V, bool) {
	if v, ok := c.l1.Get(k); ok {
		c.l2.Add(k, v)
		return v, true
	}
	if v, ok := c.l2.Get(k); ok {
		c.l1.Add(k, v)
		return v, true
	}
	var zero V
	return zero, false
}

// Add writes k/v into both tiers.
func (c *LocalCache[K, V]) Add(k K, v V) {
	c.l1.Add(k, v)
	c.l2.Add(k, v)
}

// Remove clears k from both tiers.
func (c *LocalCache[K, V]) Remove(k K) {
	c.l1.Remove(k)
	c.l2.Remove(k)
}

// Clear empties both tiers. Registered as this cache's invalidation
// callback; also called directly whenever an overlay stack is pushed or
// popped, since cache entries are not stack-qualified.
func (c *LocalCache[K, V]) Clear() {
	c.l1.Clear()
	c.l2.Clear()
}

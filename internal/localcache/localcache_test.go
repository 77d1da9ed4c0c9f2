package localcache

import "testing"

func TestOrderedCacheEvictsOldest(t *testing.T) {
	c := NewOrderedCache[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should have been evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("b = %v, %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("c = %v, %v", v, ok)
	}
}

func TestOrderedCacheReadsDontReorder(t *testing.T) {
	c := NewOrderedCache[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // reading a must not protect it from eviction
	c.Add("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should still be evicted despite being read")
	}
}

func TestFreqCacheCollectsAtDoubleCapacity(t *testing.T) {
	c := NewFreqCache[string, int](2, func(a, b int) bool { return a == b })
	c.Add("a", 1)
	c.Get("a")
	c.Get("a") // freq=2
	c.Add("b", 2)
	c.Get("b") // freq=1
	c.Add("c", 3)
	c.Add("d", 4) // triggers collection at 2*C=4 entries

	if c.Len() > 2 {
		t.Fatalf("expected collection to shrink to capacity 2, got %d", c.Len())
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("highest-frequency key 'a' should survive collection")
	}
}

func TestFreqCacheIdenticalValueOnlyBumpsCounter(t *testing.T) {
	c := NewFreqCache[string, int](4, func(a, b int) bool { return a == b })
	c.Add("a", 1)
	c.Add("a", 1) // identical value: counter bump, not reset
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
}

func TestFreqCacheNilEqualFallsBackToComparable(t *testing.T) {
	c := NewFreqCache[string, int](2, nil)
	c.Add("a", 1)
	c.Add("a", 1) // identical comparable value, nil equal: counter bump not reset
	c.Get("a")
	c.Add("b", 2)
	c.Add("c", 3)
	c.Add("d", 4) // triggers collection at 2*C=4 entries

	if _, ok := c.Get("a"); !ok {
		t.Fatalf("highest-frequency key 'a' should survive collection under the nil-equal fallback")
	}
}

func TestFreqCacheNilEqualNonComparableValueDoesNotPanic(t *testing.T) {
	c := NewFreqCache[string, []int](2, nil)
	c.Add("a", []int{1, 2})
	c.Add("a", []int{1, 2}) // not `==`-comparable; must fall back to "not equal", not panic
	if v, ok := c.Get("a"); !ok || len(v) != 2 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}
}

func TestLocalCachePromotionOnL2Hit(t *testing.T) {
	c := New[string, int](1, 4, func(a, b int) bool { return a == b }, nil)
	c.Add("a", 1)
	c.Add("b", 2) // L1 capacity 1: evicts "a" from L1, but "a" survives in L2

	if _, ok := c.l1.Get("a"); ok {
		t.Fatalf("a should have been evicted from L1")
	}
	if _, ok := c.l2.Get("a"); !ok {
		t.Fatalf("a should still be present in L2")
	}

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) via L2 promotion = %v, %v", v, ok)
	}
	if _, ok := c.l1.Get("a"); !ok {
		t.Fatalf("a should have been promoted back into L1 after the L2 hit")
	}
}

func TestLocalCacheClear(t *testing.T) {
	c := New[string, int](2, 2, nil, nil)
	c.Add("a", 1)
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be gone after Clear")
	}
}

package shmstore

import (
	"context"
	"testing"

	"github.com/Voskan/shmstore/internal/arena"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HeapSize = 1 << 20
	cfg.HashTablePow = 10
	cfg.DepTablePow = 8
	cfg.GCMode = arena.GCTesting
	return cfg
}

func mustHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := Init(testConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestAddGetPopulatesCache(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.Add("a", "1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	v, err := s.Get("a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "1" {
		t.Fatalf("Get = %q, want 1", v)
	}
	if _, ok := s.cache.Get("a"); !ok {
		t.Fatalf("expected Add to populate local cache")
	}
}

func TestGetMissPopulatesCacheFromStore(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.WriteAround("b", "2"); err != nil {
		t.Fatalf("WriteAround: %v", err)
	}
	if _, ok := s.cache.Get("b"); ok {
		t.Fatalf("WriteAround must not populate the cache")
	}
	v, err := s.Get("b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "2" {
		t.Fatalf("Get = %q, want 2", v)
	}
	if _, ok := s.cache.Get("b"); !ok {
		t.Fatalf("expected Get miss to populate the cache from the store")
	}
}

func TestWriteAroundExistingKeyIsNoop(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.Add("c", "orig"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.WriteAround("c", "new"); err != nil {
		t.Fatalf("WriteAround on existing key should be a safe no-op: %v", err)
	}
	v, err := s.Get("c")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "orig" {
		t.Fatalf("WriteAround must not overwrite an existing value, got %q", v)
	}
}

func TestOldifyInvalidatesCacheAndMovesNamespace(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.Add("k", "v"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok := s.cache.Get("k"); !ok {
		t.Fatalf("expected Add to populate cache")
	}
	if err := s.Oldify("k"); err != nil {
		t.Fatalf("Oldify: %v", err)
	}
	if _, ok := s.cache.Get("k"); ok {
		t.Fatalf("Oldify must invalidate the cache entry")
	}
	if mem, _ := s.Mem("k"); mem {
		t.Fatalf("k should no longer be a member of the new namespace")
	}
	v, err := s.GetOld("k")
	if err != nil {
		t.Fatalf("GetOld: %v", err)
	}
	if v != "v" {
		t.Fatalf("GetOld = %q, want v", v)
	}

	if err := s.Revive("k"); err != nil {
		t.Fatalf("Revive: %v", err)
	}
	v, err = s.Get("k")
	if err != nil {
		t.Fatalf("Get after Revive: %v", err)
	}
	if v != "v" {
		t.Fatalf("Get after Revive = %q, want v", v)
	}
}

func TestPushPopStackClearsCache(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.Add("x", "1"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.PushStack()
	if _, ok := s.cache.Get("x"); ok {
		t.Fatalf("PushStack should clear the entire cache")
	}
	if err := s.Add("y", "2"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.PopStack()
	if _, ok := s.cache.Get("y"); ok {
		t.Fatalf("PopStack should clear the entire cache")
	}
	if mem, _ := s.Mem("y"); mem {
		t.Fatalf("y should have been discarded by PopStack")
	}
	if mem, _ := s.Mem("x"); !mem {
		t.Fatalf("x committed before the push should still be a member")
	}
}

func TestGetOrLoadRunsLoaderOnceThenHitsCache(t *testing.T) {
	h := mustHandle(t)
	s := Connect[int, string](h)

	var calls int
	loader := func(ctx context.Context, k int) (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := s.GetOrLoad(context.Background(), 1, loader)
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if v != "loaded" {
		t.Fatalf("GetOrLoad = %q, want loaded", v)
	}
	v2, err := s.GetOrLoad(context.Background(), 1, loader)
	if err != nil {
		t.Fatalf("GetOrLoad second call: %v", err)
	}
	if v2 != "loaded" {
		t.Fatalf("GetOrLoad second call = %q, want loaded", v2)
	}
	if calls != 1 {
		t.Fatalf("loader should only run once across both calls, ran %d times", calls)
	}
}

func TestMoveRelocatesBindingAndInvalidatesCache(t *testing.T) {
	h := mustHandle(t)
	s := Connect[string, string](h)

	if err := s.Add("src", "v"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Get("src"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.Move("src", "dst"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if mem, _ := s.Mem("src"); mem {
		t.Fatalf("src should no longer be a member after Move")
	}
	if _, ok := s.cache.Get("src"); ok {
		t.Fatalf("Move must invalidate the source's cache entry")
	}
	v, err := s.Get("dst")
	if err != nil {
		t.Fatalf("Get(dst): %v", err)
	}
	if v != "v" {
		t.Fatalf("Get(dst) = %q, want v", v)
	}
}

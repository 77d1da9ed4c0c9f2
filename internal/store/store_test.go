package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/keydom"
	"github.com/Voskan/shmstore/internal/telemetry"
)

type jsonCodec[V any] struct{}

func (jsonCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

func mustArena(t *testing.T) *arena.Arena {
	t.Helper()
	a, err := arena.Init(arena.Config{HeapSize: 1 << 20, HashTablePow: 10, DepTablePow: 8, GCMode: arena.GCTesting})
	if err != nil {
		t.Fatalf("arena.Init: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAddGetRoundTrip(t *testing.T) {
	a := mustArena(t)
	telem := telemetry.New(1)
	s := New[string, string](1, a, jsonCodec[string]{}, telem, "string")

	allocated, err := s.Add("k1", "hello")
	if err != nil || !allocated {
		t.Fatalf("Add = %v, %v", allocated, err)
	}
	got, err := s.Get("k1")
	if err != nil || got != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	allocated2, err := s.Add("k1", "world")
	if err != nil || allocated2 {
		t.Fatalf("second Add should be idempotent no-op: %v, %v", allocated2, err)
	}
	got2, _ := s.Get("k1")
	if got2 != "hello" {
		t.Fatalf("Get after second Add = %q, want unchanged %q", got2, "hello")
	}
}

func TestGetNotFound(t *testing.T) {
	a := mustArena(t)
	s := New[string, string](1, a, jsonCodec[string]{}, nil, "string")
	if _, err := s.Get("missing"); err != ErrNotFound {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestRemoveAndMove(t *testing.T) {
	a := mustArena(t)
	s := New[string, string](1, a, jsonCodec[string]{}, nil, "string")
	if _, err := s.Add("a", "v"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Move("a", "b"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if mem, _ := s.Mem("a"); mem {
		t.Fatalf("a still present after Move")
	}
	got, err := s.Get("b")
	if err != nil || got != "v" {
		t.Fatalf("Get(b) = %q, %v", got, err)
	}
	if err := s.Remove("b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("b"); err == nil {
		t.Fatalf("Remove of absent key should error (not idempotent)")
	}
}

func TestTelemetrySampling(t *testing.T) {
	a := mustArena(t)
	telem := telemetry.New(1)
	s := New[string, int](1, a, jsonCodec[int]{}, telem, "int")
	if _, err := s.Add("n", 42); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Get("n"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	snap := telem.GetTelemetry()
	sub, ok := snap.Nested["store[int]"]
	if !ok {
		t.Fatalf("expected store[int] sample in telemetry snapshot")
	}
	if sub.Count != 2 {
		t.Fatalf("sample count = %d, want 2 (one add, one get)", sub.Count)
	}
}

// TestKeydomKeyRoundTrip exercises Store[keydom.Key, V], the instantiation
// every real CachedStore operation actually uses (pkg/cache.go constructs
// store.New[keydom.Key, V]; overlay and oldnew hand it already-namespaced
// keydom.Key values). Store.key must use such a key's own Digest() rather
// than re-wrapping it through keydom.Make, or the arena digest would hash
// the keydom.Key struct's fmt.Sprintf("%v", ...) representation instead of
// the user's original key.
func TestKeydomKeyRoundTrip(t *testing.T) {
	a := mustArena(t)
	s := New[keydom.Key, string](1, a, jsonCodec[string]{}, nil, "string")

	k1, err := keydom.Make[string](1, "user-key")
	if err != nil {
		t.Fatalf("keydom.Make: %v", err)
	}
	k2, err := keydom.Make[string](1, "user-key")
	if err != nil {
		t.Fatalf("keydom.Make: %v", err)
	}
	if k1.Digest() != k2.Digest() {
		t.Fatalf("keydom.Make should be deterministic for the same (prefix, key)")
	}

	if _, err := s.Add(k1, "hello"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := s.Get(k2)
	if err != nil || got != "hello" {
		t.Fatalf("Get via independently-built equal key = %q, %v", got, err)
	}
	if mem, err := s.Mem(k1); err != nil || !mem {
		t.Fatalf("Mem(k1) = %v, %v", mem, err)
	}

	other, err := keydom.Make[string](1, "different-key")
	if err != nil {
		t.Fatalf("keydom.Make: %v", err)
	}
	if other.Digest() == k1.Digest() {
		t.Fatalf("distinct user keys must not collide")
	}
	if mem, _ := s.Mem(other); mem {
		t.Fatalf("Mem(other) should be false, the key was never added")
	}
}

func TestProfiledEnvelopeRoundTrip(t *testing.T) {
	a := mustArena(t)
	s := NewProfiled[string, string](1, a, jsonCodec[string]{}, 1.0, nil, "string")
	if _, err := s.Add("p", "value"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := s.Get("p")
	if err != nil || got != "value" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestProfiledReadEmitsAccessSample(t *testing.T) {
	a := mustArena(t)
	telem := telemetry.New(1)
	var got []telemetry.AccessSample
	telem.RegisterAccessObserver(func(s telemetry.AccessSample) { got = append(got, s) })

	s := NewProfiled[string, string](1, a, jsonCodec[string]{}, 1.0, telem, "string")
	before := time.Now()
	if _, err := s.Add("p", "value"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Get("p"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 access sample, got %d", len(got))
	}
	if got[0].Name != "string" {
		t.Fatalf("sample name = %q, want string", got[0].Name)
	}
	if got[0].WrittenAt.Before(before) || got[0].WrittenAt.After(time.Now()) {
		t.Fatalf("sample write time %v outside [%v, now]", got[0].WrittenAt, before)
	}

	// An unsampled (plain-tagged) write must not emit an event on read.
	plain := NewProfiled[string, string](2, a, jsonCodec[string]{}, 0, telem, "string")
	if _, err := plain.Add("q", "value"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := plain.Get("q"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("plain envelope read emitted an access sample")
	}
}

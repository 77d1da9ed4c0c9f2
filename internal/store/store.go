// Package store implements the typed immediate store: a Store[K,V] binds a
// key-domain prefix and an arena, encoding values with a caller-supplied
// codec and recording per-type telemetry on every Add/Get.
//
// © 2025 shmstore authors. MIT License.
package store

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/keydom"
	"github.com/Voskan/shmstore/internal/telemetry"
)

// ErrNotFound is returned by Get when the key is absent from the arena.
var ErrNotFound = errors.New("store: key not found")

// Codec encodes/decodes values of type V to/from bytes. Callers typically
// supply a gob- or json-backed implementation; see CodecFunc for an easy
// adapter.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(b []byte) (V, error)
}

// CodecFunc adapts a pair of functions to the Codec interface.
type CodecFunc[V any] struct {
	EncodeFn func(V) ([]byte, error)
	DecodeFn func([]byte) (V, error)
}

func (c CodecFunc[V]) Encode(v V) ([]byte, error) { return c.EncodeFn(v) }
func (c CodecFunc[V]) Decode(b []byte) (V, error) { return c.DecodeFn(b) }

type typeStats struct {
	adds        int64
	gets        int64
	bytesStored int64
	bytesRead   int64
}

// Store is a typed view over one (prefix, arena) pair. K is the user-facing
// key type; V is the stored value type. Store is safe for concurrent
// reads; writes assume a single writer per process.
type Store[K any, V any] struct {
	prefix  uint32
	arena   *arena.Arena
	codec   Codec[V]
	telem   *telemetry.Registry
	typeTag string
	stats   typeStats
}

// New constructs a Store. typeTag labels this store's samples in telemetry
// snapshots (e.g. the V type's name); telem may be nil to disable sampling.
func New[K any, V any](prefix uint32, a *arena.Arena, codec Codec[V], telem *telemetry.Registry, typeTag string) *Store[K, V] {
	s := &Store[K, V]{prefix: prefix, arena: a, codec: codec, telem: telem, typeTag: typeTag}
	if telem != nil {
		telem.RegisterSampler(s.sample)
	}
	return s
}

func (s *Store[K, V]) sample() telemetry.Snapshot {
	return telemetry.Snapshot{
		Name:  fmt.Sprintf("store[%s]", s.typeTag),
		Count: atomic.LoadInt64(&s.stats.adds) + atomic.LoadInt64(&s.stats.gets),
		Bytes: atomic.LoadInt64(&s.stats.bytesStored) + atomic.LoadInt64(&s.stats.bytesRead),
	}
}

// key produces the namespaced arena digest for a user key, respecting
// whichever namespace k was built in (ToOld/NewFromOld let callers keep
// the same K across namespaces; Store just forwards whatever flavor it's
// handed).
//
// When K is already keydom.Key — the case every real CachedStore operation
// hits, since oldnew/overlay hand Store an already-namespaced key — k is
// returned as-is rather than re-wrapped through keydom.Make: k was built
// with its own prefix by the caller that constructed it, and re-Make-ing it
// here would stringify the keydom.Key struct itself (it has no Stringer)
// and hash that instead of the user's original key.
func (s *Store[K, V]) key(k K) (keydom.Key, error) {
	if kk, ok := any(k).(keydom.Key); ok {
		return kk, nil
	}
	return keydom.Make[K](s.prefix, k)
}

// Add stores v under k, returning whether a new entry was allocated (false
// if k was already a member — the arena's Add is idempotent).
func (s *Store[K, V]) Add(k K, v V) (bool, error) {
	key, err := s.key(k)
	if err != nil {
		return false, err
	}
	payload, err := s.codec.Encode(v)
	if err != nil {
		return false, fmt.Errorf("store: encode: %w", err)
	}
	res, err := s.arena.Add(key.Digest(), payload)
	if err != nil {
		return false, err
	}
	if res.Allocated {
		atomic.AddInt64(&s.stats.adds, 1)
		atomic.AddInt64(&s.stats.bytesStored, int64(res.OriginalSize))
	}
	return res.Allocated, nil
}

// Get retrieves and decodes the value stored under k.
func (s *Store[K, V]) Get(k K) (V, error) {
	var zero V
	key, err := s.key(k)
	if err != nil {
		return zero, err
	}
	raw, err := s.arena.Get(key.Digest())
	if err != nil {
		if errors.Is(err, arena.ErrNotMember) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	v, err := s.codec.Decode(raw)
	if err != nil {
		return zero, fmt.Errorf("store: decode: %w", err)
	}
	atomic.AddInt64(&s.stats.gets, 1)
	atomic.AddInt64(&s.stats.bytesRead, int64(len(raw)))
	return v, nil
}

// Mem reports whether k is a member of the store.
func (s *Store[K, V]) Mem(k K) (bool, error) {
	key, err := s.key(k)
	if err != nil {
		return false, err
	}
	return s.arena.Mem(key.Digest())
}

// Remove deletes k. Returns arena.ErrNotMember if k is absent; remove is
// NOT idempotent.
func (s *Store[K, V]) Remove(k K) error {
	key, err := s.key(k)
	if err != nil {
		return err
	}
	_, err = s.arena.Remove(key.Digest())
	return err
}

// Move relocates the value stored under src to dst.
func (s *Store[K, V]) Move(src, dst K) error {
	srcKey, err := s.key(src)
	if err != nil {
		return err
	}
	dstKey, err := s.key(dst)
	if err != nil {
		return err
	}
	return s.arena.Move(srcKey.Digest(), dstKey.Digest())
}

// Prefix returns the key-domain prefix this store was constructed with.
func (s *Store[K, V]) Prefix() uint32 { return s.prefix }

// Arena exposes the underlying arena, for components (overlay, oldnew) that
// need to share it directly rather than going through Store's typed API.
func (s *Store[K, V]) Arena() *arena.Arena { return s.arena }

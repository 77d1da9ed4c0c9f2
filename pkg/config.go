// Package shmstore implements the cached store: the public composition of
// the immediate store, overlay stack, old/new view, and local caches over
// a shared-memory arena.
//
// config.go defines the process-wide arena configuration and the set of
// functional options that tailor one CachedStore[K,V] instance.
//
// © 2025 shmstore authors. MIT License.
package shmstore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/store"
)

// Config bundles the process-wide knobs fixed at arena initialization:
// heap size, table sizing powers, candidate shm directories with a free-
// bytes floor, log level, profiling sample rate, and an optional worker
// count used only for per-worker buffer sizing.
type Config struct {
	GlobalSize   uint64
	HeapSize     uint64
	HashTablePow uint32
	DepTablePow  uint32
	ShmDirs      []string
	ShmMinAvail  int64
	LogLevel     int
	SampleRate   float64
	WorkerCount  int
	GCMode       arena.GCMode

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// DefaultConfig returns sane defaults: a 64MiB heap, 2^16 hash slots, 2^14
// dependency slots, gentle GC, no sampling, and a nop logger. Callers
// building anything beyond a quick smoke test should override HeapSize and
// ShmDirs explicitly.
func DefaultConfig() Config {
	return Config{
		HeapSize:     64 << 20,
		HashTablePow: 16,
		DepTablePow:  14,
		GCMode:       arena.GCGentle,
		LogLevel:     1,
		Logger:       zap.NewNop(),
	}
}

func (c Config) arenaConfig() arena.Config {
	return arena.Config{
		HeapSize:     c.HeapSize,
		HashTablePow: c.HashTablePow,
		DepTablePow:  c.DepTablePow,
		ShmDirs:      c.ShmDirs,
		ShmMinAvail:  c.ShmMinAvail,
		GCMode:       c.GCMode,
		Logger:       c.Logger,
		WorkerCount:  c.WorkerCount,
	}
}

var (
	errInvalidHeapSize     = errors.New("shmstore: HeapSize must be > 0")
	errInvalidHashTablePow = errors.New("shmstore: HashTablePow must be > 0")
	errInvalidDepTablePow  = errors.New("shmstore: DepTablePow must be > 0")
)

func (c Config) validate() error {
	if c.HeapSize == 0 {
		return errInvalidHeapSize
	}
	if c.HashTablePow == 0 {
		return errInvalidHashTablePow
	}
	if c.DepTablePow == 0 {
		return errInvalidDepTablePow
	}
	return nil
}

// Option tailors a single CachedStore[K,V] instance: its key-domain prefix,
// codec, local-cache sizing, and per-type telemetry tag.
type Option[K comparable, V any] func(*storeOptions[K, V])

type storeOptions[K comparable, V any] struct {
	prefix     uint32
	codec      store.Codec[V]
	equal      func(a, b V) bool
	l1Capacity int
	l2C        int
	sampleRate float64
	typeTag    string
}

func defaultStoreOptions[K comparable, V any](sampleRate float64) *storeOptions[K, V] {
	return &storeOptions[K, V]{
		prefix:     0,
		codec:      GobCodec[V]{},
		l1Capacity: 1024,
		l2C:        1024,
		sampleRate: sampleRate,
		typeTag:    "value",
	}
}

// WithPrefix sets the key-domain namespace prefix every key of this store
// is digested under.
func WithPrefix[K comparable, V any](prefix uint32) Option[K, V] {
	return func(o *storeOptions[K, V]) { o.prefix = prefix }
}

// WithCodec overrides the default gob-based value codec.
func WithCodec[K comparable, V any](c store.Codec[V]) Option[K, V] {
	return func(o *storeOptions[K, V]) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithEqual supplies the "physically identical" comparison FreqCache (L2)
// uses to decide whether a re-Add only bumps the frequency counter.
// Defaults to nil, which makes FreqCache compare values with `==` through
// an interface comparison (non-comparable values count as different, so a
// re-Add resets the counter) — supply this for value types where `==` is
// unavailable or not the identity that matters.
func WithEqual[K comparable, V any](eq func(a, b V) bool) Option[K, V] {
	return func(o *storeOptions[K, V]) { o.equal = eq }
}

// WithL1Capacity overrides the OrderedCache (LRA) tier's capacity.
func WithL1Capacity[K comparable, V any](n int) Option[K, V] {
	return func(o *storeOptions[K, V]) {
		if n > 0 {
			o.l1Capacity = n
		}
	}
}

// WithL2Capacity overrides the FreqCache (LFU) tier's collecting capacity
// C (the cache itself grows to 2C before collecting back down to C).
func WithL2Capacity[K comparable, V any](n int) Option[K, V] {
	return func(o *storeOptions[K, V]) {
		if n > 0 {
			o.l2C = n
		}
	}
}

// WithSampleRate overrides the process-wide SampleRate for this store's
// profiled-envelope wrapper.
func WithSampleRate[K comparable, V any](rate float64) Option[K, V] {
	return func(o *storeOptions[K, V]) { o.sampleRate = rate }
}

// WithTypeTag sets the label this store's telemetry samples are nested
// under (defaults to "value").
func WithTypeTag[K comparable, V any](tag string) Option[K, V] {
	return func(o *storeOptions[K, V]) {
		if tag != "" {
			o.typeTag = tag
		}
	}
}

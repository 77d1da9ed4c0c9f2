package shmstore

// handle.go implements the process-entry points: Init creates (or sizes)
// the shared arena once per machine/container, and Connect binds one
// process's worker to it, returning a typed CachedStore[K,V]. Init
// allocates and maps; a second process attaches to the same mapping via
// ExportRawHandle/ConnectRaw.
//
// © 2025 shmstore authors. MIT License.

import (
	"github.com/Voskan/shmstore/internal/arena"
	"github.com/Voskan/shmstore/internal/telemetry"
)

// Handle owns one mapped arena plus the process-wide metrics sink derived
// from Config. Exactly one Handle should exist per process; CachedStore
// instances for different value types share it via Connect.
type Handle struct {
	arena   *arena.Arena
	cfg     Config
	metrics metricsSink
	telem   *telemetry.Registry
}

// Init allocates a fresh shared arena per cfg (an anonymous mapping, or an
// unlinked temporary file in one of ShmDirs if that fails) and returns a
// Handle bound to it. Init never opens an existing backing file; other
// processes attach with ConnectRaw, passing the arena.Handle obtained from
// ExportRawHandle.
func Init(cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a, err := arena.Init(cfg.arenaConfig())
	if err != nil {
		return nil, err
	}
	return &Handle{
		arena:   a,
		cfg:     cfg,
		metrics: newMetricsSink(cfg.Registry),
		telem:   telemetry.New(cfg.LogLevel),
	}, nil
}

// ExportRawHandle returns the low-level mapping descriptor other processes
// pass to ConnectRaw to attach to the same arena.
func (h *Handle) ExportRawHandle() arena.Handle {
	return h.arena.ExportHandle()
}

// ConnectRaw attaches to an arena exported by another process's Init, for
// workerID (used only to size per-worker telemetry/log context).
func ConnectRaw(raw arena.Handle, cfg Config, workerID int) (*Handle, error) {
	a, err := arena.Connect(raw, workerID, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Handle{
		arena:   a,
		cfg:     cfg,
		metrics: newMetricsSink(cfg.Registry),
		telem:   telemetry.New(cfg.LogLevel),
	}, nil
}

// Close releases this process's mapping of the arena. It does not affect
// other processes still mapping the same backing memory.
func (h *Handle) Close() error { return h.arena.Close() }

// AddEdge inserts a dependency-table edge directly, for callers building up
// the table incrementally rather than loading it from a blob/SQLite file.
// Returns false if the edge was already present (idempotent, like Arena.add
// on a digest already present).
func (h *Handle) AddEdge(from, to [16]byte) (bool, error) { return h.arena.AddEdge(from, to) }

// RemoveEdge removes a dependency-table edge, reporting whether it was
// present.
func (h *Handle) RemoveEdge(from, to [16]byte) bool { return h.arena.RemoveEdge(from, to) }

// Collect runs the arena's mark-and-sweep compaction and updates the
// collect counter and heap/hash/dep gauges.
func (h *Handle) Collect() error {
	err := h.arena.Collect()
	h.metrics.incCollect()
	h.sampleGauges()
	return err
}

// Diagnostics accessors, mirroring the arena's own (heap_used, heap_wasted,
// hash_nonempty_slots, hash_used_slots, dep_used_slots, dep_slots).
func (h *Handle) HeapUsed() uint64          { return h.arena.HeapUsed() }
func (h *Handle) HeapWasted() uint64        { return h.arena.HeapWasted() }
func (h *Handle) HashNonEmptySlots() uint64 { return h.arena.HashNonEmptySlots() }
func (h *Handle) HashUsedSlots() uint64     { return h.arena.HashUsedSlots() }
func (h *Handle) DepUsedSlots() uint64      { return h.arena.DepUsedSlots() }
func (h *Handle) DepSlots() uint64          { return h.arena.DepSlots() }

func (h *Handle) sampleGauges() {
	h.metrics.setHeapGauges(
		int64(h.arena.HeapUsed()),
		int64(h.arena.HeapWasted()),
		int64(h.arena.HashUsedSlots()),
		int64(h.arena.DepUsedSlots()),
	)
}

// GetTelemetry folds every registered sampler (one per store; overlay
// stacks and local caches register none) into one structured snapshot,
// nested under this Handle's registry root.
func (h *Handle) GetTelemetry() telemetry.Snapshot {
	h.sampleGauges()
	return h.telem.GetTelemetry()
}

// Connect constructs a typed CachedStore[K,V] bound to h's arena, applying
// opts (prefix, codec, cache sizing, sample rate, telemetry tag). Each
// value type used against the same Handle should pick a distinct prefix via
// WithPrefix to keep their key domains disjoint.
func Connect[K comparable, V any](h *Handle, opts ...Option[K, V]) *CachedStore[K, V] {
	// The process-wide SampleRate is the default; a per-store WithSampleRate
	// later in opts overrides it.
	all := append([]Option[K, V]{WithSampleRate[K, V](h.cfg.SampleRate)}, opts...)
	cs := newCachedStore[K, V](h.arena, h.telem, h.cfg.Logger, all)
	cs.metrics = h.metrics
	return cs
}

// Package telemetry implements the process-wide registries, modeled as
// explicit singletons rather than ambient module state: the
// sampler-callback list every store registers itself into (folded by
// GetTelemetry; overlay stacks and local caches register no sampler), and
// the invalidation-callback list InvalidateAll walks.
//
// © 2025 shmstore authors. MIT License.
package telemetry

import (
	"sync"
	"time"
)

// Snapshot is the structured telemetry object produced by a single sampler:
// a named bucket of scalar counts, optionally nested by value-type
// description.
type Snapshot struct {
	Name    string             `json:"name"`
	Count   int64              `json:"count"`
	Bytes   int64              `json:"bytes"`
	Nested  map[string]Snapshot `json:"nested,omitempty"`
}

// Sampler is registered by a store and invoked whenever GetTelemetry folds
// the registry.
type Sampler func() Snapshot

// AccessSample is the event emitted when a read recovers a profiling
// envelope's write timestamp: which store served the read, and when the
// value was originally written.
type AccessSample struct {
	Name      string
	WrittenAt time.Time
}

// AccessObserver receives access-sample events as they occur.
type AccessObserver func(AccessSample)

// Registry is a telemetry root. Construct one with New; the package holds
// no process-wide default instance.
type Registry struct {
	mu          sync.Mutex
	samplers    []Sampler
	invalidators []func()
	observers   []AccessObserver
	logLevel    int
}

// New constructs an isolated registry. Callers that want true process-wide
// sharing should hold one Registry and thread it through, rather than
// relying on global mutable state.
func New(logLevel int) *Registry {
	return &Registry{logLevel: logLevel}
}

// RegisterSampler adds fn to the set folded by GetTelemetry.
func (r *Registry) RegisterSampler(fn Sampler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samplers = append(r.samplers, fn)
}

// RegisterInvalidator adds fn to the set InvalidateAll calls.
func (r *Registry) RegisterInvalidator(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidators = append(r.invalidators, fn)
}

// RegisterAccessObserver adds fn to the set RecordAccess delivers to.
func (r *Registry) RegisterAccessObserver(fn AccessObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// RecordAccess delivers an access-sample event to every registered
// observer. No-op at log level 0, matching GetTelemetry's gating.
func (r *Registry) RecordAccess(s AccessSample) {
	if r.logLevel <= 0 {
		return
	}
	r.mu.Lock()
	fns := append([]AccessObserver{}, r.observers...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// InvalidateAll clears every registered cache. CachedStore's PushStack and
// PopStack do not go through it; they clear their own cache directly.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	fns := append([]func(){}, r.invalidators...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// GetTelemetry folds every registered sampler into one root Snapshot.
// log_level 0 disables sampling entirely; >1 additionally allows
// callers to opt into reachable-word measurements, which is expensive
// (hundreds of milliseconds) and therefore left to the caller's own sampler
// implementation to gate on LogLevel().
func (r *Registry) GetTelemetry() Snapshot {
	root := Snapshot{Name: "root", Nested: map[string]Snapshot{}}
	if r.logLevel <= 0 {
		return root
	}
	r.mu.Lock()
	samplers := append([]Sampler{}, r.samplers...)
	r.mu.Unlock()
	for _, s := range samplers {
		snap := s()
		root.Count += snap.Count
		root.Bytes += snap.Bytes
		root.Nested[snap.Name] = snap
	}
	return root
}

// LogLevel reports the configured sampling verbosity.
func (r *Registry) LogLevel() int { return r.logLevel }

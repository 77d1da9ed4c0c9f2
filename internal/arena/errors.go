package arena

// errors.go enumerates the named failure modes of the shared arena.
// Every arena error is a distinct sentinel so callers (and the telemetry
// layer) can switch on it without string matching.
//
// © 2025 shmstore authors. MIT License.

import "errors"

var (
	// ErrOutOfHeap is returned when the compressed-blob heap has no room left
	// for a new allocation. Add does not run Collect() itself before
	// returning it.
	ErrOutOfHeap = errors.New("arena: out of heap")

	// ErrHashTableFull is returned when the hash-slot table cannot place a new
	// digest after a full probe cycle.
	ErrHashTableFull = errors.New("arena: hash table full")

	// ErrDepTableFull is returned when the dependency-edge table cannot place
	// a new edge after a full probe cycle.
	ErrDepTableFull = errors.New("arena: dependency table full")

	// ErrRevisionLengthZero is returned when a caller attempts to persist a
	// dependency table under a zero-length revision identifier.
	ErrRevisionLengthZero = errors.New("arena: revision length zero")

	// ErrAnonMappingFailed is returned when the anonymous MAP_SHARED mapping
	// could not be established at all (before any filesystem fallback).
	ErrAnonMappingFailed = errors.New("arena: anonymous mapping init failure")

	// ErrInsufficientFreeBytes is returned (internally, then wrapped) when a
	// candidate filesystem does not have shm_min_avail bytes free.
	ErrInsufficientFreeBytes = errors.New("arena: insufficient free bytes")

	// ErrFilesystemUnusable is returned when a candidate shm_dirs entry could
	// not be statted, created, or opened.
	ErrFilesystemUnusable = errors.New("arena: filesystem unusable")

	// ErrOutOfMemory is raised only once every shm_dirs candidate has been
	// exhausted (after the anonymous mapping attempt also failed).
	ErrOutOfMemory = errors.New("arena: out of memory, no candidate filesystem available")

	// ErrAssertionFailure flags an internal invariant violation; arena errors
	// are always fatal, this is the catch-all for "should never happen"
	// paths.
	ErrAssertionFailure = errors.New("arena: internal assertion failure")

	// ErrNotMember is returned by Get/Remove when the digest is absent.
	ErrNotMember = errors.New("arena: digest not present")

	// ErrMoveSourceMissing / ErrMoveDestPresent guard Move()'s precondition.
	ErrMoveSourceMissing = errors.New("arena: move source missing")
	ErrMoveDestPresent   = errors.New("arena: move destination already present")

	// ErrSlotTorn signals a reader observed an in-flight write (odd seqlock
	// version) past the retry budget; callers should treat this the same as
	// a transient miss and retry at a higher layer.
	ErrSlotTorn = errors.New("arena: slot read overlapped a concurrent write")
)

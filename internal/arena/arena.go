// Package arena implements the process-wide shared-memory region: one
// fixed-size mapping holding a hash-slot table, a compressed-blob heap, and
// a dependency-edge table, allocated once before a master process forks so
// that workers and master share it without further system calls.
//
// The region is a real MAP_SHARED mmap so it is genuinely visible across
// process boundaries — the actual hard requirement of this component.
//
// Concurrency model: all operations here are wait-free constant time
// except Collect, which may block for a meaningful duration and assumes
// external write-exclusion. Writers must be externally serialized; readers
// tolerate a concurrently in-flight single-slot write via the seqlock in
// seqlock.go.
//
// © 2025 shmstore authors. MIT License.
package arena

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/Voskan/shmstore/internal/unsafehelpers"
)

// Config bundles the sizing and placement knobs frozen at init time.
type Config struct {
	HeapSize     uint64
	HashTablePow uint32
	DepTablePow  uint32
	ShmDirs      []string
	ShmMinAvail  int64
	GCMode       GCMode
	Logger       *zap.Logger
	WorkerCount  int
}

func (c Config) hashSlots() uint64 { return uint64(1) << c.HashTablePow }
func (c Config) depSlots() uint64  { return uint64(1) << c.DepTablePow }

func (c Config) totalSize() uint64 {
	return uint64(headerSize) + c.hashSlots()*slotSize + c.depSlots()*depSlotSize + c.HeapSize
}

// Arena is the opaque handle to the mapped region. It is safe to share
// (read-mostly) across goroutines within a process; cross-process writer
// serialization is the caller's responsibility.
type Arena struct {
	mapping []byte
	fd      int // -1 for an anonymous mapping
	cfg     Config
	logger  *zap.Logger

	hash *slotTable
	dep  *edgeTable
	heap *heapAllocator
}

// Init allocates and initializes a fresh arena. It first attempts an
// anonymous MAP_SHARED|MAP_ANONYMOUS mapping; on failure it iterates
// cfg.ShmDirs, skipping any directory that doesn't exist or doesn't have
// cfg.ShmMinAvail bytes free, logging each rejection, and only returns
// ErrOutOfMemory once every candidate is exhausted.
func Init(cfg Config) (*Arena, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.totalSize()

	mapping, fd, err := mmapAnonymous(size)
	if err != nil {
		logger.Warn("arena: anonymous mapping failed, falling back to filesystem candidates", zap.Error(err))
		mapping, fd, err = mmapFromCandidates(cfg.ShmDirs, cfg.ShmMinAvail, size, logger)
		if err != nil {
			return nil, err
		}
	}

	encodeHeader(mapping, header{
		HashTablePow: cfg.HashTablePow,
		DepTablePow:  cfg.DepTablePow,
		HeapSize:     cfg.HeapSize,
		HeapOffset:   uint64(headerSize) + cfg.hashSlots()*slotSize + cfg.depSlots()*depSlotSize,
		HashOffset:   uint64(headerSize),
		DepOffset:    uint64(headerSize) + cfg.hashSlots()*slotSize,
	})

	return newFromMapping(mapping, fd, cfg, logger)
}

// Handle is the opaque, serializable descriptor a child process uses to
// adopt the same mapping.
type Handle struct {
	FD       int
	Size     uint64
	FilePath string // empty for an anonymous mapping kept alive via FD inheritance
}

// ExportHandle returns the descriptor a forked worker can pass to Connect.
func (a *Arena) ExportHandle() Handle {
	return Handle{FD: a.fd, Size: uint64(len(a.mapping)), FilePath: ""}
}

// Connect adopts an existing mapping described by h, for use by a child
// process after fork. workerID is only used for logging/telemetry labeling
// here; sizing is frozen at Init time.
func Connect(h Handle, workerID int, logger *zap.Logger) (*Arena, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mapping, err := unix.Mmap(h.FD, 0, int(h.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("arena: connect worker %d: %w", workerID, err)
	}
	if !validMagic(mapping) {
		_ = unix.Munmap(mapping)
		return nil, ErrAssertionFailure
	}
	hdr := decodeHeader(mapping)
	cfg := Config{
		HeapSize:     hdr.HeapSize,
		HashTablePow: hdr.HashTablePow,
		DepTablePow:  hdr.DepTablePow,
		Logger:       logger,
	}
	return newFromMapping(mapping, h.FD, cfg, logger)
}

func newFromMapping(mapping []byte, fd int, cfg Config, logger *zap.Logger) (*Arena, error) {
	hdr := decodeHeader(mapping)
	a := &Arena{
		mapping: mapping,
		fd:      fd,
		cfg:     cfg,
		logger:  logger,
		hash:    newSlotTable(mapping[hdr.HashOffset:hdr.HashOffset+cfg.hashSlots()*slotSize], cfg.HashTablePow),
		dep:     newEdgeTable(mapping[hdr.DepOffset:hdr.DepOffset+cfg.depSlots()*depSlotSize], cfg.DepTablePow),
		heap:    newHeapAllocator(mapping, hdr.HeapOffset, hdr.HeapSize),
	}
	return a, nil
}

func mmapAnonymous(size uint64) ([]byte, int, error) {
	mapping, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, -1, fmt.Errorf("%w: %v", ErrAnonMappingFailed, err)
	}
	return mapping, -1, nil
}

func mmapFromCandidates(dirs []string, minAvail int64, size uint64, logger *zap.Logger) ([]byte, int, error) {
	for _, dir := range dirs {
		mapping, fd, err := tryCandidate(dir, minAvail, size)
		if err != nil {
			logger.Warn("arena: rejecting shm candidate", zap.String("dir", dir), zap.Error(err))
			continue
		}
		return mapping, fd, nil
	}
	return nil, -1, ErrOutOfMemory
}

func tryCandidate(dir string, minAvail int64, size uint64) ([]byte, int, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, -1, fmt.Errorf("%w: %s", ErrFilesystemUnusable, dir)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return nil, -1, fmt.Errorf("%w: statfs %s: %v", ErrFilesystemUnusable, dir, err)
	}
	avail := int64(stat.Bavail) * int64(stat.Bsize)
	if avail < minAvail {
		return nil, -1, fmt.Errorf("%w: %s has %d < %d", ErrInsufficientFreeBytes, dir, avail, minAvail)
	}

	f, err := os.CreateTemp(dir, "shmstore-arena-*")
	if err != nil {
		return nil, -1, fmt.Errorf("%w: create in %s: %v", ErrFilesystemUnusable, dir, err)
	}
	if err := syscall.Unlink(f.Name()); err != nil {
		f.Close()
		return nil, -1, fmt.Errorf("%w: unlink: %v", ErrFilesystemUnusable, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, -1, fmt.Errorf("%w: truncate: %v", ErrFilesystemUnusable, err)
	}
	// Dup the descriptor out of the os.File's ownership: the File is about
	// to go out of scope and its finalizer would otherwise close the fd the
	// exported Handle still needs.
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		f.Close()
		return nil, -1, fmt.Errorf("%w: dup: %v", ErrFilesystemUnusable, err)
	}
	f.Close()
	mapping, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, -1, fmt.Errorf("%w: mmap: %v", ErrFilesystemUnusable, err)
	}
	return mapping, fd, nil
}

// Close unmaps the region. It does not delete any backing file; the heap
// is not durable across process exit.
func (a *Arena) Close() error {
	return unix.Munmap(a.mapping)
}

/* -------------------------------------------------------------------------
   Digest-keyed operations
   ------------------------------------------------------------------------- */

// AddResult reports what Add actually did: whether a new entry was
// allocated, and the compressed/original/total byte counts when it was.
type AddResult struct {
	Allocated       bool
	CompressedSize  int
	OriginalSize    int
	TotalFootprint  int
}

// Add writes payload under digest d if absent; idempotent (Allocated=false)
// if already present.
func (a *Arena) Add(d [16]byte, payload []byte) (AddResult, error) {
	if !a.allowWrites() {
		return AddResult{}, ErrAssertionFailure
	}
	if _, present, err := a.hash.find(d); err != nil {
		return AddResult{}, err
	} else if present {
		return AddResult{Allocated: false}, nil
	}
	compressed, origLen := compress(payload)
	off, err := a.heap.alloc(compressed)
	if err != nil {
		return AddResult{}, err
	}
	inserted, err := a.hash.insert(d, off, uint32(len(compressed)), origLen)
	if err != nil {
		return AddResult{}, err
	}
	if !inserted {
		a.heap.free(uint64(len(compressed)))
		return AddResult{Allocated: false}, nil
	}
	return AddResult{
		Allocated:      true,
		CompressedSize: len(compressed),
		OriginalSize:   int(origLen),
		TotalFootprint: slotSize + len(compressed),
	}, nil
}

// Mem reports membership in constant time.
func (a *Arena) Mem(d [16]byte) (bool, error) {
	_, present, err := a.hash.find(d)
	return present, err
}

// Get returns the deserialized bytes for d. Requires Mem(d).
func (a *Arena) Get(d [16]byte) ([]byte, error) {
	v, present, err := a.hash.find(d)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, ErrNotMember
	}
	compressed := a.heap.read(v.blobOff, v.blobLen)
	return decompress(compressed, v.origLen)
}

// Remove deletes d and returns the freed (compressed) byte count. The
// physical heap space is reclaimed lazily by Collect.
func (a *Arena) Remove(d [16]byte) (int, error) {
	if !a.allowRemoves() {
		return 0, ErrAssertionFailure
	}
	v, present, err := a.hash.remove(d)
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, ErrNotMember
	}
	a.heap.free(uint64(v.blobLen))
	return int(v.blobLen), nil
}

// Move atomically renames src to dst. Requires Mem(src) && !Mem(dst).
func (a *Arena) Move(src, dst [16]byte) error {
	if !a.allowWrites() {
		return ErrAssertionFailure
	}
	srcView, present, err := a.hash.find(src)
	if err != nil {
		return err
	}
	if !present {
		return ErrMoveSourceMissing
	}
	if _, dstPresent, err := a.hash.find(dst); err != nil {
		return err
	} else if dstPresent {
		return ErrMoveDestPresent
	}
	if _, _, err := a.hash.remove(src); err != nil {
		return err
	}
	inserted, err := a.hash.insert(dst, srcView.blobOff, srcView.blobLen, srcView.origLen)
	if err != nil {
		return err
	}
	if !inserted {
		return ErrHashTableFull
	}
	return nil
}

// Collect runs the mark-and-sweep compaction pass. Callers typically gate
// this on ShouldCollect(HeapCursor(), HeapUsed(), mode).
func (a *Arena) Collect() error {
	if err := a.heap.compact(a.hash); err != nil {
		return err
	}
	atomic.AddUint64((*uint64)(unsafehelpers.PointerAt(a.mapping, int(offGeneration))), 1)
	return nil
}

/* -------------------------------------------------------------------------
   Dependency-edge table
   ------------------------------------------------------------------------- */

func (a *Arena) AddEdge(from, to [16]byte) (bool, error) { return a.dep.insert(from, to) }
func (a *Arena) RemoveEdge(from, to [16]byte) bool       { return a.dep.remove(from, to) }
func (a *Arena) EachEdge(fn func(from, to [16]byte))     { a.dep.each(fn) }

/* -------------------------------------------------------------------------
   Diagnostics
   ------------------------------------------------------------------------- */

func (a *Arena) HeapUsed() uint64          { return a.heap.used() }
func (a *Arena) HeapCursor() uint64        { return a.heap.cursor() }
func (a *Arena) HeapWasted() uint64        { return a.heap.wasted() }
func (a *Arena) HashNonEmptySlots() uint64 { return a.hash.nonEmptySlots() }
func (a *Arena) HashUsedSlots() uint64     { return a.hash.usedSlots() }
func (a *Arena) DepUsedSlots() uint64      { return a.dep.usedSlots() }
func (a *Arena) DepSlots() uint64          { return a.dep.capacity() }

/* -------------------------------------------------------------------------
   Write-gating switches
   ------------------------------------------------------------------------- */

func (a *Arena) allowRemovesPtr() *uint32 {
	return (*uint32)(unsafehelpers.PointerAt(a.mapping, offAllowRemoves))
}
func (a *Arena) allowWritesPtr() *uint32 {
	return (*uint32)(unsafehelpers.PointerAt(a.mapping, offAllowWrites))
}

func (a *Arena) allowRemoves() bool { return atomic.LoadUint32(a.allowRemovesPtr()) != 0 }
func (a *Arena) allowWrites() bool  { return atomic.LoadUint32(a.allowWritesPtr()) != 0 }

// SetAllowRemoves toggles the global remove switch, used to catch
// accidental mutations in read-only workers.
func (a *Arena) SetAllowRemoves(v bool) { atomic.StoreUint32(a.allowRemovesPtr(), boolToU32(v)) }

// SetAllowWrites gates all hash-table writes for the current process.
func (a *Arena) SetAllowWrites(v bool) { atomic.StoreUint32(a.allowWritesPtr(), boolToU32(v)) }

func boolToU32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

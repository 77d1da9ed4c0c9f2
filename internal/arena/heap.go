package arena

// heap.go implements the compressed-blob bump heap: a monotonically growing
// allocator over a fixed-size region of the mapping, plus Collect(), a
// stop-the-world compaction pass that squeezes out bytes belonging to
// removed/tombstoned slots.  Collect is the one arena operation allowed to
// block for a meaningful duration; callers
// decide when to invoke it (e.g. via ShouldCollect's overhead ratio), it is
// never triggered implicitly by Add.
//
// © 2025 shmstore authors. MIT License.

import (
	"bytes"
	"compress/flate"
	"io"
	"sync/atomic"

	"github.com/Voskan/shmstore/internal/unsafehelpers"
)

// GCMode selects the overhead ratio used by ShouldCollect.
type GCMode int

const (
	GCGentle     GCMode = iota // overhead 2.0
	GCAggressive               // overhead 1.2
	GCTesting                  // overhead 1.0
)

func (m GCMode) overhead() float64 {
	switch m {
	case GCAggressive:
		return 1.2
	case GCTesting:
		return 1.0
	default:
		return 2.0
	}
}

type heapAllocator struct {
	buf       []byte // full heap region
	cursorPtr *uint64
	usedPtr   *uint64
}

func newHeapAllocator(mapping []byte, heapOffset, heapSize uint64) *heapAllocator {
	return &heapAllocator{
		buf:       mapping[heapOffset : heapOffset+heapSize],
		cursorPtr: (*uint64)(unsafehelpers.PointerAt(mapping, int(offHeapCursor))),
		usedPtr:   (*uint64)(unsafehelpers.PointerAt(mapping, int(offHeapUsed))),
	}
}

func (h *heapAllocator) cursor() uint64 { return atomic.LoadUint64(h.cursorPtr) }
func (h *heapAllocator) used() uint64   { return atomic.LoadUint64(h.usedPtr) }
func (h *heapAllocator) capacity() uint64 { return uint64(len(h.buf)) }
func (h *heapAllocator) wasted() uint64 {
	c, u := h.cursor(), h.used()
	if c < u {
		return 0
	}
	return c - u
}

// compress deflates src; returns the compressed bytes and the original length.
func compress(src []byte) ([]byte, uint32) {
	var out bytes.Buffer
	zw, _ := flate.NewWriter(&out, flate.BestSpeed)
	_, _ = zw.Write(src)
	_ = zw.Close()
	return out.Bytes(), uint32(len(src))
}

func decompress(compressed []byte, origLen uint32) ([]byte, error) {
	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()
	dst := make([]byte, origLen)
	if _, err := io.ReadFull(zr, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// alloc bump-allocates n bytes and copies payload into them, returning the
// offset (relative to the heap region start) the caller should record in the
// slot table.
func (h *heapAllocator) alloc(payload []byte) (offset uint64, err error) {
	n := uint64(len(payload))
	for {
		cur := atomic.LoadUint64(h.cursorPtr)
		next := cur + n
		if next > h.capacity() {
			return 0, ErrOutOfHeap
		}
		if atomic.CompareAndSwapUint64(h.cursorPtr, cur, next) {
			copy(h.buf[cur:next], payload)
			atomic.AddUint64(h.usedPtr, n)
			return cur, nil
		}
	}
}

func (h *heapAllocator) read(offset uint64, length uint32) []byte {
	return h.buf[offset : offset+uint64(length)]
}

// free accounts bytes as no longer live; the physical space is only actually
// reclaimed by Collect's compaction pass.
func (h *heapAllocator) free(n uint64) {
	for {
		cur := atomic.LoadUint64(h.usedPtr)
		next := cur - n
		if cur < n {
			next = 0
		}
		if atomic.CompareAndSwapUint64(h.usedPtr, cur, next) {
			return
		}
	}
}

// ShouldCollect reports whether used_bytes >= reachable_bytes * overhead,
// using the current cursor position as the proxy for "bytes physically
// occupied" and `used` as reachable live bytes.
func ShouldCollect(cursor, used uint64, mode GCMode) bool {
	if used == 0 {
		return cursor > 0
	}
	return float64(cursor) >= float64(used)*mode.overhead()
}

// compact performs the actual mark-and-sweep: it reads every occupied slot's
// current blob, copies it to a freshly bump-allocated position starting from
// offset zero, and rewrites the slot's blobOff. It is only safe to call with
// external write-exclusion (the same discipline the rest of the arena
// assumes), which is why Collect is never invoked implicitly.
func (h *heapAllocator) compact(table *slotTable) error {
	newCursor := uint64(0)
	scratch := make([][]byte, 0, table.capacity())
	var offsets []uint64
	err := table.each(func(v slotView) error {
		blob := make([]byte, v.blobLen)
		copy(blob, h.read(v.blobOff, v.blobLen))
		scratch = append(scratch, blob)
		offsets = append(offsets, newCursor)
		newCursor += uint64(len(blob))
		return nil
	})
	if err != nil {
		return err
	}
	if newCursor > h.capacity() {
		return ErrAssertionFailure
	}
	// Physically relocate compacted blobs to the front of the heap.
	cursor := uint64(0)
	idx := 0
	if writeErr := table.each(func(v slotView) error {
		blob := scratch[idx]
		copy(h.buf[cursor:cursor+uint64(len(blob))], blob)
		idx++
		cursor += uint64(len(blob))
		return nil
	}); writeErr != nil {
		return writeErr
	}
	// Re-point each slot's blobOff to its new location, in the same order.
	idx = 0
	if err := retargetSlots(table, offsets, &idx); err != nil {
		return err
	}
	atomic.StoreUint64(h.cursorPtr, newCursor)
	atomic.StoreUint64(h.usedPtr, newCursor)
	return nil
}

func retargetSlots(table *slotTable, offsets []uint64, idx *int) error {
	buf := table.buf
	cap := table.capacity()
	for i := uint64(0); i < cap; i++ {
		slot := slotAt(buf, i)
		v, err := readSlot(slot)
		if err != nil {
			return err
		}
		if v.flags&flagOccupied == 0 {
			continue
		}
		v.blobOff = offsets[*idx]
		*idx++
		writeSlot(slot, v)
	}
	return nil
}

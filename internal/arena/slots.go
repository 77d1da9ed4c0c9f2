package arena

// slots.go implements the fixed-capacity, power-of-two hash-slot table that
// maps a 16-byte MD5 digest to a (blobOff, blobLen, origLen) descriptor in
// the heap.  Collisions are resolved with linear probing; a tombstone bit
// keeps probe chains intact across Remove(). Every slot carries its own
// seqlock version (seqlock.go) so a reader never observes a torn write.
//
// © 2025 shmstore authors. MIT License.

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	flagOccupied  uint8 = 1 << 0
	flagTombstone uint8 = 1 << 1
)

const (
	slotOffDigest  = 0
	slotOffBlobOff = 16
	slotOffBlobLen = 24
	slotOffOrigLen = 28
	slotOffVersion = 32
	slotOffFlags   = 36
)

type slotView struct {
	digest  [16]byte
	blobOff uint64
	blobLen uint32
	origLen uint32
	flags   uint8
}

func slotAt(table []byte, idx uint64) []byte {
	off := idx * slotSize
	return table[off : off+slotSize]
}

func readSlot(slot []byte) (slotView, error) {
	var v slotView
	err := seqRead(slot, slotOffVersion, func() {
		copy(v.digest[:], slot[slotOffDigest:slotOffDigest+16])
		v.blobOff = binary.LittleEndian.Uint64(slot[slotOffBlobOff:])
		v.blobLen = binary.LittleEndian.Uint32(slot[slotOffBlobLen:])
		v.origLen = binary.LittleEndian.Uint32(slot[slotOffOrigLen:])
		v.flags = slot[slotOffFlags]
	})
	return v, err
}

func writeSlot(slot []byte, v slotView) {
	start := seqBeginWrite(slot, slotOffVersion)
	copy(slot[slotOffDigest:slotOffDigest+16], v.digest[:])
	binary.LittleEndian.PutUint64(slot[slotOffBlobOff:], v.blobOff)
	binary.LittleEndian.PutUint32(slot[slotOffBlobLen:], v.blobLen)
	binary.LittleEndian.PutUint32(slot[slotOffOrigLen:], v.origLen)
	slot[slotOffFlags] = v.flags
	seqEndWrite(slot, slotOffVersion, start)
}

// digestHash mixes the full 16-byte digest via xxhash rather than truncating
// to its first 8 bytes, so probe-sequence distribution doesn't depend solely
// on the low half of an MD5 sum.
func digestHash(d [16]byte) uint64 {
	return xxhash.Sum64(d[:])
}

// slotTable provides find/insert/delete/iterate over a digest-keyed region.
type slotTable struct {
	buf  []byte
	pow  uint32
	mask uint64
}

func newSlotTable(buf []byte, pow uint32) *slotTable {
	n := uint64(1) << pow
	return &slotTable{buf: buf, pow: pow, mask: n - 1}
}

func (t *slotTable) capacity() uint64 { return t.mask + 1 }

// find returns the slot view and true if digest is present (non-tombstoned).
func (t *slotTable) find(digest [16]byte) (slotView, bool, error) {
	idx := digestHash(digest) & t.mask
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		slot := slotAt(t.buf, idx)
		v, err := readSlot(slot)
		if err != nil {
			return slotView{}, false, err
		}
		if v.flags&flagOccupied == 0 && v.flags&flagTombstone == 0 {
			return slotView{}, false, nil // empty slot ends the probe chain
		}
		if v.flags&flagOccupied != 0 && v.digest == digest {
			return v, true, nil
		}
		idx = (idx + 1) & t.mask
	}
	return slotView{}, false, nil
}

// insert places a new occupied slot for digest. Returns ErrHashTableFull if
// no free/tombstoned slot is found within one full probe cycle. If the
// digest is already present, insert is a no-op and returns (false, nil)
// mirroring arena.add's idempotency contract.
func (t *slotTable) insert(digest [16]byte, blobOff uint64, blobLen, origLen uint32) (bool, error) {
	idx := digestHash(digest) & t.mask
	cap := t.capacity()
	firstFree := int64(-1)
	for i := uint64(0); i < cap; i++ {
		slot := slotAt(t.buf, idx)
		v, err := readSlot(slot)
		if err != nil {
			return false, err
		}
		if v.flags&flagOccupied != 0 {
			if v.digest == digest {
				return false, nil // already present: idempotent no-op
			}
		} else {
			if firstFree < 0 {
				firstFree = int64(idx)
			}
			if v.flags&flagTombstone == 0 {
				break // empty, non-tombstoned slot ends the probe chain
			}
		}
		idx = (idx + 1) & t.mask
	}
	if firstFree < 0 {
		return false, ErrHashTableFull
	}
	writeSlot(slotAt(t.buf, uint64(firstFree)), slotView{
		digest:  digest,
		blobOff: blobOff,
		blobLen: blobLen,
		origLen: origLen,
		flags:   flagOccupied,
	})
	return true, nil
}

// remove tombstones the slot holding digest. Returns ok=false if absent.
func (t *slotTable) remove(digest [16]byte) (slotView, bool, error) {
	idx := digestHash(digest) & t.mask
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		slot := slotAt(t.buf, idx)
		v, err := readSlot(slot)
		if err != nil {
			return slotView{}, false, err
		}
		if v.flags&flagOccupied == 0 && v.flags&flagTombstone == 0 {
			return slotView{}, false, nil
		}
		if v.flags&flagOccupied != 0 && v.digest == digest {
			writeSlot(slot, slotView{digest: digest, flags: flagTombstone})
			return v, true, nil
		}
		idx = (idx + 1) & t.mask
	}
	return slotView{}, false, nil
}

// each visits every occupied slot; used by Collect()'s mark phase callers and
// diagnostics. Order is table order, not insertion order.
func (t *slotTable) each(fn func(v slotView) error) error {
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		v, err := readSlot(slotAt(t.buf, i))
		if err != nil {
			return err
		}
		if v.flags&flagOccupied != 0 {
			if err := fn(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *slotTable) usedSlots() uint64 {
	var n uint64
	_ = t.each(func(slotView) error { n++; return nil })
	return n
}

func (t *slotTable) nonEmptySlots() uint64 {
	var n uint64
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		v, _ := readSlot(slotAt(t.buf, i))
		if v.flags&(flagOccupied|flagTombstone) != 0 {
			n++
		}
	}
	return n
}

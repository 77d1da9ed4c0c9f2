package arena

// deptable.go implements the dependency-edge table: a second fixed-capacity
// slot table recording (fromDigest, toDigest) edges, used by the higher-level
// dependency-graph persistence (pkg/deptable.go). It reuses the same
// seqlock-guarded, linear-probed slot shape as the value hash table
// (slots.go) but keys on the pair rather than a single digest.
//
// © 2025 shmstore authors. MIT License.

import "github.com/cespare/xxhash/v2"

const (
	depOffFrom    = 0
	depOffTo      = 16
	depOffVersion = 32
	depOffFlags   = 36
)

type edgeView struct {
	from, to [16]byte
	flags    uint8
}

type edgeTable struct {
	buf  []byte
	pow  uint32
	mask uint64
}

func newEdgeTable(buf []byte, pow uint32) *edgeTable {
	n := uint64(1) << pow
	return &edgeTable{buf: buf, pow: pow, mask: n - 1}
}

func (t *edgeTable) capacity() uint64 { return t.mask + 1 }

func edgeSlotAt(buf []byte, idx uint64) []byte {
	off := idx * depSlotSize
	return buf[off : off+depSlotSize]
}

func readEdge(slot []byte) (edgeView, error) {
	var v edgeView
	err := seqRead(slot, depOffVersion, func() {
		copy(v.from[:], slot[depOffFrom:depOffFrom+16])
		copy(v.to[:], slot[depOffTo:depOffTo+16])
		v.flags = slot[depOffFlags]
	})
	return v, err
}

func writeEdge(slot []byte, v edgeView) {
	start := seqBeginWrite(slot, depOffVersion)
	copy(slot[depOffFrom:depOffFrom+16], v.from[:])
	copy(slot[depOffTo:depOffTo+16], v.to[:])
	slot[depOffFlags] = v.flags
	seqEndWrite(slot, depOffVersion, start)
}

func edgeHash(from, to [16]byte) uint64 {
	var buf [32]byte
	copy(buf[:16], from[:])
	copy(buf[16:], to[:])
	return xxhash.Sum64(buf[:])
}

func (t *edgeTable) insert(from, to [16]byte) (bool, error) {
	idx := edgeHash(from, to) & t.mask
	cap := t.capacity()
	firstFree := int64(-1)
	for i := uint64(0); i < cap; i++ {
		slot := edgeSlotAt(t.buf, idx)
		v, err := readEdge(slot)
		if err != nil {
			return false, err
		}
		if v.flags&flagOccupied != 0 {
			if v.from == from && v.to == to {
				return false, nil
			}
		} else {
			if firstFree < 0 {
				firstFree = int64(idx)
			}
			if v.flags&flagTombstone == 0 {
				break
			}
		}
		idx = (idx + 1) & t.mask
	}
	if firstFree < 0 {
		return false, ErrDepTableFull
	}
	writeEdge(edgeSlotAt(t.buf, uint64(firstFree)), edgeView{from: from, to: to, flags: flagOccupied})
	return true, nil
}

func (t *edgeTable) remove(from, to [16]byte) bool {
	idx := edgeHash(from, to) & t.mask
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		slot := edgeSlotAt(t.buf, idx)
		v, err := readEdge(slot)
		if err != nil {
			return false
		}
		if v.flags&flagOccupied == 0 && v.flags&flagTombstone == 0 {
			return false
		}
		if v.flags&flagOccupied != 0 && v.from == from && v.to == to {
			writeEdge(slot, edgeView{from: from, to: to, flags: flagTombstone})
			return true
		}
		idx = (idx + 1) & t.mask
	}
	return false
}

func (t *edgeTable) each(fn func(from, to [16]byte)) {
	cap := t.capacity()
	for i := uint64(0); i < cap; i++ {
		v, err := readEdge(edgeSlotAt(t.buf, i))
		if err != nil {
			continue
		}
		if v.flags&flagOccupied != 0 {
			fn(v.from, v.to)
		}
	}
}

func (t *edgeTable) usedSlots() uint64 {
	var n uint64
	t.each(func([16]byte, [16]byte) { n++ })
	return n
}

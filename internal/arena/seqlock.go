package arena

// seqlock.go implements the per-slot version counter used to guard hash-slot
// and dependency-slot reads against a concurrently in-flight write, so a
// reader never acts on a partially-written slot under relaxed memory
// ordering.
//
// Protocol, classic seqlock:
//   writer:  v := load(ver); store(ver, v+1) [now odd]; mutate fields; store(ver, v+2) [even]
//   reader:  v1 := load(ver); if v1 odd -> retry; read fields; v2 := load(ver); if v1 != v2 -> retry
//
// Reads retry with bounded exponential backoff on overlap with a
// concurrent writer rather than spinning forever.
//
// © 2025 shmstore authors. MIT License.

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/Voskan/shmstore/internal/unsafehelpers"
)

const (
	seqReadMaxRetries    = 10
	seqReadInitialBackoff = 50 * time.Microsecond
	seqReadMaxBackoff     = 1 * time.Millisecond
)

func seqBackoff(attempt int) {
	if attempt == 0 {
		return
	}
	d := seqReadInitialBackoff << uint(attempt-1)
	if d > seqReadMaxBackoff || d <= 0 {
		d = seqReadMaxBackoff
	}
	time.Sleep(d)
}

func verPtr(slot []byte, offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(unsafehelpers.PointerAt(slot, offset)))
}

func seqBeginWrite(slot []byte, offset int) uint32 {
	p := verPtr(slot, offset)
	v := atomic.LoadUint32(p)
	atomic.StoreUint32(p, v+1)
	return v
}

func seqEndWrite(slot []byte, offset int, start uint32) {
	atomic.StoreUint32(verPtr(slot, offset), start+2)
}

// seqRead executes fn (which must only read, never mutate, the slot bytes)
// until it observes a stable (even, unchanged) version or exhausts its retry
// budget, in which case it returns ErrSlotTorn.
func seqRead(slot []byte, offset int, fn func()) error {
	p := verPtr(slot, offset)
	for attempt := 0; attempt < seqReadMaxRetries; attempt++ {
		v1 := atomic.LoadUint32(p)
		if v1&1 == 1 {
			seqBackoff(attempt + 1)
			continue
		}
		fn()
		v2 := atomic.LoadUint32(p)
		if v1 == v2 {
			return nil
		}
		seqBackoff(attempt + 1)
	}
	return ErrSlotTorn
}

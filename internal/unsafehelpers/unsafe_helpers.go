// Package unsafehelpers centralises the one unavoidable usage of the
// `unsafe` standard-library package so that the rest of shmstore stays
// clean and easier to audit: addressing a field inside a shared
// mmap-backed byte slice without copying, for the seqlock version
// counters internal/arena reads and writes with atomic operations.
//
// DISCLAIMER: this helper deliberately breaks the Go memory-safety model
// for the sake of zero-allocation pointer arithmetic. Use ONLY inside
// this repository; it is not part of the public API and may change
// without notice.
//
// go:linkname-free, cgo-free, pure Go.
//
// © 2025 shmstore authors. MIT License.
package unsafehelpers

import "unsafe"

// PointerAt returns an unsafe.Pointer to b[offset]. Caller must ensure offset
// is within bounds and, for atomic use, that it respects the target type's
// natural alignment. Used by internal/arena to address fields inside a
// shared mmap-backed byte slice without copying.
func PointerAt(b []byte, offset int) unsafe.Pointer {
	return unsafe.Pointer(&b[offset])
}

// Package mem provides aligned host allocation for buffer storage.
package mem

import (
	"unsafe"
)

// Alignment is the default byte alignment of host allocations (one AVX-512
// register, and a multiple of every element size).
const Alignment = 64

// Alloc returns a zeroed byte slice of the given size whose first byte sits
// on an align-byte boundary. align must be a power of two.
//
// The backing array is over-allocated by align bytes and kept alive by the
// returned slice.
func Alloc(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 1 {
		return make([]byte, size)
	}

	buf := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf))) //nolint:gosec // alignment arithmetic
	offset := (uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1)
	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// AllocAligned allocates size bytes on the default alignment.
func AllocAligned(size int) []byte {
	return Alloc(size, Alignment)
}

// IsAligned reports whether the first byte of b sits on an align-byte boundary.
// Empty slices are always aligned.
func IsAligned(b []byte, align int) bool {
	if len(b) == 0 || align <= 1 {
		return true
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b))) //nolint:gosec // alignment arithmetic
	return addr&uintptr(align-1) == 0
}

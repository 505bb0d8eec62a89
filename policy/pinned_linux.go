//go:build linux

package policy

import (
	"github.com/hupe1980/tabula/internal/mem"
	"golang.org/x/sys/unix"
)

// allocPinned maps anonymous memory and locks it so transfers can read it
// without faulting. When locking is refused (RLIMIT_MEMLOCK) the mapping is
// still used, unpinned; when mapping fails the Go heap is used.
func allocPinned(size int) ([]byte, bool, func()) {
	if size == 0 {
		return nil, false, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return mem.AllocAligned(size), false, nil
	}
	pinned := unix.Mlock(data) == nil
	return data, pinned, func() {
		if pinned {
			_ = unix.Munlock(data)
		}
		_ = unix.Munmap(data)
	}
}

//go:build !linux

package policy

import "github.com/hupe1980/tabula/internal/mem"

// allocPinned falls back to aligned heap memory where page locking is not
// wired up.
func allocPinned(size int) ([]byte, bool, func()) {
	return mem.AllocAligned(size), false, nil
}

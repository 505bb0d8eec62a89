package policy

import (
	"fmt"

	"github.com/hupe1980/tabula/resource"
)

// AllocKind describes where a buffer's memory resides and how it was allocated.
type AllocKind uint8

const (
	// Pageable is pageable host memory, not directly visible to an accelerator.
	Pageable AllocKind = iota
	// DeviceHost is pinned host memory the accelerator can address.
	DeviceHost
	// Device is accelerator-only memory; the host cannot read it directly.
	Device
	// Shared is unified memory addressable from both sides.
	Shared
)

func (k AllocKind) String() string {
	switch k {
	case Pageable:
		return "host"
	case DeviceHost:
		return "device-host"
	case Device:
		return "device"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("alloc-kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known allocation kind.
func (k AllocKind) Valid() bool {
	return k <= Shared
}

// HostAccessible reports whether host code may read and write the memory.
func (k AllocKind) HostAccessible() bool {
	return k == Pageable || k == DeviceHost || k == Shared
}

// DeviceResident reports whether the memory must be reached through an
// execution queue rather than plain host loads and stores.
func (k AllocKind) DeviceResident() bool {
	return k == Device
}

// Pool returns the resource pool an allocation of this kind is charged to.
func (k AllocKind) Pool() resource.Pool {
	if k == Device || k == Shared {
		return resource.DevicePool
	}
	return resource.HostPool
}

// NeedsCopy reports whether memory of kind origin must be copied to satisfy a
// request for memory of kind requested.
//
//   - a host request is served by any host-accessible origin
//   - a device request is served by device or shared memory
//   - every other request needs an exact match
func NeedsCopy(origin, requested AllocKind) bool {
	if origin == requested {
		return false
	}
	switch requested {
	case Pageable:
		return !origin.HostAccessible()
	case Device:
		return origin != Shared
	default:
		return true
	}
}

package policy

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/internal/mem"
	"github.com/hupe1980/tabula/resource"
)

// Allocation is a block of raw memory handed out by an Accelerator.
type Allocation struct {
	// Bytes is the backing memory. For Device kind allocations host code must
	// only touch it from tasks running on the owning queue.
	Bytes []byte
	Kind  AllocKind
	// Pinned is true when the pages are locked in physical memory.
	Pinned bool
	// Free returns the memory; it is safe to call more than once.
	Free func()
}

// Accelerator allocates memory in the address spaces it can reach.
type Accelerator interface {
	Name() string
	Allocate(ctx context.Context, kind AllocKind, size int) (Allocation, error)
}

// hostDevice serves host and pinned host allocations when no accelerator is
// involved.
type hostDevice struct {
	rc *resource.Controller
}

// HostDevice returns the device backing host policies. Allocations are charged
// to rc (which may be nil).
func HostDevice(rc *resource.Controller) Accelerator {
	return &hostDevice{rc: rc}
}

func (d *hostDevice) Name() string { return "host" }

func (d *hostDevice) Allocate(ctx context.Context, kind AllocKind, size int) (Allocation, error) {
	if kind != Pageable && kind != DeviceHost {
		return Allocation{}, core.InvalidArgumentf("host device cannot allocate %s memory", kind)
	}
	return allocate(ctx, d.rc, kind, size)
}

// SimulatedDevice is an accelerator whose memory lives in the process heap.
//
// Device-kind memory it hands out is treated as accelerator-only by the rest
// of the library: buffers refuse host views of it and every access goes
// through a queue created by NewQueue.
type SimulatedDevice struct {
	name   string
	rc     *resource.Controller
	allocs atomic.Int64
	bytes  atomic.Int64
}

// DeviceOption configures a SimulatedDevice.
type DeviceOption func(*SimulatedDevice)

// WithDeviceName sets the device name reported by Name.
func WithDeviceName(name string) DeviceOption {
	return func(d *SimulatedDevice) { d.name = name }
}

// WithDeviceResources charges device allocations to rc.
func WithDeviceResources(rc *resource.Controller) DeviceOption {
	return func(d *SimulatedDevice) { d.rc = rc }
}

// NewSimulatedDevice creates a simulated accelerator.
func NewSimulatedDevice(opts ...DeviceOption) *SimulatedDevice {
	d := &SimulatedDevice{name: "sim:0"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the device name.
func (d *SimulatedDevice) Name() string { return d.name }

// Allocate returns memory of the requested kind.
func (d *SimulatedDevice) Allocate(ctx context.Context, kind AllocKind, size int) (Allocation, error) {
	if !kind.Valid() {
		return Allocation{}, core.InvalidArgumentf("unsupported allocation kind %s", kind)
	}
	a, err := allocate(ctx, d.rc, kind, size)
	if err != nil {
		return Allocation{}, err
	}
	d.allocs.Add(1)
	d.bytes.Add(int64(size))
	free := a.Free
	var freed atomic.Bool
	a.Free = func() {
		if freed.CompareAndSwap(false, true) {
			d.allocs.Add(-1)
			d.bytes.Add(-int64(size))
			free()
		}
	}
	return a, nil
}

// LiveAllocations returns the number and total size of unfreed allocations.
func (d *SimulatedDevice) LiveAllocations() (count, bytes int64) {
	return d.allocs.Load(), d.bytes.Load()
}

// NewQueue creates an in-order execution queue on the device.
func (d *SimulatedDevice) NewQueue() *InOrderQueue {
	return NewInOrderQueue(d)
}

func allocate(ctx context.Context, rc *resource.Controller, kind AllocKind, size int) (Allocation, error) {
	if size < 0 {
		return Allocation{}, core.Domainf("negative allocation size %d", size)
	}
	if err := rc.AcquireMemory(ctx, kind.Pool(), int64(size)); err != nil {
		return Allocation{}, fmt.Errorf("allocate %d bytes of %s memory: %w", size, kind, err)
	}

	var (
		data   []byte
		pinned bool
		free   func()
	)
	if kind == DeviceHost {
		data, pinned, free = allocPinned(size)
	} else {
		data = mem.AllocAligned(size)
	}

	var freed atomic.Bool
	return Allocation{
		Bytes:  data,
		Kind:   kind,
		Pinned: pinned,
		Free: func() {
			if !freed.CompareAndSwap(false, true) {
				return
			}
			if free != nil {
				free()
			}
			rc.ReleaseMemory(kind.Pool(), int64(size))
		},
	}, nil
}

package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// Transfer directions reported to logs and metrics.
const (
	HostToDevice   = "host-to-device"
	DeviceToHost   = "device-to-host"
	DeviceToDevice = "device-to-device"
)

// direction classifies a job whose endpoints are not both host accessible.
func direction(j Job) string {
	srcDev := !j.Src.Kind().HostAccessible()
	dstDev := !j.Dst.Kind().HostAccessible()
	switch {
	case srcDev && dstDev:
		return DeviceToDevice
	case srcDev:
		return DeviceToHost
	default:
		return HostToDevice
	}
}

// runStaged executes a job touching device-only memory. It runs on the
// policy's queue. Device-to-device jobs convert in place; mixed jobs go
// through a pinned host scratch buffer sized to the block: host-to-device
// converts into scratch and transfers, device-to-host transfers into scratch
// and converts.
func (e *Engine) runStaged(ctx context.Context, pol policy.Policy, k kernel, j Job) error {
	dir := direction(j)
	if dir == DeviceToDevice {
		return k(j.Dst, j.Src, j.span())
	}

	start := time.Now()
	err := e.stage(ctx, pol, k, j, dir)
	bytes := j.Count * j.Dst.DataType().Size()
	if dir == DeviceToHost {
		bytes = j.Count * j.Src.DataType().Size()
	}
	e.logger.LogTransfer(ctx, dir, bytes, err)
	if err == nil {
		e.metrics.RecordTransfer(dir, bytes, time.Since(start))
	}
	return err
}

func (e *Engine) stage(ctx context.Context, pol policy.Policy, k kernel, j Job, dir string) error {
	s := j.span()
	rc := e.resources(pol)

	scratchType := j.Dst.DataType()
	if dir == DeviceToHost {
		scratchType = j.Src.DataType()
	}
	scratch, err := memory.Alloc(ctx, policy.Host(policy.WithResourceController(rc)).WithKind(policy.DeviceHost), scratchType, s.n)
	if err != nil {
		return fmt.Errorf("allocate staging buffer: %w", err)
	}
	defer scratch.Release()

	if err := rc.AcquireTransfer(ctx, s.n*scratchType.Size()); err != nil {
		return fmt.Errorf("transfer budget: %w", err)
	}

	toScratch := span{srcOff: s.srcOff, srcStride: s.srcStride, dstOff: 0, dstStride: 1, n: s.n}
	fromScratch := span{srcOff: 0, srcStride: 1, dstOff: s.dstOff, dstStride: s.dstStride, n: s.n}

	if dir == HostToDevice {
		if err := k(scratch, j.Src, toScratch); err != nil {
			return err
		}
		return identity(scratchType)(j.Dst, scratch, fromScratch)
	}
	if err := identity(scratchType)(scratch, j.Src, toScratch); err != nil {
		return err
	}
	return k(j.Dst, scratch, fromScratch)
}

func identity(dt dtype.DataType) kernel {
	return kernels[dt][dt]
}

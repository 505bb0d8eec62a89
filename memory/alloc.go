package memory

import (
	"context"
	"fmt"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/policy"
)

// Alloc allocates count zeroed elements of dt under pol. The size is checked
// for overflow before any memory is requested.
func Alloc(ctx context.Context, pol policy.Policy, dt dtype.DataType, count int) (*Buffer, error) {
	own, err := allocOwner(ctx, pol, dt, count)
	if err != nil {
		return nil, err
	}
	return newBuffer(own, dt, 0, count, true), nil
}

// AllocOf is the typed form of Alloc.
func AllocOf[T dtype.Element](ctx context.Context, pol policy.Policy, count int) (*Buffer, error) {
	return Alloc(ctx, pol, dtype.Of[T](), count)
}

// Reset points b at a fresh allocation of count elements of b's element type
// under pol. Other Buffers viewing the previous allocation are unaffected.
func (b *Buffer) Reset(ctx context.Context, pol policy.Policy, count int) error {
	own, err := allocOwner(ctx, pol, b.dt, count)
	if err != nil {
		return err
	}
	b.cleanup.Stop()
	b.ref.drop()

	own.retain()
	r := &ref{own: own}
	b.ref = r
	b.off, b.count, b.mutable = 0, count, true
	b.cleanup = addCleanup(b, r)
	return nil
}

func allocOwner(ctx context.Context, pol policy.Policy, dt dtype.DataType, count int) (*owner, error) {
	if !dt.Valid() {
		return nil, core.InvalidArgumentf("unsupported data type %s", dt)
	}
	if count < 0 {
		return nil, core.Domainf("negative element count %d", count)
	}
	size, err := conv.ByteSize(int64(count), dt.Size())
	if err != nil {
		return nil, fmt.Errorf("allocate %d %s elements: %w", count, dt, err)
	}
	a, err := pol.Allocate(ctx, size)
	if err != nil {
		return nil, err
	}
	return newOwner(a.Bytes, a.Kind, a.Free), nil
}

package table

import (
	"context"

	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// EmptyTable has no rows and no columns. Only the empty row range can be
// pulled or pushed.
type EmptyTable struct{}

var _ Table = EmptyTable{}

// Empty returns the empty table.
func Empty() EmptyTable { return EmptyTable{} }

func (EmptyTable) Kind() Kind { return KindEmpty }
func (EmptyTable) RowCount() int64 { return 0 }
func (EmptyTable) ColumnCount() int64 { return 0 }
func (EmptyTable) Metadata() Metadata { return Metadata{} }
func (EmptyTable) Layout() Layout { return RowMajor }
func (EmptyTable) Release() {}

// PullRows returns an empty block for the empty range.
func (EmptyTable) PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	if _, _, err := rows.normalize("row", 0); err != nil {
		return nil, nil, err
	}
	b, err := memory.Alloc(ctx, applyAccess(opts).pol, dt, 0)
	return b, nil, err
}

// PullColumn always fails: there are no columns.
func (EmptyTable) PullColumn(_ context.Context, _ dtype.DataType, column int64, _ Range, _ ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	return nil, nil, checkColumn(column, 0)
}

// PushRows accepts only an empty block for the empty range.
func (EmptyTable) PushRows(_ context.Context, block *memory.Buffer, rows Range, _ ...AccessOption) (*policy.Event, error) {
	if _, _, err := rows.normalize("row", 0); err != nil {
		return nil, err
	}
	return nil, checkBlockSize(block, 0)
}

// PushColumn always fails: there are no columns.
func (EmptyTable) PushColumn(_ context.Context, _ *memory.Buffer, column int64, _ Range, _ ...AccessOption) (*policy.Event, error) {
	return nil, checkColumn(column, 0)
}

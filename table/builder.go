package table

import (
	"context"

	"github.com/hupe1980/tabula/chunked"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

var errNoStorage = core.Domainf("builder has no storage; call Allocate first")

// HomogenBuilder assembles a Homogen table. After Allocate the builder
// serves the block-access protocol so the table can be filled in place.
type HomogenBuilder struct {
	dt     dtype.DataType
	layout Layout
	pol    policy.Policy
	opts   []Option
	table  *Homogen
}

// NewHomogenBuilder returns a builder for float64 row-major tables
// allocated in host memory. opts are applied to the built table.
func NewHomogenBuilder(opts ...Option) *HomogenBuilder {
	b := &HomogenBuilder{opts: opts}
	b.Reset()
	return b
}

// Reset drops any storage and restores the defaults.
func (b *HomogenBuilder) Reset() {
	if b.table != nil {
		b.table.Release()
	}
	b.dt, b.layout, b.pol, b.table = dtype.Float64, RowMajor, policy.Host(), nil
}

// SetDataType sets the element type. It must precede Allocate.
func (b *HomogenBuilder) SetDataType(dt dtype.DataType) error {
	if !dt.Valid() {
		return core.InvalidArgumentf("invalid data type %s", dt)
	}
	if b.table != nil {
		return core.Domainf("data type is fixed once storage is allocated")
	}
	b.dt = dt
	return nil
}

// SetLayout sets the storage order. It must precede Allocate.
func (b *HomogenBuilder) SetLayout(l Layout) error {
	if !l.Valid() {
		return core.Domainf("unsupported layout %s", l)
	}
	if b.table != nil {
		return core.Domainf("layout is fixed once storage is allocated")
	}
	b.layout = l
	return nil
}

// SetPolicy sets where Allocate places storage.
func (b *HomogenBuilder) SetPolicy(p policy.Policy) { b.pol = p }

// Allocate creates zeroed storage for rows x cols cells. The shape is
// validated, overflow included, before any memory is requested.
func (b *HomogenBuilder) Allocate(ctx context.Context, rows, cols int64) error {
	n, err := checkShape(rows, cols, b.dt)
	if err != nil {
		return err
	}
	buf, err := memory.Alloc(ctx, b.pol, b.dt, n)
	if err != nil {
		return err
	}
	t, err := newHomogen(buf, rows, cols, b.layout, b.opts)
	if err != nil {
		return err
	}
	if b.table != nil {
		b.table.Release()
	}
	b.table = t
	return nil
}

// SetData adopts existing storage in place of Allocate.
func (b *HomogenBuilder) SetData(data *memory.Buffer, rows, cols int64) error {
	t, err := NewHomogen(data, rows, cols, b.layout, b.opts...)
	if err != nil {
		return err
	}
	if b.table != nil {
		b.table.Release()
	}
	b.dt, b.table = data.DataType(), t
	return nil
}

// PullRows pulls from the table under construction.
func (b *HomogenBuilder) PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	if b.table == nil {
		return nil, nil, errNoStorage
	}
	return b.table.PullRows(ctx, dt, rows, opts...)
}

// PullColumn pulls from the table under construction.
func (b *HomogenBuilder) PullColumn(ctx context.Context, dt dtype.DataType, column int64, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	if b.table == nil {
		return nil, nil, errNoStorage
	}
	return b.table.PullColumn(ctx, dt, column, rows, opts...)
}

// PushRows pushes into the table under construction.
func (b *HomogenBuilder) PushRows(ctx context.Context, block *memory.Buffer, rows Range, opts ...AccessOption) (*policy.Event, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	return b.table.PushRows(ctx, block, rows, opts...)
}

// PushColumn pushes into the table under construction.
func (b *HomogenBuilder) PushColumn(ctx context.Context, block *memory.Buffer, column int64, rows Range, opts ...AccessOption) (*policy.Event, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	return b.table.PushColumn(ctx, block, column, rows, opts...)
}

// Build hands the table over and resets the builder.
func (b *HomogenBuilder) Build() (*Homogen, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	t := b.table
	b.table = nil
	b.Reset()
	return t, nil
}

// HeterogenBuilder assembles a Heterogen table column by column.
type HeterogenBuilder struct {
	dt    dtype.DataType
	types map[int]dtype.DataType
	pol   policy.Policy
	opts  []Option
	table *Heterogen
}

// NewHeterogenBuilder returns a builder whose columns default to float64.
func NewHeterogenBuilder(opts ...Option) *HeterogenBuilder {
	b := &HeterogenBuilder{opts: opts}
	b.Reset()
	return b
}

// Reset drops any storage and restores the defaults.
func (b *HeterogenBuilder) Reset() {
	if b.table != nil {
		b.table.Release()
	}
	b.dt, b.types, b.pol, b.table = dtype.Float64, map[int]dtype.DataType{}, policy.Host(), nil
}

// SetDataType sets the element type of every column without its own type.
func (b *HeterogenBuilder) SetDataType(dt dtype.DataType) error {
	if !dt.Valid() {
		return core.InvalidArgumentf("invalid data type %s", dt)
	}
	if b.table != nil {
		return core.Domainf("data types are fixed once storage is allocated")
	}
	b.dt = dt
	return nil
}

// SetColumnType sets the element type of one column.
func (b *HeterogenBuilder) SetColumnType(col int, dt dtype.DataType) error {
	if !dt.Valid() {
		return core.InvalidArgumentf("invalid data type %s", dt)
	}
	if col < 0 {
		return core.Domainf("negative column %d", col)
	}
	if b.table != nil {
		return core.Domainf("data types are fixed once storage is allocated")
	}
	b.types[col] = dt
	return nil
}

// SetPolicy sets where Allocate places storage.
func (b *HeterogenBuilder) SetPolicy(p policy.Policy) { b.pol = p }

// Allocate creates one zeroed single-chunk column per column index.
func (b *HeterogenBuilder) Allocate(ctx context.Context, rows, cols int64) error {
	if rows <= 0 || cols <= 0 {
		return core.Domainf("shape %dx%d must be positive", rows, cols)
	}
	for c := range b.types {
		if int64(c) >= cols {
			return &core.RangeError{What: "column", Start: int64(c), End: int64(c) + 1, Extent: cols}
		}
	}
	n, err := conv.ToInt(rows)
	if err != nil {
		return err
	}
	columns := make([]*chunked.Array, 0, cols)
	defer func() { releaseArrays(columns) }()
	for c := range int(cols) {
		dt, ok := b.types[c]
		if !ok {
			dt = b.dt
		}
		if _, err := conv.ByteSize(rows, dt.Size()); err != nil {
			return err
		}
		buf, err := memory.Alloc(ctx, b.pol, dt, n)
		if err != nil {
			return err
		}
		columns = append(columns, chunked.FromBuffer(buf))
		buf.Release()
	}
	return b.SetColumns(columns...)
}

// SetColumns adopts existing columns in place of Allocate.
func (b *HeterogenBuilder) SetColumns(columns ...*chunked.Array) error {
	t, err := WrapHeterogen(columns, b.opts...)
	if err != nil {
		return err
	}
	if b.table != nil {
		b.table.Release()
	}
	b.table = t
	return nil
}

// PullRows pulls from the table under construction.
func (b *HeterogenBuilder) PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	if b.table == nil {
		return nil, nil, errNoStorage
	}
	return b.table.PullRows(ctx, dt, rows, opts...)
}

// PullColumn pulls from the table under construction.
func (b *HeterogenBuilder) PullColumn(ctx context.Context, dt dtype.DataType, column int64, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	if b.table == nil {
		return nil, nil, errNoStorage
	}
	return b.table.PullColumn(ctx, dt, column, rows, opts...)
}

// PushRows pushes into the table under construction.
func (b *HeterogenBuilder) PushRows(ctx context.Context, block *memory.Buffer, rows Range, opts ...AccessOption) (*policy.Event, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	return b.table.PushRows(ctx, block, rows, opts...)
}

// PushColumn pushes into the table under construction.
func (b *HeterogenBuilder) PushColumn(ctx context.Context, block *memory.Buffer, column int64, rows Range, opts ...AccessOption) (*policy.Event, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	return b.table.PushColumn(ctx, block, column, rows, opts...)
}

// Build hands the table over and resets the builder.
func (b *HeterogenBuilder) Build() (*Heterogen, error) {
	if b.table == nil {
		return nil, errNoStorage
	}
	t := b.table
	b.table = nil
	b.Reset()
	return t, nil
}

// CSRBuilder assembles a one-based CSR table. Storage is filled through
// the borrowed buffers or a mutable PullCSR; Build checks the structure.
type CSRBuilder struct {
	dt     dtype.DataType
	pol    policy.Policy
	opts   []Option
	data   *memory.Buffer
	colIdx *memory.Buffer
	rowOff *memory.Buffer
	cols   int64
}

// NewCSRBuilder returns a builder for float64 values in host memory.
func NewCSRBuilder(opts ...Option) *CSRBuilder {
	b := &CSRBuilder{opts: opts}
	b.Reset()
	return b
}

// Reset drops any storage and restores the defaults.
func (b *CSRBuilder) Reset() {
	b.release()
	b.dt, b.pol, b.cols = dtype.Float64, policy.Host(), 0
}

func (b *CSRBuilder) release() {
	b.data.Release()
	b.colIdx.Release()
	b.rowOff.Release()
	b.data, b.colIdx, b.rowOff = nil, nil, nil
}

// SetDataType sets the value type. It must precede Allocate.
func (b *CSRBuilder) SetDataType(dt dtype.DataType) error {
	if !dt.Valid() {
		return core.InvalidArgumentf("invalid data type %s", dt)
	}
	if b.data != nil {
		return core.Domainf("data type is fixed once storage is allocated")
	}
	b.dt = dt
	return nil
}

// SetIndexing accepts only OneBased.
func (b *CSRBuilder) SetIndexing(ix Indexing) error {
	if ix != OneBased {
		return core.Domainf("CSR builder supports one-based indexing only, got %s", ix)
	}
	return nil
}

// SetPolicy sets where Allocate places storage.
func (b *CSRBuilder) SetPolicy(p policy.Policy) { b.pol = p }

// Allocate creates zeroed storage for rows rows, cols columns and nnz
// stored values.
func (b *CSRBuilder) Allocate(ctx context.Context, rows, cols, nnz int64) error {
	if rows <= 0 || cols <= 0 || nnz < 0 {
		return core.Domainf("CSR shape %dx%d with %d values is invalid", rows, cols, nnz)
	}
	noff, err := conv.Add(rows, 1)
	if err != nil {
		return err
	}
	if _, err := conv.ByteSize(nnz, max(b.dt.Size(), dtype.Int64.Size())); err != nil {
		return err
	}
	if _, err := conv.ByteSize(noff, dtype.Int64.Size()); err != nil {
		return err
	}

	data, err := memory.Alloc(ctx, b.pol, b.dt, int(nnz))
	if err != nil {
		return err
	}
	colIdx, err := memory.Alloc(ctx, b.pol, dtype.Int64, int(nnz))
	if err != nil {
		data.Release()
		return err
	}
	rowOff, err := memory.Alloc(ctx, b.pol, dtype.Int64, int(noff))
	if err != nil {
		data.Release()
		colIdx.Release()
		return err
	}
	b.release()
	b.data, b.colIdx, b.rowOff, b.cols = data, colIdx, rowOff, cols
	return nil
}

// SetData adopts existing one-based storage in place of Allocate.
func (b *CSRBuilder) SetData(data, colIdx, rowOff *memory.Buffer, cols int64) error {
	if data == nil || colIdx == nil || rowOff == nil {
		return core.InvalidArgumentf("nil CSR buffer")
	}
	if colIdx.DataType() != dtype.Int64 || rowOff.DataType() != dtype.Int64 {
		return core.InvalidArgumentf("CSR indices must be int64")
	}
	if err := checkCSRShape(data.Count(), colIdx.Count(), rowOff.Count(), cols, OneBased); err != nil {
		return err
	}
	b.release()
	b.dt = data.DataType()
	b.data, b.colIdx, b.rowOff, b.cols = data.Retain(), colIdx.Retain(), rowOff.Retain(), cols
	return nil
}

// Values returns the value storage. It is borrowed from the builder.
func (b *CSRBuilder) Values() *memory.Buffer { return b.data }

// ColumnIndices returns the column index storage. It is borrowed from the
// builder.
func (b *CSRBuilder) ColumnIndices() *memory.Buffer { return b.colIdx }

// RowOffsets returns the row offset storage. It is borrowed from the
// builder.
func (b *CSRBuilder) RowOffsets() *memory.Buffer { return b.rowOff }

// PullCSR pulls from the storage under construction without checking the
// structure first.
func (b *CSRBuilder) PullCSR(ctx context.Context, dt dtype.DataType, rows Range, indexing Indexing, opts ...AccessOption) (*CSRBlock, error) {
	if b.data == nil {
		return nil, errNoStorage
	}
	t, err := newCSR(b.data.Retain(), b.colIdx.Retain(), b.rowOff.Retain(), b.cols, OneBased, b.opts)
	if err != nil {
		return nil, err
	}
	blk, err := t.PullCSR(ctx, dt, rows, indexing, opts...)
	if err != nil {
		t.Release()
		return nil, err
	}
	releaseAfter(blk.Event, t.Release)
	return blk, nil
}

// Build checks the structure, hands the table over and resets the builder.
func (b *CSRBuilder) Build() (*CSR, error) {
	if b.data == nil {
		return nil, errNoStorage
	}
	t, err := NewCSR(b.data, b.colIdx, b.rowOff, b.cols, OneBased, b.opts...)
	if err != nil {
		return nil, err
	}
	b.Reset()
	return t, nil
}

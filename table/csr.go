package table

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tabula/convert"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// CSR is a sparse table in compressed sparse row form: the stored values,
// their int64 column indices and rows+1 int64 row offsets. Indices and
// offsets share one indexing base.
type CSR struct {
	base
	data     *memory.Buffer
	colIdx   *memory.Buffer
	rowOff   *memory.Buffer
	rows     int64
	cols     int64
	indexing Indexing
}

var (
	_ Table       = (*CSR)(nil)
	_ CSRAccessor = (*CSR)(nil)
)

// NewCSR creates a table over the three buffers. The row count is
// rowOff.Count()-1. The table takes its own references.
//
// When the index buffers are host-accessible the structure is checked in
// full: offsets start at the indexing base, never decrease and end at the
// value count, and every column index lies in the column range.
func NewCSR(data, colIdx, rowOff *memory.Buffer, cols int64, indexing Indexing, opts ...Option) (*CSR, error) {
	if data == nil || colIdx == nil || rowOff == nil {
		return nil, core.InvalidArgumentf("nil CSR buffer")
	}
	if colIdx.DataType() != dtype.Int64 || rowOff.DataType() != dtype.Int64 {
		return nil, core.InvalidArgumentf("CSR indices must be int64, got %s and %s", colIdx.DataType(), rowOff.DataType())
	}
	if colIdx.Kind() != rowOff.Kind() {
		return nil, core.InvalidArgumentf("CSR index buffers live in %s and %s memory", colIdx.Kind(), rowOff.Kind())
	}
	if err := checkCSRShape(data.Count(), colIdx.Count(), rowOff.Count(), cols, indexing); err != nil {
		return nil, err
	}
	if colIdx.Kind().HostAccessible() {
		ci, err := memory.RawData[int64](colIdx)
		if err != nil {
			return nil, err
		}
		ro, err := memory.RawData[int64](rowOff)
		if err != nil {
			return nil, err
		}
		if err := checkCSRStructure(data.Count(), ci, ro, cols, indexing); err != nil {
			return nil, err
		}
	}
	return newCSR(data.Retain(), colIdx.Retain(), rowOff.Retain(), cols, indexing, opts)
}

// WrapCSR creates a table over caller-owned slices; the row count is
// len(rowOff)-1. release runs once the table and every block aliasing any
// of the three slices are released. On error release is not called.
func WrapCSR[T dtype.Element](data []T, colIdx, rowOff []int64, cols int64, release func(), indexing Indexing, opts ...Option) (*CSR, error) {
	if err := checkCSRShape(len(data), len(colIdx), len(rowOff), cols, indexing); err != nil {
		return nil, err
	}
	if err := checkCSRStructure(len(data), colIdx, rowOff, cols, indexing); err != nil {
		return nil, err
	}
	release = countdown(3, release)
	return newCSR(
		memory.Wrap(data, release),
		memory.Wrap(colIdx, release),
		memory.Wrap(rowOff, release),
		cols, indexing, opts,
	)
}

// countdown returns a func that runs fn on its n-th call.
func countdown(n int32, fn func()) func() {
	if fn == nil {
		return nil
	}
	var left atomic.Int32
	left.Store(n)
	return func() {
		if left.Add(-1) == 0 {
			fn()
		}
	}
}

func checkCSRShape(nnz, nidx, noff int, cols int64, indexing Indexing) error {
	if !indexing.Valid() {
		return core.Domainf("unsupported indexing %s", indexing)
	}
	if cols <= 0 {
		return core.Domainf("column count %d must be positive", cols)
	}
	if noff < 2 {
		return core.Domainf("CSR needs at least one row, got %d row offsets", noff)
	}
	if nidx != nnz {
		return core.Domainf("%d column indices for %d values", nidx, nnz)
	}
	return nil
}

func checkCSRStructure(nnz int, colIdx, rowOff []int64, cols int64, indexing Indexing) error {
	b := indexing.Base()
	if rowOff[0] != b {
		return core.Domainf("first row offset is %d, want %d", rowOff[0], b)
	}
	for i := 1; i < len(rowOff); i++ {
		if rowOff[i] < rowOff[i-1] {
			return core.Domainf("row offset %d decreases: %d < %d", i, rowOff[i], rowOff[i-1])
		}
	}
	if last := rowOff[len(rowOff)-1] - b; last != int64(nnz) {
		return core.Domainf("row offsets cover %d values, have %d", last, nnz)
	}
	for i, c := range colIdx {
		if c < b || c >= b+cols {
			return core.Domainf("column index %d at %d outside [%d, %d)", c, i, b, b+cols)
		}
	}
	return nil
}

// newCSR takes ownership of the buffers.
func newCSR(data, colIdx, rowOff *memory.Buffer, cols int64, indexing Indexing, opts []Option) (*CSR, error) {
	rows := int64(rowOff.Count() - 1)
	b, err := newBase(KindCSR, uniformMetadata(data.DataType(), cols), applyOptions(opts))
	if err != nil {
		data.Release()
		colIdx.Release()
		rowOff.Release()
		return nil, err
	}
	b.logger = b.logger.WithTable(KindCSR.String(), rows, cols)
	return &CSR{
		base:     b,
		data:     data,
		colIdx:   colIdx,
		rowOff:   rowOff,
		rows:     rows,
		cols:     cols,
		indexing: indexing,
	}, nil
}

// RowCount returns the number of rows.
func (t *CSR) RowCount() int64 { return t.rows }

// Layout reports RowMajor.
func (t *CSR) Layout() Layout { return RowMajor }

// Indexing returns the base of the stored indices.
func (t *CSR) Indexing() Indexing { return t.indexing }

// DataType returns the element type of the stored values.
func (t *CSR) DataType() dtype.DataType { return t.data.DataType() }

// NonZeroCount returns the number of stored values.
func (t *CSR) NonZeroCount() int64 { return int64(t.data.Count()) }

// Values returns the value buffer. It is borrowed from the table.
func (t *CSR) Values() *memory.Buffer { return t.data }

// ColumnIndices returns the column index buffer. It is borrowed from the
// table.
func (t *CSR) ColumnIndices() *memory.Buffer { return t.colIdx }

// RowOffsets returns the row offset buffer. It is borrowed from the table.
func (t *CSR) RowOffsets() *memory.Buffer { return t.rowOff }

// PullRows is not supported by CSR tables; use PullCSR.
func (t *CSR) PullRows(context.Context, dtype.DataType, Range, ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	return nil, nil, core.Unsupported(KindCSR.String(), "PullRows")
}

// PullColumn is not supported by CSR tables.
func (t *CSR) PullColumn(context.Context, dtype.DataType, int64, Range, ...AccessOption) (*memory.Buffer, *policy.Event, error) {
	return nil, nil, core.Unsupported(KindCSR.String(), "PullColumn")
}

// PushRows is not supported by CSR tables.
func (t *CSR) PushRows(context.Context, *memory.Buffer, Range, ...AccessOption) (*policy.Event, error) {
	return nil, core.Unsupported(KindCSR.String(), "PushRows")
}

// PushColumn is not supported by CSR tables.
func (t *CSR) PushColumn(context.Context, *memory.Buffer, int64, Range, ...AccessOption) (*policy.Event, error) {
	return nil, core.Unsupported(KindCSR.String(), "PushColumn")
}

// boundaries reads row offsets start and end. For device-resident offsets
// this is a synchronization point with the queue.
func (t *CSR) boundaries(acc access, start, end int64) (lo, hi int64, err error) {
	read := func() error {
		off, err := memory.RawData[int64](t.rowOff)
		if err != nil {
			return err
		}
		lo, hi = off[start], off[end]
		return nil
	}
	if t.rowOff.Kind().HostAccessible() {
		err = read()
		return lo, hi, err
	}
	if acc.pol.IsHost() {
		return 0, 0, core.Capabilityf("row offsets in %s memory need a queue policy", t.rowOff.Kind())
	}
	if err := acc.pol.Submit(read).Wait(); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// segment returns storage[off, off+n) as dt: a view when possible,
// otherwise a converted copy.
func (t *CSR) segment(ctx context.Context, acc access, storage *memory.Buffer, dt dtype.DataType, off, n int) (*memory.Buffer, *policy.Event, bool, error) {
	if acc.aliasable(storage, dt) {
		v, err := acc.view(storage, off, n)
		return v, nil, true, err
	}
	var jobs []convert.Job
	if n > 0 {
		jobs = []convert.Job{{Src: storage, SrcOffset: off, Count: n}}
	}
	out, ev, err := t.fill(ctx, acc.pol, dt, n, jobs)
	return out, ev, false, err
}

// shifted returns a copy of int64 storage[off, off+n) with delta added.
func (t *CSR) shifted(ctx context.Context, acc access, storage *memory.Buffer, off, n int, delta int64) (*memory.Buffer, *policy.Event, error) {
	var jobs []convert.Job
	if n > 0 {
		jobs = []convert.Job{{Src: storage, SrcOffset: off, Count: n}}
	}
	out, ev, err := t.fill(ctx, acc.pol, dtype.Int64, n, jobs)
	if err != nil {
		return nil, nil, err
	}
	sev, err := t.engine.ShiftValues(ctx, acc.pol.After(ev), out, delta)
	if err != nil {
		out.Release()
		return nil, nil, err
	}
	return out, policy.Join(ev, sev), nil
}

// PullCSR returns rows as a CSR block whose values have type dt and whose
// indices use indexing. Row offsets are rebased so the block starts at the
// indexing base.
func (t *CSR) PullCSR(ctx context.Context, dt dtype.DataType, rows Range, indexing Indexing, opts ...AccessOption) (blk *CSRBlock, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", t.rows)
	aliased := false
	defer func() {
		var out *memory.Buffer
		if blk != nil {
			out = blk.Values
		}
		t.observePull(ctx, dt, start, end, out, aliased, began, err)
	}()
	if err != nil {
		return nil, err
	}
	if !indexing.Valid() {
		return nil, core.Domainf("unsupported indexing %s", indexing)
	}

	lo, hi, err := t.boundaries(acc, start, end)
	if err != nil {
		return nil, err
	}
	first, nnz := lo-t.indexing.Base(), hi-lo
	if first < 0 || nnz < 0 || first+nnz > int64(t.data.Count()) {
		return nil, core.Domainf("row offsets [%d, %d] outside %d values", lo, hi, t.data.Count())
	}
	off, n := int(first), int(nnz)

	blk = &CSRBlock{}
	var events []*policy.Event
	fail := func(e error) (*CSRBlock, error) {
		_ = policy.WaitAll(events...)
		blk.Release()
		blk = nil
		return nil, e
	}

	var ev *policy.Event
	blk.Values, ev, aliased, err = t.segment(ctx, acc, t.data, dt, off, n)
	if err != nil {
		return fail(err)
	}
	events = append(events, ev)

	if delta := indexing.Base() - t.indexing.Base(); delta == 0 {
		blk.ColumnIndices, ev, _, err = t.segment(ctx, acc, t.colIdx, dtype.Int64, off, n)
	} else {
		blk.ColumnIndices, ev, err = t.shifted(ctx, acc, t.colIdx, off, n, delta)
	}
	if err != nil {
		return fail(err)
	}
	events = append(events, ev)

	nrows := int(end - start)
	if delta := indexing.Base() - lo; delta == 0 {
		blk.RowOffsets, ev, _, err = t.segment(ctx, acc, t.rowOff, dtype.Int64, int(start), nrows+1)
	} else {
		blk.RowOffsets, ev, err = t.shifted(ctx, acc, t.rowOff, int(start), nrows+1, delta)
	}
	if err != nil {
		return fail(err)
	}
	events = append(events, ev)

	blk.Event = policy.Join(events...)
	return blk, nil
}

// ColumnOccupancy returns the zero-based columns holding at least one
// stored value in rows. The index buffers must be host-accessible.
func (t *CSR) ColumnOccupancy(ctx context.Context, rows Range) (*roaring.Bitmap, error) {
	start, end, err := rows.normalize("row", t.rows)
	if err != nil {
		return nil, err
	}
	if !t.colIdx.Kind().HostAccessible() {
		return nil, core.Capabilityf("column indices in %s memory", t.colIdx.Kind())
	}
	lo, hi, err := t.boundaries(access{pol: policy.Host()}, start, end)
	if err != nil {
		return nil, err
	}
	idx, err := memory.RawData[int64](t.colIdx)
	if err != nil {
		return nil, err
	}
	b := t.indexing.Base()
	bm := roaring.New()
	for _, c := range idx[lo-b : hi-b] {
		bm.Add(uint32(c - b))
	}
	return bm, nil
}

// Release drops the table's references to its buffers.
func (t *CSR) Release() {
	t.data.Release()
	t.colIdx.Release()
	t.rowOff.Release()
}

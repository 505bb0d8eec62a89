package table

import (
	"context"
	"time"

	"github.com/hupe1980/tabula/convert"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// Homogen is a dense table whose cells share one element type, stored in a
// single buffer in row- or column-major order.
type Homogen struct {
	base
	data   *memory.Buffer
	rows   int64
	cols   int64
	layout Layout
}

var _ Table = (*Homogen)(nil)

// checkShape validates a dense shape and returns its element count. The
// byte size is checked too, so a later allocation cannot overflow.
func checkShape(rows, cols int64, dt dtype.DataType) (int, error) {
	if rows <= 0 || cols <= 0 {
		return 0, core.Domainf("shape %dx%d must be positive", rows, cols)
	}
	n, err := conv.MulAll(rows, cols)
	if err != nil {
		return 0, err
	}
	if _, err := conv.ByteSize(n, dt.Size()); err != nil {
		return 0, err
	}
	return conv.ToInt(n)
}

// NewHomogen creates a table over data, which holds rows*cols elements in
// the given layout. The table takes its own reference to data.
func NewHomogen(data *memory.Buffer, rows, cols int64, layout Layout, opts ...Option) (*Homogen, error) {
	if data == nil {
		return nil, core.InvalidArgumentf("nil data buffer")
	}
	if err := validateDense(data.DataType(), data.Count(), rows, cols, layout); err != nil {
		return nil, err
	}
	return newHomogen(data.Retain(), rows, cols, layout, opts)
}

// WrapHomogen creates a table over caller-owned memory. release runs once
// the table and every block aliasing it are released. On error release is
// not called and the caller keeps ownership.
func WrapHomogen[T dtype.Element](data []T, rows, cols int64, release func(), layout Layout, opts ...Option) (*Homogen, error) {
	if err := validateDense(dtype.Of[T](), len(data), rows, cols, layout); err != nil {
		return nil, err
	}
	return newHomogen(memory.Wrap(data, release), rows, cols, layout, opts)
}

func validateDense(dt dtype.DataType, count int, rows, cols int64, layout Layout) error {
	if !layout.Valid() {
		return core.Domainf("unsupported layout %s", layout)
	}
	n, err := checkShape(rows, cols, dt)
	if err != nil {
		return err
	}
	if count != n {
		return core.Domainf("buffer holds %d elements, shape %dx%d needs %d", count, rows, cols, n)
	}
	return nil
}

// newHomogen takes ownership of data.
func newHomogen(data *memory.Buffer, rows, cols int64, layout Layout, opts []Option) (*Homogen, error) {
	b, err := newBase(KindHomogen, uniformMetadata(data.DataType(), cols), applyOptions(opts))
	if err != nil {
		data.Release()
		return nil, err
	}
	b.logger = b.logger.WithTable(KindHomogen.String(), rows, cols)
	return &Homogen{base: b, data: data, rows: rows, cols: cols, layout: layout}, nil
}

// RowCount returns the number of rows.
func (h *Homogen) RowCount() int64 { return h.rows }

// Layout returns the storage order.
func (h *Homogen) Layout() Layout { return h.layout }

// DataType returns the element type of every cell.
func (h *Homogen) DataType() dtype.DataType { return h.data.DataType() }

// Data returns the storage buffer. It is borrowed from the table.
func (h *Homogen) Data() *memory.Buffer { return h.data }

// strides returns the storage distance between consecutive rows and
// consecutive columns.
func (h *Homogen) strides() (row, col int) {
	if h.layout == RowMajor {
		return int(h.cols), 1
	}
	return 1, int(h.rows)
}

func (h *Homogen) index(r, c int64) int {
	rs, cs := h.strides()
	return int(r)*rs + int(c)*cs
}

// rowBlockContiguous reports whether rows [start, end) appear in storage as
// one row-major run.
func (h *Homogen) rowBlockContiguous(start, end int64) bool {
	rs, cs := h.strides()
	return (end-start <= 1 || rs == int(h.cols)) && (h.cols == 1 || cs == 1)
}

// rowJobs moves rows [start, end) between storage and a row-major block.
func (h *Homogen) rowJobs(block *memory.Buffer, start, end int64, push bool) []convert.Job {
	nrows := int(end - start)
	if nrows == 0 {
		return nil
	}
	var jobs []convert.Job
	if h.rowBlockContiguous(start, end) {
		jobs = []convert.Job{{
			Src: h.data, SrcOffset: h.index(start, 0),
			Dst: block, Count: nrows * int(h.cols),
		}}
	} else {
		rs, _ := h.strides()
		jobs = make([]convert.Job, 0, h.cols)
		for c := range h.cols {
			jobs = append(jobs, convert.Job{
				Src: h.data, SrcOffset: h.index(start, c), SrcStride: rs,
				Dst: block, DstOffset: int(c), DstStride: int(h.cols),
				Count: nrows,
			})
		}
	}
	if push {
		for i := range jobs {
			jobs[i] = swap(jobs[i])
		}
	}
	return jobs
}

func (h *Homogen) columnJob(block *memory.Buffer, col, start, end int64, push bool) convert.Job {
	rs, _ := h.strides()
	j := convert.Job{
		Src: h.data, SrcOffset: h.index(start, col), SrcStride: rs,
		Dst: block, Count: int(end - start),
	}
	if push {
		return swap(j)
	}
	return j
}

func swap(j convert.Job) convert.Job {
	return convert.Job{
		Src: j.Dst, SrcOffset: j.DstOffset, SrcStride: j.DstStride,
		Dst: j.Src, DstOffset: j.SrcOffset, DstStride: j.SrcStride,
		Count: j.Count,
	}
}

// PullRows returns rows as a row-major block of dt.
func (h *Homogen) PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (out *memory.Buffer, ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	aliased := false
	defer func() { h.observePull(ctx, dt, start, end, out, aliased, began, err) }()
	if err != nil {
		return nil, nil, err
	}

	n := int(end-start) * int(h.cols)
	if h.rowBlockContiguous(start, end) && acc.aliasable(h.data, dt) {
		aliased = true
		out, err = acc.view(h.data, h.index(start, 0), n)
		return out, nil, err
	}
	out, ev, err = h.fill(ctx, acc.pol, dt, n, h.rowJobs(nil, start, end, false))
	return out, ev, err
}

// PullColumn returns column rows as a contiguous block of dt.
func (h *Homogen) PullColumn(ctx context.Context, dt dtype.DataType, column int64, rows Range, opts ...AccessOption) (out *memory.Buffer, ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	aliased := false
	defer func() { h.observePull(ctx, dt, start, end, out, aliased, began, err) }()
	if err != nil {
		return nil, nil, err
	}
	if err = checkColumn(column, h.cols); err != nil {
		return nil, nil, err
	}

	n := int(end - start)
	rs, _ := h.strides()
	if (rs == 1 || n <= 1) && acc.aliasable(h.data, dt) {
		aliased = true
		out, err = acc.view(h.data, h.index(start, column), n)
		return out, nil, err
	}
	var jobs []convert.Job
	if n > 0 {
		jobs = []convert.Job{h.columnJob(nil, column, start, end, false)}
	}
	out, ev, err = h.fill(ctx, acc.pol, dt, n, jobs)
	return out, ev, err
}

// PushRows writes a row-major block into rows.
func (h *Homogen) PushRows(ctx context.Context, block *memory.Buffer, rows Range, opts ...AccessOption) (ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	defer func() { h.observePush(ctx, block, start, end, began, err) }()
	if err != nil {
		return nil, err
	}
	if err = checkPushTarget(h.data); err != nil {
		return nil, err
	}
	if err = checkBlockSize(block, (end-start)*h.cols); err != nil {
		return nil, err
	}
	return h.engine.Run(ctx, acc.pol, h.rowJobs(block, start, end, true)...)
}

// PushColumn writes a contiguous block into column rows.
func (h *Homogen) PushColumn(ctx context.Context, block *memory.Buffer, column int64, rows Range, opts ...AccessOption) (ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	defer func() { h.observePush(ctx, block, start, end, began, err) }()
	if err != nil {
		return nil, err
	}
	if err = checkColumn(column, h.cols); err != nil {
		return nil, err
	}
	if err = checkPushTarget(h.data); err != nil {
		return nil, err
	}
	if err = checkBlockSize(block, end-start); err != nil {
		return nil, err
	}
	if end == start {
		return nil, nil
	}
	return h.engine.Run(ctx, acc.pol, h.columnJob(block, column, start, end, true))
}

// Release drops the table's reference to its storage.
func (h *Homogen) Release() { h.data.Release() }

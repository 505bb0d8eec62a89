package table

import (
	"context"
	"time"

	"github.com/hupe1980/tabula/chunked"
	"github.com/hupe1980/tabula/convert"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// Heterogen is a dense table that keeps every column in its own chunked
// array, each with its own element type. All columns have the same length.
type Heterogen struct {
	base
	columns []*chunked.Array
	rows    int64
}

var _ Table = (*Heterogen)(nil)

// WrapHeterogen creates a table over columns. The table takes its own
// references to the column chunks; the caller keeps its arrays.
func WrapHeterogen(columns []*chunked.Array, opts ...Option) (*Heterogen, error) {
	if len(columns) == 0 {
		return nil, core.Domainf("heterogeneous table needs at least one column")
	}
	meta := Metadata{
		DataTypes:    make([]dtype.DataType, len(columns)),
		FeatureTypes: make([]FeatureType, len(columns)),
	}
	rows := -1
	for i, c := range columns {
		if c == nil {
			return nil, core.InvalidArgumentf("column %d is nil", i)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if rows >= 0 && c.Count() != rows {
			return nil, core.Domainf("column %d has %d rows, column 0 has %d", i, c.Count(), rows)
		}
		rows = c.Count()
		meta.DataTypes[i] = c.DataType()
		meta.FeatureTypes[i] = DefaultFeatureType(c.DataType())
	}
	if rows == 0 {
		return nil, core.Domainf("heterogeneous table needs at least one row")
	}

	b, err := newBase(KindHeterogen, meta, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	b.logger = b.logger.WithTable(KindHeterogen.String(), int64(rows), int64(len(columns)))

	h := &Heterogen{base: b, columns: make([]*chunked.Array, len(columns)), rows: int64(rows)}
	for i, c := range columns {
		h.columns[i] = c.Clone()
	}
	return h, nil
}

// RowCount returns the number of rows.
func (h *Heterogen) RowCount() int64 { return h.rows }

// Layout reports ColumnMajor: storage is per column.
func (h *Heterogen) Layout() Layout { return ColumnMajor }

// Column returns column i. It is borrowed from the table.
func (h *Heterogen) Column(i int) *chunked.Array { return h.columns[i] }

// slices cuts rows [start, end) out of every column.
func (h *Heterogen) slices(start, end int64) ([]*chunked.Array, error) {
	out := make([]*chunked.Array, len(h.columns))
	for i, c := range h.columns {
		s, err := c.Slice(int(start), int(end))
		if err != nil {
			releaseArrays(out)
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// checkPushColumns rejects a push into column slices with read-only chunks.
func checkPushColumns(slices []*chunked.Array) error {
	for c, s := range slices {
		for i := range s.ChunkCount() {
			if ch := s.Chunk(i); ch != nil && !ch.Mutable() {
				return core.Capabilityf("column %d storage is read-only", c)
			}
		}
	}
	return nil
}

func releaseArrays(arrays []*chunked.Array) {
	for _, a := range arrays {
		a.Release()
	}
}

// chunkJobs moves a column slice to or from column col of a row-major block
// with ncols columns.
func chunkJobs(s *chunked.Array, block *memory.Buffer, col, ncols int, push bool) []convert.Job {
	var jobs []convert.Job
	at := 0
	for i := range s.ChunkCount() {
		c := s.Chunk(i)
		if n := c.Count(); n > 0 {
			j := convert.Job{
				Src: c, Dst: block,
				DstOffset: at*ncols + col, DstStride: ncols,
				Count: n,
			}
			if push {
				j = swap(j)
			}
			jobs = append(jobs, j)
		}
		at += c.Count()
	}
	return jobs
}

// PullRows returns rows as a row-major block of dt. Every column is
// converted to dt.
func (h *Heterogen) PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (out *memory.Buffer, ev *policy.Event, err error) {
	if len(h.columns) == 1 {
		return h.PullColumn(ctx, dt, 0, rows, opts...)
	}
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	defer func() { h.observePull(ctx, dt, start, end, out, false, began, err) }()
	if err != nil {
		return nil, nil, err
	}

	ncols := len(h.columns)
	n64, err := conv.Mul(end-start, int64(ncols))
	if err != nil {
		return nil, nil, err
	}
	slices, err := h.slices(start, end)
	if err != nil {
		return nil, nil, err
	}
	var jobs []convert.Job
	for c, s := range slices {
		jobs = append(jobs, chunkJobs(s, nil, c, ncols, false)...)
	}
	out, ev, err = h.fill(ctx, acc.pol, dt, int(n64), jobs)
	if err != nil {
		releaseArrays(slices)
		return nil, nil, err
	}
	releaseAfter(ev, func() { releaseArrays(slices) })
	return out, ev, nil
}

// PullColumn returns column rows as a contiguous block of dt. When the
// column range lies in one allocation of type dt the block is a view.
func (h *Heterogen) PullColumn(ctx context.Context, dt dtype.DataType, column int64, rows Range, opts ...AccessOption) (out *memory.Buffer, ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	aliased := false
	defer func() { h.observePull(ctx, dt, start, end, out, aliased, began, err) }()
	if err != nil {
		return nil, nil, err
	}
	if err = checkColumn(column, int64(len(h.columns))); err != nil {
		return nil, nil, err
	}

	s, err := h.columns[column].Slice(int(start), int(end))
	if err != nil {
		return nil, nil, err
	}
	if view, ok := s.View(); ok {
		if acc.aliasable(view, dt) {
			aliased = true
			out, err = acc.view(view, 0, view.Count())
			view.Release()
			s.Release()
			return out, nil, err
		}
		view.Release()
	}

	out, ev, err = h.fill(ctx, acc.pol, dt, s.Count(), chunkJobs(s, nil, 0, 1, false))
	if err != nil {
		s.Release()
		return nil, nil, err
	}
	releaseAfter(ev, s.Release)
	return out, ev, nil
}

// PushRows writes a row-major block into rows, converting each column to
// its own element type.
func (h *Heterogen) PushRows(ctx context.Context, block *memory.Buffer, rows Range, opts ...AccessOption) (ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	defer func() { h.observePush(ctx, block, start, end, began, err) }()
	if err != nil {
		return nil, err
	}
	ncols := len(h.columns)
	if err = checkBlockSize(block, (end-start)*int64(ncols)); err != nil {
		return nil, err
	}
	slices, err := h.slices(start, end)
	if err != nil {
		return nil, err
	}
	if err = checkPushColumns(slices); err != nil {
		releaseArrays(slices)
		return nil, err
	}
	var jobs []convert.Job
	for c, s := range slices {
		jobs = append(jobs, chunkJobs(s, block, c, ncols, true)...)
	}
	ev, err = h.engine.Run(ctx, acc.pol, jobs...)
	if err != nil {
		releaseArrays(slices)
		return nil, err
	}
	releaseAfter(ev, func() { releaseArrays(slices) })
	return ev, nil
}

// PushColumn writes a contiguous block into column rows.
func (h *Heterogen) PushColumn(ctx context.Context, block *memory.Buffer, column int64, rows Range, opts ...AccessOption) (ev *policy.Event, err error) {
	began := time.Now()
	acc := applyAccess(opts)
	start, end, err := rows.normalize("row", h.rows)
	defer func() { h.observePush(ctx, block, start, end, began, err) }()
	if err != nil {
		return nil, err
	}
	if err = checkColumn(column, int64(len(h.columns))); err != nil {
		return nil, err
	}
	if err = checkBlockSize(block, end-start); err != nil {
		return nil, err
	}
	s, err := h.columns[column].Slice(int(start), int(end))
	if err != nil {
		return nil, err
	}
	if err = checkPushColumns([]*chunked.Array{s}); err != nil {
		s.Release()
		return nil, core.Capabilityf("column %d storage is read-only", column)
	}
	ev, err = h.engine.Run(ctx, acc.pol, chunkJobs(s, block, 0, 1, true)...)
	if err != nil {
		s.Release()
		return nil, err
	}
	releaseAfter(ev, s.Release)
	return ev, nil
}

// Release drops the table's references to its columns.
func (h *Heterogen) Release() { releaseArrays(h.columns) }

package interop

import (
	"context"

	"github.com/james-bowman/sparse"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/table"
)

// FromSparseCSR returns a zero-based float64 CSR table. The values are
// shared with m; the int indices are widened into new int64 slices.
func FromSparseCSR(m *sparse.CSR, opts ...table.Option) (*table.CSR, error) {
	if m == nil {
		return nil, core.InvalidArgumentf("nil sparse matrix")
	}
	raw := m.RawMatrix()
	rowOff := make([]int64, len(raw.Indptr))
	for i, v := range raw.Indptr {
		rowOff[i] = int64(v)
	}
	colIdx := make([]int64, len(raw.Ind))
	for i, v := range raw.Ind {
		colIdx[i] = int64(v)
	}
	nnz := len(colIdx)
	return table.WrapCSR(raw.Data[:nnz:nnz], colIdx, rowOff, int64(raw.J), nil, table.ZeroBased, opts...)
}

// ToSparseCSR copies t into a new float64 sparse matrix.
func ToSparseCSR(ctx context.Context, t *table.CSR) (*sparse.CSR, error) {
	if t == nil {
		return nil, core.InvalidArgumentf("nil CSR table")
	}
	values, colIdx, rowOff, release, err := pullCSR(ctx, t)
	if err != nil {
		return nil, err
	}
	defer release()

	ia := make([]int, len(rowOff))
	for i, v := range rowOff {
		ia[i] = int(v)
	}
	ja := make([]int, len(colIdx))
	for i, v := range colIdx {
		ja[i] = int(v)
	}
	return sparse.NewCSR(int(t.RowCount()), int(t.ColumnCount()), ia, ja, append([]float64(nil), values...)), nil
}

// pullCSR pulls every row as zero-based float64 host slices. The slices are
// valid until release is called.
func pullCSR(ctx context.Context, t table.CSRAccessor) (values []float64, colIdx, rowOff []int64, release func(), err error) {
	blk, err := t.PullCSR(ctx, dtype.Float64, table.All, table.ZeroBased)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := blk.Wait(); err != nil {
		blk.Release()
		return nil, nil, nil, nil, err
	}
	if values, err = memory.Data[float64](blk.Values); err == nil {
		if colIdx, err = memory.Data[int64](blk.ColumnIndices); err == nil {
			rowOff, err = memory.Data[int64](blk.RowOffsets)
		}
	}
	if err != nil {
		blk.Release()
		return nil, nil, nil, nil, err
	}
	return values, colIdx, rowOff, blk.Release, nil
}

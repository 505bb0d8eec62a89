package interop

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/table"
)

// FromDense returns a row-major float64 table over m. A contiguous matrix
// is shared; a strided view (for example from Slice) is copied first.
func FromDense(m *mat.Dense, opts ...table.Option) (*table.Homogen, error) {
	if m == nil || m.IsEmpty() {
		return nil, core.InvalidArgumentf("empty dense matrix")
	}
	raw := m.RawMatrix()
	rows, cols := raw.Rows, raw.Cols

	data := raw.Data[:rows*cols]
	if raw.Stride != cols {
		data = make([]float64, rows*cols)
		for i := range rows {
			copy(data[i*cols:(i+1)*cols], raw.Data[i*raw.Stride:i*raw.Stride+cols])
		}
	}
	return table.WrapHomogen(data, int64(rows), int64(cols), nil, table.RowMajor, opts...)
}

// ToDense copies t into a new matrix, converting every column to float64.
// CSR tables are densified with zeros in the unstored positions.
func ToDense(ctx context.Context, t table.Table) (*mat.Dense, error) {
	rows, cols := t.RowCount(), t.ColumnCount()
	if rows == 0 || cols == 0 {
		return nil, core.InvalidArgumentf("cannot build a %dx%d dense matrix", rows, cols)
	}
	r, err := conv.ToInt(rows)
	if err != nil {
		return nil, err
	}
	c, err := conv.ToInt(cols)
	if err != nil {
		return nil, err
	}

	if csr, ok := t.(table.CSRAccessor); ok {
		return densify(ctx, csr, r, c)
	}

	block, ev, err := t.PullRows(ctx, dtype.Float64, table.All)
	if err != nil {
		return nil, err
	}
	defer block.Release()
	if err := ev.Wait(); err != nil {
		return nil, err
	}
	src, err := memory.Data[float64](block)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(r, c, append([]float64(nil), src...)), nil
}

func densify(ctx context.Context, t table.CSRAccessor, rows, cols int) (*mat.Dense, error) {
	values, colIdx, rowOff, release, err := pullCSR(ctx, t)
	if err != nil {
		return nil, err
	}
	defer release()

	m := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for k := rowOff[i]; k < rowOff[i+1]; k++ {
			m.Set(i, int(colIdx[k]), values[k])
		}
	}
	return m, nil
}

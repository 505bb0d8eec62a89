package interop

import (
	"context"
	"testing"

	"github.com/james-bowman/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/table"
)

func pullFloat64(t *testing.T, tbl table.Table) []float64 {
	t.Helper()
	b, ev, err := tbl.PullRows(context.Background(), dtype.Float64, table.All)
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, ev.Wait())
	v, err := memory.Data[float64](b)
	require.NoError(t, err)
	return append([]float64(nil), v...)
}

func TestFromDense(t *testing.T) {
	t.Run("shares storage", func(t *testing.T) {
		m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
		tbl, err := FromDense(m, table.WithFeatureTypes(table.Ratio, table.Ratio, table.Interval))
		require.NoError(t, err)
		defer tbl.Release()

		assert.Equal(t, int64(2), tbl.RowCount())
		assert.Equal(t, int64(3), tbl.ColumnCount())
		assert.Equal(t, table.RowMajor, tbl.Layout())

		m.Set(1, 2, 60)
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 60}, pullFloat64(t, tbl))
	})

	t.Run("strided view is copied", func(t *testing.T) {
		m := mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
		view := m.Slice(1, 3, 0, 2).(*mat.Dense)
		tbl, err := FromDense(view)
		require.NoError(t, err)
		defer tbl.Release()

		m.Set(1, 0, 40)
		assert.Equal(t, []float64{4, 5, 7, 8}, pullFloat64(t, tbl))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromDense(&mat.Dense{})
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})
}

func TestToDense(t *testing.T) {
	ctx := context.Background()

	src, err := table.WrapHomogen([]int32{1, 2, 3, 4, 5, 6}, 2, 3, nil, table.ColumnMajor)
	require.NoError(t, err)
	defer src.Release()

	m, err := ToDense(ctx, src)
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 3, []float64{1, 3, 5, 2, 4, 6}), m))

	_, err = ToDense(ctx, table.Empty())
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestToDense_CSR(t *testing.T) {
	src, err := table.WrapCSR([]float32{1, 2, 3}, []int64{1, 3, 2}, []int64{1, 3, 4}, 3, nil, table.OneBased)
	require.NoError(t, err)
	defer src.Release()

	m, err := ToDense(context.Background(), src)
	require.NoError(t, err)
	want := mat.NewDense(2, 3, []float64{
		1, 0, 2,
		0, 3, 0,
	})
	assert.True(t, mat.Equal(want, m))
}

func TestSparseRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := sparse.NewCSR(3, 4, []int{0, 2, 2, 3}, []int{0, 3, 1}, []float64{1.5, 2.5, 3.5})

	tbl, err := FromSparseCSR(m)
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(3), tbl.RowCount())
	assert.Equal(t, int64(4), tbl.ColumnCount())
	assert.Equal(t, int64(3), tbl.NonZeroCount())
	assert.Equal(t, table.ZeroBased, tbl.Indexing())

	out, err := ToSparseCSR(ctx, tbl)
	require.NoError(t, err)
	assert.True(t, mat.Equal(m, out))
	r, c := out.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 3, out.NNZ())
}

func TestToSparseCSR_Reindexes(t *testing.T) {
	src, err := table.WrapCSR([]int64{7, 8}, []int64{2, 1}, []int64{1, 2, 3}, 2, nil, table.OneBased)
	require.NoError(t, err)
	defer src.Release()

	out, err := ToSparseCSR(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.At(0, 1))
	assert.Equal(t, 8.0, out.At(1, 0))
	assert.Equal(t, 0.0, out.At(0, 0))

	raw := out.RawMatrix()
	assert.Equal(t, []int{0, 1, 2}, raw.Indptr)
	assert.Equal(t, []int{1, 0}, raw.Ind)
}

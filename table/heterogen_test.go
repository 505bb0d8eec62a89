package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabula/chunked"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

func newMixed(t *testing.T) *Heterogen {
	t.Helper()
	c0 := chunked.Of([]int32{1, 2}, []int32{3})
	c1 := chunked.Of([]float64{0.5, 1.5, 2.5})
	defer c0.Release()
	defer c1.Release()
	tbl, err := WrapHeterogen([]*chunked.Array{c0, c1})
	require.NoError(t, err)
	return tbl
}

func TestHeterogen_Shape(t *testing.T) {
	tbl := newMixed(t)
	defer tbl.Release()

	assert.Equal(t, KindHeterogen, tbl.Kind())
	assert.Equal(t, int64(3), tbl.RowCount())
	assert.Equal(t, int64(2), tbl.ColumnCount())
	md := tbl.Metadata()
	assert.Equal(t, []dtype.DataType{dtype.Int32, dtype.Float64}, md.DataTypes)
	assert.Equal(t, []FeatureType{Ordinal, Ratio}, md.FeatureTypes)
	for i := range int(tbl.ColumnCount()) {
		assert.Equal(t, tbl.RowCount(), int64(tbl.Column(i).Count()), "column %d", i)
	}

	_, err := WrapHeterogen([]*chunked.Array{chunked.Of([]int8{1}), chunked.Of([]int8{1, 2})})
	assert.ErrorIs(t, err, core.ErrDomain)
	_, err = WrapHeterogen(nil)
	assert.ErrorIs(t, err, core.ErrDomain)
	_, err = WrapHeterogen([]*chunked.Array{chunked.New(dtype.Int8, 1)})
	assert.ErrorIs(t, err, core.ErrDomain, "unset chunks are rejected")
}

func TestHeterogen_PullRows(t *testing.T) {
	tbl := newMixed(t)
	defer tbl.Release()

	assert.Equal(t, []float64{2, 1.5, 3, 2.5}, pullRows[float64](t, tbl, Rows(1, 3)))
	assert.Equal(t, []int64{1, 0, 2, 1, 3, 2}, pullRows[int64](t, tbl, All))
	assert.Empty(t, pullRows[float32](t, tbl, Rows(3, 3)))
}

func TestHeterogen_PullColumn(t *testing.T) {
	ctx := context.Background()
	tbl := newMixed(t)
	defer tbl.Release()

	b, ev, err := tbl.PullColumn(ctx, dtype.Float64, 1, All)
	require.NoError(t, err)
	defer b.Release()
	assert.Nil(t, ev)
	assert.Equal(t, tbl.Column(1).Chunk(0).Addr(), b.Addr())
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, values[float64](t, b))

	// Two separate allocations: copied.
	assert.Equal(t, []int32{1, 2, 3}, pullColumn[int32](t, tbl, 0, All))

	// One chunk: aliased.
	b2, _, err := tbl.PullColumn(ctx, dtype.Int32, 0, Rows(2, 3))
	require.NoError(t, err)
	defer b2.Release()
	assert.Equal(t, tbl.Column(0).Chunk(1).Addr(), b2.Addr())

	assert.Equal(t, []float32{2}, pullColumn[float32](t, tbl, 0, Rows(1, 2)))

	_, _, err = tbl.PullColumn(ctx, dtype.Int32, 2, All)
	assert.ErrorIs(t, err, core.ErrRange)
}

func TestHeterogen_Push(t *testing.T) {
	ctx := context.Background()
	tbl := newMixed(t)
	defer tbl.Release()

	block := memory.Wrap([]float32{10, 20, 30, 40}, nil)
	defer block.Release()
	ev, err := tbl.PushRows(ctx, block, Rows(0, 2))
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, []int32{10, 30, 3}, pullColumn[int32](t, tbl, 0, All))
	assert.Equal(t, []float64{20, 40, 2.5}, pullColumn[float64](t, tbl, 1, All))

	col := memory.Wrap([]int64{7, 8}, nil)
	defer col.Release()
	_, err = tbl.PushColumn(ctx, col, 0, Rows(1, 3))
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 7, 8}, pullColumn[int32](t, tbl, 0, All))

	_, err = tbl.PushRows(ctx, col, Rows(0, 2))
	assert.ErrorIs(t, err, core.ErrRange)
}

func TestHeterogen_PushReadOnly(t *testing.T) {
	ctx := context.Background()
	ro := memory.WrapReadOnly([]int32{1, 2, 3}, nil)
	c0 := chunked.FromBuffer(ro)
	ro.Release()
	c1 := chunked.Of([]float64{0.5, 1.5, 2.5})
	tbl, err := WrapHeterogen([]*chunked.Array{c0, c1})
	c0.Release()
	c1.Release()
	require.NoError(t, err)
	defer tbl.Release()

	block := memory.Wrap([]float32{10, 20}, nil)
	defer block.Release()
	_, err = tbl.PushRows(ctx, block, Rows(0, 1))
	assert.ErrorIs(t, err, core.ErrCapability)

	_, err = tbl.PushColumn(ctx, block, 0, Rows(1, 3))
	assert.ErrorIs(t, err, core.ErrCapability)

	// The writable column still accepts pushes, and nothing was written.
	ev, err := tbl.PushColumn(ctx, block, 1, Rows(1, 3))
	require.NoError(t, err)
	require.NoError(t, ev.Wait())
	assert.Equal(t, []float64{0.5, 10, 20}, pullColumn[float64](t, tbl, 1, All))
	assert.Equal(t, []int32{1, 2, 3}, pullColumn[int32](t, tbl, 0, All))
}

func TestHeterogen_QueuePolicy(t *testing.T) {
	ctx := context.Background()
	q := policy.NewSimulatedDevice().NewQueue()
	defer q.Close()

	tbl := newMixed(t)
	defer tbl.Release()

	b, ev, err := tbl.PullRows(ctx, dtype.Float32, Rows(0, 2), WithPolicy(policy.OnQueue(q, policy.Device)))
	require.NoError(t, err)
	defer b.Release()
	require.NoError(t, ev.Wait())
	assert.Equal(t, policy.Device, b.Kind())
	assert.Equal(t, []float32{1, 0.5, 2, 1.5}, values[float32](t, b))
}

func TestHeterogenBuilder(t *testing.T) {
	ctx := context.Background()
	b := NewHeterogenBuilder()
	require.NoError(t, b.SetDataType(dtype.Float32))
	require.NoError(t, b.SetColumnType(1, dtype.Uint8))
	require.NoError(t, b.Allocate(ctx, 2, 3))
	assert.ErrorIs(t, b.SetColumnType(0, dtype.Int8), core.ErrDomain)

	block := memory.Wrap([]float64{1, 2, 3, 4, 5, 6}, nil)
	defer block.Release()
	_, err := b.PushRows(ctx, block, All)
	require.NoError(t, err)

	tbl, err := b.Build()
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, []dtype.DataType{dtype.Float32, dtype.Uint8, dtype.Float32}, tbl.Metadata().DataTypes)
	assert.Equal(t, []uint8{2, 5}, pullColumn[uint8](t, tbl, 1, All))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, pullRows[float64](t, tbl, All))

	require.NoError(t, b.SetColumnType(4, dtype.Int8))
	assert.ErrorIs(t, b.Allocate(ctx, 1, 2), core.ErrRange)
}

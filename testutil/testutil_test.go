package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRNG_Deterministic(t *testing.T) {
	a := Slice[float32](NewRNG(7), 16)
	b := Slice[float32](NewRNG(7), 16)
	assert.Equal(t, a, b)

	rng := NewRNG(7)
	first := Slice[int64](rng, 4)
	rng.Reset()
	assert.Equal(t, first, Slice[int64](rng, 4))
	assert.Equal(t, int64(7), rng.Seed())
}

func TestFillRange(t *testing.T) {
	rng := NewRNG(1)

	ints := make([]int8, 1000)
	FillRange(rng, ints, -3, 3)
	seen := map[int8]bool{}
	for _, v := range ints {
		assert.GreaterOrEqual(t, v, int8(-3))
		assert.LessOrEqual(t, v, int8(3))
		seen[v] = true
	}
	assert.Len(t, seen, 7)

	floats := make([]float64, 1000)
	FillRange(rng, floats, 2, 4)
	for _, v := range floats {
		assert.GreaterOrEqual(t, v, 2.0)
		assert.Less(t, v, 4.0)
	}

	full := make([]uint64, 8)
	FillRange(rng, full, 0, ^uint64(0))
	assert.NotEqual(t, make([]uint64, 8), full)
}

func TestRandomCSR(t *testing.T) {
	values, colIdx, rowOff := RandomCSR[int32](NewRNG(3), 20, 10, 0.3)

	assert.Len(t, rowOff, 21)
	assert.Equal(t, int64(0), rowOff[0])
	assert.Equal(t, int64(len(values)), rowOff[20])
	assert.Len(t, colIdx, len(values))
	for i := range 20 {
		for k := rowOff[i]; k < rowOff[i+1]; k++ {
			assert.Less(t, colIdx[k], int64(10))
			if k > rowOff[i] {
				assert.Greater(t, colIdx[k], colIdx[k-1])
			}
			assert.GreaterOrEqual(t, values[k], int32(1))
		}
	}

	empty, _, off := RandomCSR[float64](NewRNG(3), 4, 4, 0)
	assert.Empty(t, empty)
	assert.Equal(t, []int64{0, 0, 0, 0, 0}, off)
}

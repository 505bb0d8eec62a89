package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/tabula/dtype"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Fill fills dst with values spanning the whole range of T. Floats are
// drawn from a standard normal distribution.
// Locks only once per call.
func Fill[T dtype.Element](r *RNG, dst []T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dt := dtype.Of[T]()
	for i := range dst {
		switch {
		case dt.IsFloat():
			dst[i] = T(r.rand.NormFloat64())
		default:
			// Truncating a random uint64 covers every bit pattern of T.
			dst[i] = T(r.rand.Uint64())
		}
	}
}

// FillRange fills dst with values in [lo, hi]. For floats the range is
// half-open.
func FillRange[T dtype.Element](r *RNG, dst []T, lo, hi T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dtype.Of[T]().IsFloat() {
		span := float64(hi) - float64(lo)
		for i := range dst {
			dst[i] = T(float64(lo) + r.rand.Float64()*span)
		}
		return
	}
	span := uint64(int64(hi)-int64(lo)) + 1
	for i := range dst {
		if span == 0 {
			dst[i] = T(r.rand.Uint64())
			continue
		}
		dst[i] = T(int64(lo) + int64(r.rand.Uint64()%span))
	}
}

// Slice returns n random values of T, see Fill.
func Slice[T dtype.Element](r *RNG, n int) []T {
	s := make([]T, n)
	Fill(r, s)
	return s
}

// RandomCSR returns a zero-based CSR structure with rows x cols positions,
// each stored with probability density. Column indices are strictly
// increasing within a row and values lie in [1, 10].
func RandomCSR[T dtype.Element](r *RNG, rows, cols int, density float64) (values []T, colIdx, rowOff []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	density = math.Max(0, math.Min(1, density))
	rowOff = make([]int64, 1, rows+1)
	for range rows {
		var row []int64
		for c := range cols {
			if r.rand.Float64() < density {
				row = append(row, int64(c))
			}
		}
		colIdx = append(colIdx, row...)
		for range row {
			values = append(values, T(1+r.rand.Intn(10)))
		}
		rowOff = append(rowOff, int64(len(colIdx)))
	}
	return values, colIdx, rowOff
}

package conv

import (
	"math"

	"github.com/hupe1980/tabula/core"
)

// Mul returns a*b or an overflow error.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, &core.OverflowError{Op: "*", A: a, B: b}
	}
	return r, nil
}

// Add returns a+b or an overflow error.
func Add(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, &core.OverflowError{Op: "+", A: a, B: b}
	}
	return r, nil
}

// Sub returns a-b or an overflow error.
func Sub(a, b int64) (int64, error) {
	r := a - b
	if (b > 0 && r > a) || (b < 0 && r < a) {
		return 0, &core.OverflowError{Op: "-", A: a, B: b}
	}
	return r, nil
}

// MulAll multiplies all factors, failing on the first overflow.
func MulAll(factors ...int64) (int64, error) {
	acc := int64(1)
	for _, f := range factors {
		var err error
		if acc, err = Mul(acc, f); err != nil {
			return 0, err
		}
	}
	return acc, nil
}

// ToInt converts an int64 to int, failing when it does not fit the platform
// int or is negative.
func ToInt(v int64) (int, error) {
	if v < 0 || v > int64(math.MaxInt) {
		return 0, &core.OverflowError{Op: "as int", A: v, B: int64(math.MaxInt)}
	}
	return int(v), nil
}

// ByteSize returns count*elemSize as int, checked.
func ByteSize(count int64, elemSize int) (int, error) {
	n, err := Mul(count, int64(elemSize))
	if err != nil {
		return 0, err
	}
	return ToInt(n)
}

// StridedExtent returns the number of elements spanned by a strided run:
// offset + (count-1)*stride + 1. A zero count spans offset elements.
func StridedExtent(offset, count, stride int64) (int64, error) {
	if count == 0 {
		return offset, nil
	}
	span, err := Mul(count-1, stride)
	if err != nil {
		return 0, err
	}
	if span, err = Add(span, 1); err != nil {
		return 0, err
	}
	return Add(offset, span)
}

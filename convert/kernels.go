package convert

import (
	"golang.org/x/exp/constraints"

	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
)

// Number is any Go numeric type Slice converts between.
type Number interface {
	constraints.Integer | constraints.Float
}

// integer is the set of integer element types a buffer can hold.
type integer interface {
	dtype.Element
	constraints.Integer
}

// Slice converts min(len(dst), len(src)) elements of src into dst with Go
// conversion semantics and returns the count.
func Slice[D, S Number](dst []D, src []S) int {
	n := min(len(dst), len(src))
	if d, ok := any(dst).([]S); ok {
		return copy(d[:n], src[:n])
	}
	dst, src = dst[:n], src[:n]
	for i, v := range src {
		dst[i] = D(v)
	}
	return n
}

// span is one strided run inside a job, in elements.
type span struct {
	srcOff, srcStride int
	dstOff, dstStride int
	n                 int
}

func (s span) contiguous() bool { return s.srcStride == 1 && s.dstStride == 1 }

// sub returns the part of s covering elements [lo, hi).
func (s span) sub(lo, hi int) span {
	return span{
		srcOff:    s.srcOff + lo*s.srcStride,
		srcStride: s.srcStride,
		dstOff:    s.dstOff + lo*s.dstStride,
		dstStride: s.dstStride,
		n:         hi - lo,
	}
}

// kernel converts one span between buffers whose element types were fixed
// when the kernel was instantiated. Bounds are validated before dispatch.
type kernel func(dst, src *memory.Buffer, s span) error

func convertSpan[S, D dtype.Element](dst, src *memory.Buffer, s span) error {
	sv, err := memory.RawData[S](src)
	if err != nil {
		return err
	}
	dv, err := memory.RawData[D](dst)
	if err != nil {
		return err
	}
	if s.n == 0 {
		return nil
	}
	if s.contiguous() {
		Slice(dv[s.dstOff:s.dstOff+s.n], sv[s.srcOff:s.srcOff+s.n])
		return nil
	}
	for i, si, di := 0, s.srcOff, s.dstOff; i < s.n; i, si, di = i+1, si+s.srcStride, di+s.dstStride {
		dv[di] = D(sv[si])
	}
	return nil
}

func fromRow[S dtype.Element]() [dtype.Count + 1]kernel {
	var row [dtype.Count + 1]kernel
	row[dtype.Int8] = convertSpan[S, int8]
	row[dtype.Int16] = convertSpan[S, int16]
	row[dtype.Int32] = convertSpan[S, int32]
	row[dtype.Int64] = convertSpan[S, int64]
	row[dtype.Uint8] = convertSpan[S, uint8]
	row[dtype.Uint16] = convertSpan[S, uint16]
	row[dtype.Uint32] = convertSpan[S, uint32]
	row[dtype.Uint64] = convertSpan[S, uint64]
	row[dtype.Float32] = convertSpan[S, float32]
	row[dtype.Float64] = convertSpan[S, float64]
	return row
}

// kernels is indexed [source][destination]. Row and column 0 (dtype.Invalid)
// stay nil.
var kernels = [dtype.Count + 1][dtype.Count + 1]kernel{
	dtype.Int8:    fromRow[int8](),
	dtype.Int16:   fromRow[int16](),
	dtype.Int32:   fromRow[int32](),
	dtype.Int64:   fromRow[int64](),
	dtype.Uint8:   fromRow[uint8](),
	dtype.Uint16:  fromRow[uint16](),
	dtype.Uint32:  fromRow[uint32](),
	dtype.Uint64:  fromRow[uint64](),
	dtype.Float32: fromRow[float32](),
	dtype.Float64: fromRow[float64](),
}

func lookup(from, to dtype.DataType) kernel {
	if !from.Valid() || !to.Valid() {
		return nil
	}
	return kernels[from][to]
}

// Supported reports whether the engine converts from one element type to
// another.
func Supported(from, to dtype.DataType) bool {
	return lookup(from, to) != nil
}

func shiftSpan[T integer](b *memory.Buffer, delta int64, lo, hi int) error {
	xs, err := memory.RawData[T](b)
	if err != nil {
		return err
	}
	d := T(delta)
	for i := lo; i < hi; i++ {
		xs[i] += d
	}
	return nil
}

type shiftKernel func(b *memory.Buffer, delta int64, lo, hi int) error

var shiftKernels = [dtype.Count + 1]shiftKernel{
	dtype.Int8:   shiftSpan[int8],
	dtype.Int16:  shiftSpan[int16],
	dtype.Int32:  shiftSpan[int32],
	dtype.Int64:  shiftSpan[int64],
	dtype.Uint8:  shiftSpan[uint8],
	dtype.Uint16: shiftSpan[uint16],
	dtype.Uint32: shiftSpan[uint32],
	dtype.Uint64: shiftSpan[uint64],
}

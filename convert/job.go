package convert

import (
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
)

// Job is one-dimensional copy: Count elements read from Src starting at
// SrcOffset every SrcStride elements, written to Dst starting at DstOffset
// every DstStride elements. A zero stride means 1.
type Job struct {
	Src       *memory.Buffer
	SrcOffset int
	SrcStride int

	Dst       *memory.Buffer
	DstOffset int
	DstStride int

	Count int
}

func (j Job) span() span {
	return span{
		srcOff:    j.SrcOffset,
		srcStride: max(j.SrcStride, 1),
		dstOff:    j.DstOffset,
		dstStride: max(j.DstStride, 1),
		n:         j.Count,
	}
}

// validate checks j completely before any element is touched.
func (j Job) validate() error {
	if j.Src == nil || j.Dst == nil {
		return core.InvalidArgumentf("job needs both a source and a destination buffer")
	}
	if lookup(j.Src.DataType(), j.Dst.DataType()) == nil {
		return &core.ConversionError{From: j.Src.DataType(), To: j.Dst.DataType()}
	}
	if j.Count < 0 || j.SrcOffset < 0 || j.DstOffset < 0 || j.SrcStride < 0 || j.DstStride < 0 {
		return core.InvalidArgumentf("negative count, offset or stride in job")
	}
	if j.Src.Released() || j.Dst.Released() {
		return core.ErrClosed
	}
	if !j.Dst.Mutable() {
		return core.Capabilityf("destination buffer is read-only")
	}

	s := j.span()
	if err := checkExtent("source", s.srcOff, s.n, s.srcStride, j.Src.Count()); err != nil {
		return err
	}
	return checkExtent("destination", s.dstOff, s.n, s.dstStride, j.Dst.Count())
}

func checkExtent(what string, off, n, stride, limit int) error {
	end, err := conv.StridedExtent(int64(off), int64(n), int64(stride))
	if err != nil {
		return err
	}
	if end > int64(limit) {
		return &core.RangeError{What: what, Start: int64(off), End: end, Extent: int64(limit)}
	}
	return nil
}

package convert

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/metrics"
	"github.com/hupe1980/tabula/policy"
	"github.com/hupe1980/tabula/resource"
)

func limits[T dtype.Element]() (lo, hi T) {
	var zero T
	switch any(zero).(type) {
	case int8:
		return any(int8(math.MinInt8)).(T), any(int8(math.MaxInt8)).(T)
	case int16:
		return any(int16(math.MinInt16)).(T), any(int16(math.MaxInt16)).(T)
	case int32:
		return any(int32(math.MinInt32)).(T), any(int32(math.MaxInt32)).(T)
	case int64:
		return any(int64(math.MinInt64)).(T), any(int64(math.MaxInt64)).(T)
	case uint8:
		return 0, any(uint8(math.MaxUint8)).(T)
	case uint16:
		return 0, any(uint16(math.MaxUint16)).(T)
	case uint32:
		return 0, any(uint32(math.MaxUint32)).(T)
	case uint64:
		return 0, any(uint64(math.MaxUint64)).(T)
	case float32:
		return any(float32(-math.MaxFloat32)).(T), any(float32(math.MaxFloat32)).(T)
	default:
		return any(-math.MaxFloat64).(T), any(math.MaxFloat64).(T)
	}
}

// representative returns 0, 1, -1 (where representable), min, max and, for
// floats, values with a fractional part.
func representative[T dtype.Element]() []T {
	lo, hi := limits[T]()
	out := []T{0, 1, lo, hi}
	if lo < 0 {
		minusOne := T(0)
		minusOne--
		out = append(out, minusOne)
	}
	if dtype.Of[T]().IsFloat() {
		var a, b float64 = 2.75, -2.75
		out = append(out, T(a), T(b))
	}
	return out
}

// inRange reports whether a float value converts to D without being
// implementation-defined.
func inRange[D dtype.Element](f float64) bool {
	lo, hi := limits[D]()
	return f > float64(lo)-1 && f < float64(hi)+1
}

func checkPair[S, D dtype.Element](t *testing.T, e *Engine) {
	from, to := dtype.Of[S](), dtype.Of[D]()
	t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
		ctx := context.Background()
		vals := representative[S]()

		src := memory.Wrap(vals, nil)
		defer src.Release()
		dst, _, err := e.Materialize(ctx, policy.Host(), src, to)
		require.NoError(t, err)
		defer dst.Release()

		got, err := memory.Data[D](dst)
		require.NoError(t, err)
		require.Len(t, got, len(vals))

		for i, v := range vals {
			if from.IsFloat() && !to.IsFloat() && !inRange[D](float64(v)) {
				continue
			}
			assert.Equal(t, D(v), got[i], "value %v", v)
		}

		if !dtype.Widens(from, to) {
			return
		}
		back, _, err := e.Materialize(ctx, policy.Host(), dst, from)
		require.NoError(t, err)
		defer back.Release()
		round, err := memory.Data[S](back)
		require.NoError(t, err)
		assert.Equal(t, vals, round, "widening round trip must be lossless")
	})
}

func checkFrom[S dtype.Element](t *testing.T, e *Engine) {
	checkPair[S, int8](t, e)
	checkPair[S, int16](t, e)
	checkPair[S, int32](t, e)
	checkPair[S, int64](t, e)
	checkPair[S, uint8](t, e)
	checkPair[S, uint16](t, e)
	checkPair[S, uint32](t, e)
	checkPair[S, uint64](t, e)
	checkPair[S, float32](t, e)
	checkPair[S, float64](t, e)
}

func TestConversionCorrectness(t *testing.T) {
	e := New()
	checkFrom[int8](t, e)
	checkFrom[int16](t, e)
	checkFrom[int32](t, e)
	checkFrom[int64](t, e)
	checkFrom[uint8](t, e)
	checkFrom[uint16](t, e)
	checkFrom[uint32](t, e)
	checkFrom[uint64](t, e)
	checkFrom[float32](t, e)
	checkFrom[float64](t, e)
}

func TestSupported(t *testing.T) {
	for _, a := range dtype.All() {
		for _, b := range dtype.All() {
			assert.True(t, Supported(a, b))
		}
	}
	assert.False(t, Supported(dtype.Invalid, dtype.Int8))
	assert.False(t, Supported(dtype.Float64, dtype.DataType(42)))
}

func TestSlice(t *testing.T) {
	dst := make([]int, 3)
	n := Slice(dst, []float64{1.9, -2.5, 3, 4})
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, -2, 3}, dst)

	same := make([]uint16, 2)
	assert.Equal(t, 2, Slice(same, []uint16{7, 8}))
	assert.Equal(t, []uint16{7, 8}, same)
}

func TestRun_Strided(t *testing.T) {
	// 2x3 row-major int32 matrix, converted column by column into a
	// column-major float64 block.
	src := memory.Wrap([]int32{1, 2, 3, 4, 5, 6}, nil)
	dst := memory.Wrap(make([]float64, 6), nil)
	defer src.Release()
	defer dst.Release()

	var jobs []Job
	for c := 0; c < 3; c++ {
		jobs = append(jobs, Job{
			Src: src, SrcOffset: c, SrcStride: 3,
			Dst: dst, DstOffset: c * 2, DstStride: 1,
			Count: 2,
		})
	}
	ev, err := New().Run(context.Background(), policy.Host(), jobs...)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	got, _ := memory.Data[float64](dst)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, got)
}

func TestRun_GroupsByTypePair(t *testing.T) {
	var m metrics.BasicCollector
	e := New(WithMetrics(&m))

	a := memory.Wrap([]int8{1, 2}, nil)
	b := memory.Wrap([]float32{3, 4}, nil)
	out := memory.Wrap(make([]int64, 6), nil)
	defer a.Release()
	defer b.Release()
	defer out.Release()

	_, err := e.Run(context.Background(), policy.Host(),
		Job{Src: a, Dst: out, DstOffset: 0, Count: 2},
		Job{Src: b, Dst: out, DstOffset: 2, Count: 2},
		Job{Src: a, Dst: out, DstOffset: 4, Count: 2},
	)
	require.NoError(t, err)

	got, _ := memory.Data[int64](out)
	assert.Equal(t, []int64{1, 2, 3, 4, 1, 2}, got)
	assert.Equal(t, int64(2), m.GetStats().ConversionGroups)
	assert.Equal(t, int64(6), m.GetStats().ConversionElements)
}

func TestRun_Parallel(t *testing.T) {
	pool := policy.NewWorkerPool(4)
	defer pool.Close()
	e := New(WithWorkerPool(pool), WithParallelThreshold(1024))

	const n = 1 << 18
	in := make([]uint32, n)
	for i := range in {
		in[i] = uint32(i)
	}
	src := memory.Wrap(in, nil)
	defer src.Release()

	dst, _, err := e.Materialize(context.Background(), policy.Host(), src, dtype.Float64)
	require.NoError(t, err)
	defer dst.Release()

	got, _ := memory.Data[float64](dst)
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("index %d: got %v", i, v)
		}
	}

	// Many small jobs fan out over the job list.
	rows := memory.Wrap(make([]int16, n), nil)
	defer rows.Release()
	var jobs []Job
	for r := 0; r < n/64; r++ {
		jobs = append(jobs, Job{Src: src, SrcOffset: r * 64, Dst: rows, DstOffset: r * 64, Count: 64})
	}
	_, err = e.Run(context.Background(), policy.Host(), jobs...)
	require.NoError(t, err)
	out, _ := memory.Data[int16](rows)
	assert.Equal(t, int16(1000), out[1000])
	last := uint32(n - 1)
	assert.Equal(t, int16(last), out[n-1])
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	e := New()
	src := memory.Wrap([]int32{1, 2, 3}, nil)
	dst := memory.Wrap(make([]int32, 3), nil)
	ro := memory.WrapReadOnly(make([]int32, 3), nil)
	defer src.Release()
	defer dst.Release()
	defer ro.Release()

	_, err := e.Run(ctx, policy.Host(), Job{Src: src, Dst: dst, Count: 4})
	assert.ErrorIs(t, err, core.ErrRange)

	_, err = e.Run(ctx, policy.Host(), Job{Src: src, Dst: dst, SrcOffset: 1, SrcStride: 2, Count: 2})
	assert.ErrorIs(t, err, core.ErrRange)

	_, err = e.Run(ctx, policy.Host(), Job{Src: src, Dst: dst, SrcStride: math.MaxInt, Count: 3})
	assert.ErrorIs(t, err, core.ErrOverflow)

	_, err = e.Run(ctx, policy.Host(), Job{Src: src, Dst: ro, Count: 3})
	assert.ErrorIs(t, err, core.ErrCapability)

	_, err = e.Run(ctx, policy.Host(), Job{Src: src, Count: 3})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = e.Run(ctx, policy.Host(), Job{Src: src, Dst: dst, Count: -1})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	// Validation happens before anything is written.
	_, err = e.Run(ctx, policy.Host(),
		Job{Src: src, Dst: dst, Count: 3},
		Job{Src: src, Dst: dst, Count: 9},
	)
	require.Error(t, err)
	got, _ := memory.Data[int32](dst)
	assert.Equal(t, []int32{0, 0, 0}, got)

	ev, err := e.Run(ctx, policy.Host())
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	e := New()
	src := memory.Wrap([]float32{1, 2}, nil)
	dst := memory.Wrap(make([]float32, 2), nil)
	defer src.Release()
	defer dst.Release()

	_, err := e.Copy(ctx, policy.Host(), dst, src)
	require.NoError(t, err)
	got, _ := memory.Data[float32](dst)
	assert.Equal(t, []float32{1, 2}, got)

	other := memory.Wrap(make([]float64, 2), nil)
	defer other.Release()
	_, err = e.Copy(ctx, policy.Host(), other, src)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	short := memory.Wrap(make([]float32, 1), nil)
	defer short.Release()
	_, err = e.Copy(ctx, policy.Host(), short, src)
	assert.ErrorIs(t, err, core.ErrRange)
}

func TestRun_DeviceStaging(t *testing.T) {
	ctx := context.Background()
	var m metrics.BasicCollector
	rc := resource.NewController(resource.Config{TransferLimitBytesPerSec: 1 << 30})
	e := New(WithMetrics(&m), WithResourceController(rc))

	dev := policy.NewSimulatedDevice()
	q := dev.NewQueue()
	defer q.Close()
	onDevice := policy.OnQueue(q, policy.Device)

	host := memory.Wrap([]int32{1, 2, 3, 4}, nil)
	defer host.Release()

	// host -> device with conversion
	d, err := memory.Alloc(ctx, onDevice, dtype.Float64, 4)
	require.NoError(t, err)
	defer d.Release()
	ev, err := e.Run(ctx, onDevice, Job{Src: host, Dst: d, Count: 4})
	require.NoError(t, err)

	// device -> device, ordered after the upload
	d2, err := memory.Alloc(ctx, onDevice, dtype.Float32, 4)
	require.NoError(t, err)
	defer d2.Release()
	ev, err = e.Run(ctx, onDevice.After(ev), Job{Src: d, Dst: d2, Count: 4})
	require.NoError(t, err)

	// device -> host, reversed through a stride
	back := memory.Wrap(make([]int64, 4), nil)
	defer back.Release()
	ev, err = e.Run(ctx, onDevice.After(ev), Job{Src: d2, Dst: back, Count: 2, SrcStride: 2})
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	got, _ := memory.Data[int64](back)
	assert.Equal(t, []int64{1, 3, 0, 0}, got)

	s := m.GetStats()
	assert.Equal(t, int64(2), s.TransferCount)
	assert.Equal(t, int64(4*8+2*4), s.TransferBytes)
	assert.Zero(t, rc.MemoryUsage(resource.HostPool), "staging scratch must be released")
}

func TestRun_DeviceNeedsQueue(t *testing.T) {
	ctx := context.Background()
	q := policy.NewSimulatedDevice().NewQueue()
	defer q.Close()

	d, err := memory.Alloc(ctx, policy.OnQueue(q, policy.Device), dtype.Int8, 2)
	require.NoError(t, err)
	defer d.Release()
	h := memory.Wrap(make([]int8, 2), nil)
	defer h.Release()

	_, err = New().Run(ctx, policy.Host(), Job{Src: d, Dst: h, Count: 2})
	assert.ErrorIs(t, err, core.ErrCapability)
}

func TestShiftValues(t *testing.T) {
	ctx := context.Background()
	e := New(WithParallelThreshold(4))

	b := memory.Wrap([]int64{1, 5, 8, 9, 12}, nil)
	defer b.Release()

	ev, err := e.ShiftValues(ctx, policy.Host(), b, 0)
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = e.ShiftValues(ctx, policy.Host(), b, -1)
	require.NoError(t, err)
	got, _ := memory.Data[int64](b)
	assert.Equal(t, []int64{0, 4, 7, 8, 11}, got)

	u := memory.Wrap([]uint32{1, 2}, nil)
	defer u.Release()
	_, err = e.ShiftValues(ctx, policy.Host(), u, -1)
	require.NoError(t, err)
	gu, _ := memory.Data[uint32](u)
	assert.Equal(t, []uint32{0, 1}, gu)

	f := memory.Wrap([]float32{1}, nil)
	defer f.Release()
	_, err = e.ShiftValues(ctx, policy.Host(), f, 1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	ro := memory.WrapReadOnly([]int32{1}, nil)
	defer ro.Release()
	_, err = e.ShiftValues(ctx, policy.Host(), ro, 1)
	assert.ErrorIs(t, err, core.ErrCapability)
}

func TestShiftValues_OnQueue(t *testing.T) {
	ctx := context.Background()
	q := policy.NewSimulatedDevice().NewQueue()
	defer q.Close()
	pol := policy.OnQueue(q, policy.Device)

	b, err := memory.Alloc(ctx, pol, dtype.Int32, 3)
	require.NoError(t, err)
	defer b.Release()

	ev, err := New().ShiftValues(ctx, pol, b, 7)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	raw, err := memory.RawData[int32](b)
	require.NoError(t, err)
	assert.Equal(t, []int32{7, 7, 7}, raw)
}

package memory

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/policy"
)

// owner is one allocation. Every Buffer viewing it holds one reference; the
// release action runs when the last reference is dropped.
type owner struct {
	region  []byte
	kind    policy.AllocKind
	release func()
	refs    atomic.Int64
	once    sync.Once
}

func newOwner(region []byte, kind policy.AllocKind, release func()) *owner {
	return &owner{region: region, kind: kind, release: release}
}

func (o *owner) retain() { o.refs.Add(1) }

func (o *owner) drop() {
	if o.refs.Add(-1) == 0 {
		o.once.Do(func() {
			if o.release != nil {
				o.release()
			}
		})
	}
}

// ref is the single owner reference held by one Buffer handle. It is kept
// apart from the Buffer so the GC cleanup can drop it without resurrecting
// the handle.
type ref struct {
	own     *owner
	dropped atomic.Bool
}

func (r *ref) drop() {
	if r.dropped.CompareAndSwap(false, true) {
		r.own.drop()
	}
}

// Buffer is a typed view of count elements inside a reference-counted
// allocation.
//
// Several Buffers may view one allocation: slices, reinterpretations under a
// different element type and read-only views all share it. The allocation's
// release action runs once every Buffer viewing it has been released, either
// explicitly with Release or by the garbage collector once a Buffer becomes
// unreachable.
//
// Slices returned by Data and MutableData borrow from the Buffer and must not
// be used after the Buffer is released.
type Buffer struct {
	ref     *ref
	cleanup runtime.Cleanup
	dt      dtype.DataType
	off     int
	count   int
	mutable bool
}

func newBuffer(own *owner, dt dtype.DataType, off, count int, mutable bool) *Buffer {
	own.retain()
	r := &ref{own: own}
	b := &Buffer{ref: r, dt: dt, off: off, count: count, mutable: mutable}
	b.cleanup = addCleanup(b, r)
	return b
}

func addCleanup(b *Buffer, r *ref) runtime.Cleanup {
	return runtime.AddCleanup(b, func(r *ref) { r.drop() }, r)
}

// WrapOption configures Wrap.
type WrapOption func(*wrapOptions)

type wrapOptions struct {
	kind     policy.AllocKind
	readOnly bool
}

// WithAllocKind tags wrapped memory with kind (default policy.Pageable).
func WithAllocKind(kind policy.AllocKind) WrapOption {
	return func(o *wrapOptions) { o.kind = kind }
}

// WithReadOnly marks wrapped memory as immutable; MutableData fails on it.
func WithReadOnly() WrapOption {
	return func(o *wrapOptions) { o.readOnly = true }
}

// Wrap creates a Buffer over data without copying. release, if not nil, runs
// once every Buffer derived from the result has been released.
func Wrap[T dtype.Element](data []T, release func(), opts ...WrapOption) *Buffer {
	o := wrapOptions{kind: policy.Pageable}
	for _, opt := range opts {
		opt(&o)
	}
	dt := dtype.Of[T]()
	raw := bytesOf(data)
	return newBuffer(newOwner(raw, o.kind, release), dt, 0, len(data), !o.readOnly)
}

// WrapReadOnly wraps immutable external memory.
func WrapReadOnly[T dtype.Element](data []T, release func()) *Buffer {
	return Wrap(data, release, WithReadOnly())
}

// WrapBytes views raw as elements of dt. len(raw) must be a multiple of the
// element size.
func WrapBytes(dt dtype.DataType, raw []byte, kind policy.AllocKind, release func()) (*Buffer, error) {
	if !dt.Valid() {
		return nil, core.InvalidArgumentf("unsupported data type %s", dt)
	}
	if !kind.Valid() {
		return nil, core.InvalidArgumentf("unsupported allocation kind %s", kind)
	}
	if len(raw)%dt.Size() != 0 {
		return nil, core.InvalidArgumentf("%d bytes do not hold a whole number of %s elements", len(raw), dt)
	}
	return newBuffer(newOwner(raw, kind, release), dt, 0, len(raw)/dt.Size(), true), nil
}

// Count returns the number of elements.
func (b *Buffer) Count() int { return b.count }

// DataType returns the element type.
func (b *Buffer) DataType() dtype.DataType { return b.dt }

// Kind returns where the memory lives.
func (b *Buffer) Kind() policy.AllocKind { return b.ref.own.kind }

// Mutable reports whether MutableData is permitted.
func (b *Buffer) Mutable() bool { return b.mutable }

// ByteLen returns the size of the viewed region in bytes.
func (b *Buffer) ByteLen() int { return b.count * b.dt.Size() }

// Released reports whether Release has been called on this handle.
func (b *Buffer) Released() bool { return b.ref.dropped.Load() }

// Addr returns the address of the first element, or 0 for an empty Buffer.
// It identifies memory for aliasing checks and must not be dereferenced.
func (b *Buffer) Addr() uintptr {
	raw := b.region()
	if len(raw) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(raw))) //nolint:gosec // identity only
}

// SharesOwner reports whether b and o view the same allocation.
func (b *Buffer) SharesOwner(o *Buffer) bool {
	return b.ref.own == o.ref.own
}

// Adjacent reports whether o starts exactly where b ends inside the same
// allocation.
func (b *Buffer) Adjacent(o *Buffer) bool {
	return b.SharesOwner(o) && b.off+b.ByteLen() == o.off
}

func (b *Buffer) region() []byte {
	raw := b.ref.own.region
	if raw == nil {
		return nil
	}
	return raw[b.off : b.off+b.ByteLen() : b.off+b.ByteLen()]
}

func (b *Buffer) checkLive() error {
	if b.Released() {
		return fmt.Errorf("buffer: %w", core.ErrClosed)
	}
	return nil
}

func (b *Buffer) checkHost() error {
	if err := b.checkLive(); err != nil {
		return err
	}
	if !b.Kind().HostAccessible() {
		return core.Capabilityf("%s memory is not host accessible", b.Kind())
	}
	return nil
}

// Bytes returns the viewed region as bytes for reading.
func (b *Buffer) Bytes() ([]byte, error) {
	if err := b.checkHost(); err != nil {
		return nil, err
	}
	return b.region(), nil
}

// MutableBytes returns the viewed region as bytes for writing.
func (b *Buffer) MutableBytes() ([]byte, error) {
	if err := b.checkHost(); err != nil {
		return nil, err
	}
	if !b.mutable {
		return nil, core.Capabilityf("buffer is read-only")
	}
	return b.region(), nil
}

// RawBytes returns the viewed region regardless of where it lives. It is for
// kernels running on the queue that owns device memory; host code uses Bytes.
func (b *Buffer) RawBytes() []byte {
	if b.Released() {
		return nil
	}
	return b.region()
}

// Data returns the elements of b for reading.
func Data[T dtype.Element](b *Buffer) ([]T, error) {
	if err := checkType[T](b); err != nil {
		return nil, err
	}
	raw, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return castSlice[T](raw, b.count), nil
}

// MutableData returns the elements of b for writing.
func MutableData[T dtype.Element](b *Buffer) ([]T, error) {
	if err := checkType[T](b); err != nil {
		return nil, err
	}
	raw, err := b.MutableBytes()
	if err != nil {
		return nil, err
	}
	return castSlice[T](raw, b.count), nil
}

// RawData is the typed form of RawBytes.
func RawData[T dtype.Element](b *Buffer) ([]T, error) {
	if err := checkType[T](b); err != nil {
		return nil, err
	}
	if err := b.checkLive(); err != nil {
		return nil, err
	}
	return castSlice[T](b.region(), b.count), nil
}

func checkType[T dtype.Element](b *Buffer) error {
	if want := dtype.Of[T](); want != b.dt {
		return core.InvalidArgumentf("buffer holds %s elements, requested %s", b.dt, want)
	}
	return nil
}

// Slice returns a Buffer viewing elements [first, last) of b. The result
// keeps the allocation alive independently of b.
func (b *Buffer) Slice(first, last int) (*Buffer, error) {
	if err := b.checkLive(); err != nil {
		return nil, err
	}
	if first < 0 || last < first || last > b.count {
		return nil, &core.RangeError{What: "buffer", Start: int64(first), End: int64(last), Extent: int64(b.count)}
	}
	return newBuffer(b.ref.own, b.dt, b.off+first*b.dt.Size(), last-first, b.mutable), nil
}

// Retain returns a new handle on the same view. It panics if b has been
// released, since the allocation may already be gone.
func (b *Buffer) Retain() *Buffer {
	b.mustLive()
	return newBuffer(b.ref.own, b.dt, b.off, b.count, b.mutable)
}

// ReadOnly returns a new immutable handle on the same view. It panics if b
// has been released.
func (b *Buffer) ReadOnly() *Buffer {
	b.mustLive()
	return newBuffer(b.ref.own, b.dt, b.off, b.count, false)
}

func (b *Buffer) mustLive() {
	if err := b.checkLive(); err != nil {
		panic(err)
	}
}

// Reinterpret views b's bytes as elements of dt. The byte length must be a
// whole multiple of the new element size, and the first element must be
// aligned for it.
func Reinterpret(b *Buffer, dt dtype.DataType) (*Buffer, error) {
	if err := b.checkLive(); err != nil {
		return nil, err
	}
	if !dt.Valid() {
		return nil, core.InvalidArgumentf("unsupported data type %s", dt)
	}
	n := b.ByteLen()
	if n%dt.Size() != 0 {
		return nil, core.InvalidArgumentf("cannot view %d bytes of %s as %s", n, b.dt, dt)
	}
	if addr := b.Addr(); addr%uintptr(dt.Size()) != 0 {
		return nil, core.InvalidArgumentf("buffer at %#x is misaligned for %s", addr, dt)
	}
	return newBuffer(b.ref.own, dt, b.off, n/dt.Size(), b.mutable), nil
}

// Coalesce returns one Buffer spanning parts when they are adjacent views of
// the same allocation with one element type, in order. ok is false otherwise.
func Coalesce(parts ...*Buffer) (buf *Buffer, ok bool) {
	if len(parts) == 0 {
		return nil, false
	}
	first := parts[0]
	count, mutable := first.count, first.mutable
	for i := 1; i < len(parts); i++ {
		p := parts[i]
		if p.dt != first.dt || !parts[i-1].Adjacent(p) {
			return nil, false
		}
		count += p.count
		mutable = mutable && p.mutable
	}
	if first.Released() {
		return nil, false
	}
	return newBuffer(first.ref.own, first.dt, first.off, count, mutable), true
}

// Release drops this handle's reference to the allocation. Further use of
// the handle fails with core.ErrClosed. Release is idempotent and nil-safe.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.cleanup.Stop()
	b.ref.drop()
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s, %d, %s)", b.dt, b.count, b.Kind())
}

func bytesOf[T dtype.Element](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	n := len(data) * int(unsafe.Sizeof(data[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), n) //nolint:gosec // same memory, byte view
}

func castSlice[T dtype.Element](raw []byte, count int) []T {
	if count == 0 || len(raw) == 0 {
		return []T{}
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(raw))), count) //nolint:gosec // length checked by caller
}

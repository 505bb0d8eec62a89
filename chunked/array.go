package chunked

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/tabula/convert"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// Array is a logical sequence of elements of one type stored in an ordered
// list of chunks. Chunk i covers logical indices [Offsets()[i],
// Offsets()[i+1]); chunks need not be adjacent in memory.
//
// An Array holds its own reference to every chunk. Reads are safe for
// concurrent use; SetChunk, Append and Release must not race with each other
// or with reads.
type Array struct {
	dt dtype.DataType

	mu     sync.RWMutex
	chunks []*memory.Buffer
	// set marks the chunk slots that hold a buffer.
	set *bitset.BitSet

	// offsets caches cumulative chunk lengths; nil means stale.
	offsets atomic.Pointer[[]int]
}

// New creates an Array of n chunks, none of them set yet.
func New(dt dtype.DataType, n int) *Array {
	if n < 0 {
		n = 0
	}
	return &Array{
		dt:     dt,
		chunks: make([]*memory.Buffer, n),
		set:    bitset.New(uint(n)),
	}
}

// FromBuffer creates a single-chunk Array viewing b.
func FromBuffer(b *memory.Buffer) *Array {
	a := New(b.DataType(), 1)
	a.chunks[0] = b.Retain()
	a.set.Set(0)
	return a
}

// Of wraps each slice as one chunk without copying.
func Of[T dtype.Element](chunks ...[]T) *Array {
	a := New(dtype.Of[T](), len(chunks))
	for i, c := range chunks {
		a.chunks[i] = memory.Wrap(c, nil)
		a.set.Set(uint(i))
	}
	return a
}

// DataType returns the element type.
func (a *Array) DataType() dtype.DataType { return a.dt }

// ChunkCount returns the number of chunk slots, set or not.
func (a *Array) ChunkCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.chunks)
}

// Chunk returns chunk i, or nil if it is unset. The Array keeps ownership;
// call Retain on the result to keep it beyond the Array's lifetime.
func (a *Array) Chunk(i int) *memory.Buffer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if i < 0 || i >= len(a.chunks) || !a.set.Test(uint(i)) {
		return nil
	}
	return a.chunks[i]
}

// eachSet calls fn for every set chunk in order until fn returns false.
// The caller holds a.mu.
func (a *Array) eachSet(fn func(i int, c *memory.Buffer) bool) {
	n := uint(len(a.chunks))
	for i, ok := a.set.NextSet(0); ok && i < n; i, ok = a.set.NextSet(i + 1) {
		if !fn(int(i), a.chunks[i]) {
			return
		}
	}
}

// SetChunk replaces chunk i with a new reference to b.
func (a *Array) SetChunk(i int, b *memory.Buffer) error {
	if b == nil {
		return core.InvalidArgumentf("nil chunk")
	}
	if b.DataType() != a.dt {
		return core.InvalidArgumentf("chunk of %s elements in a %s array", b.DataType(), a.dt)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if i < 0 || i >= len(a.chunks) {
		return &core.RangeError{What: "chunk", Start: int64(i), End: int64(i) + 1, Extent: int64(len(a.chunks))}
	}
	if a.set.Test(uint(i)) {
		a.chunks[i].Release()
	}
	a.chunks[i] = b.Retain()
	a.set.Set(uint(i))
	a.offsets.Store(nil)
	return nil
}

// Offsets returns the ChunkCount()+1 cumulative chunk boundaries. Unset
// chunks count as empty.
func (a *Array) Offsets() []int {
	offs := a.cumulative()
	out := make([]int, len(offs))
	copy(out, offs)
	return out
}

func (a *Array) cumulative() []int {
	if p := a.offsets.Load(); p != nil {
		return *p
	}

	a.mu.RLock()
	counts := make([]int, len(a.chunks))
	a.eachSet(func(i int, c *memory.Buffer) bool {
		counts[i] = c.Count()
		return true
	})
	a.mu.RUnlock()

	offs := make([]int, len(counts)+1)
	for i, n := range counts {
		offs[i+1] = offs[i] + n
	}

	a.offsets.CompareAndSwap(nil, &offs)
	return offs
}

// Count returns the total number of elements.
func (a *Array) Count() int {
	offs := a.cumulative()
	return offs[len(offs)-1]
}

// Locate maps a logical index to a chunk and an index inside it.
func (a *Array) Locate(idx int) (chunk, local int, err error) {
	offs := a.cumulative()
	total := offs[len(offs)-1]
	if idx < 0 || idx >= total {
		return 0, 0, &core.RangeError{What: "element", Start: int64(idx), End: int64(idx) + 1, Extent: int64(total)}
	}
	chunk = sort.Search(len(offs)-1, func(i int) bool { return offs[i+1] > idx })
	return chunk, idx - offs[chunk], nil
}

// IsContiguous reports whether the non-empty chunks are adjacent views of
// one allocation, in order. It is a hint for Flatten, not a correctness
// requirement.
func (a *Array) IsContiguous() bool {
	_, ok := a.coalesce()
	if ok {
		return true
	}
	return a.nonEmptyCount() <= 1 && a.allSet()
}

func (a *Array) nonEmptyCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	a.eachSet(func(_ int, c *memory.Buffer) bool {
		if c.Count() > 0 {
			n++
		}
		return true
	})
	return n
}

func (a *Array) allSet() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.set.Count() == uint(len(a.chunks))
}

// View returns one buffer spanning every element when the chunks are
// adjacent views of one allocation. The caller releases the view.
func (a *Array) View() (*memory.Buffer, bool) {
	return a.coalesce()
}

// coalesce returns one view spanning all non-empty chunks when they are
// adjacent in one allocation.
func (a *Array) coalesce() (*memory.Buffer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.set.Count() != uint(len(a.chunks)) {
		return nil, false
	}
	parts := make([]*memory.Buffer, 0, len(a.chunks))
	for _, c := range a.chunks {
		if c.Count() > 0 {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return nil, false
	}
	return memory.Coalesce(parts...)
}

// Option configures Flatten.
type Option func(*options)

type options struct {
	engine *convert.Engine
}

// WithEngine sets the conversion engine used when Flatten has to copy.
func WithEngine(e *convert.Engine) Option {
	return func(o *options) { o.engine = e }
}

// Flatten returns the whole sequence as one Buffer of pol.Kind() memory.
//
// When the chunks are adjacent in one allocation and their memory serves
// pol.Kind() without a copy, the result is a view sharing that allocation
// and the event is nil. Otherwise a new buffer is allocated and the chunks
// are copied into it in order; under a queue policy the copy completes
// with the returned event.
func (a *Array) Flatten(ctx context.Context, pol policy.Policy, opts ...Option) (*memory.Buffer, *policy.Event, error) {
	o := options{engine: convert.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := a.Validate(); err != nil {
		return nil, nil, err
	}

	if view, ok := a.coalesce(); ok {
		if !policy.NeedsCopy(view.Kind(), pol.Kind()) {
			return view, nil, nil
		}
		view.Release()
	}

	a.mu.RLock()
	chunks := make([]*memory.Buffer, len(a.chunks))
	copy(chunks, a.chunks)
	a.mu.RUnlock()

	if len(chunks) == 1 && !policy.NeedsCopy(chunks[0].Kind(), pol.Kind()) {
		return chunks[0].Retain(), nil, nil
	}

	dst, err := memory.Alloc(ctx, pol, a.dt, a.Count())
	if err != nil {
		return nil, nil, err
	}
	jobs := make([]convert.Job, 0, len(chunks))
	at := 0
	for _, c := range chunks {
		if c.Count() > 0 {
			jobs = append(jobs, convert.Job{Src: c, Dst: dst, DstOffset: at, Count: c.Count()})
		}
		at += c.Count()
	}
	ev, err := o.engine.Run(ctx, pol, jobs...)
	if err != nil {
		dst.Release()
		return nil, nil, fmt.Errorf("flatten: %w", err)
	}
	return dst, ev, nil
}

// Slice returns a new Array covering logical elements [first, last). Its
// chunks are views into the overlapping chunks of a; nothing is copied.
func (a *Array) Slice(first, last int) (*Array, error) {
	offs := a.cumulative()
	total := offs[len(offs)-1]
	if first < 0 || last < first || last > total {
		return nil, &core.RangeError{What: "array", Start: int64(first), End: int64(last), Extent: int64(total)}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := New(a.dt, 0)
	if first == last {
		return out, nil
	}
	begin := sort.Search(len(offs)-1, func(i int) bool { return offs[i+1] > first })
	for i := begin; i < len(a.chunks) && offs[i] < last; i++ {
		if !a.set.Test(uint(i)) {
			out.Release()
			return nil, core.Domainf("chunk %d is not set", i)
		}
		c := a.chunks[i]
		lo := max(first, offs[i]) - offs[i]
		hi := min(last, offs[i+1]) - offs[i]
		if lo == hi {
			continue
		}
		s, err := c.Slice(lo, hi)
		if err != nil {
			out.Release()
			return nil, err
		}
		out.chunks = append(out.chunks, s)
		out.set.Set(uint(len(out.chunks) - 1))
	}
	return out, nil
}

// Part is either a *memory.Buffer or an *Array.
type Part interface {
	DataType() dtype.DataType
}

// Append adds the parts' chunks to the end of a. Buffers become one chunk;
// arrays contribute each of their chunks. Nothing is appended on error.
func (a *Array) Append(parts ...Part) error {
	var add []*memory.Buffer
	fail := func(err error) error {
		for _, b := range add {
			b.Release()
		}
		return err
	}
	for _, p := range parts {
		if p.DataType() != a.dt {
			return fail(core.InvalidArgumentf("cannot append %s elements to a %s array", p.DataType(), a.dt))
		}
		switch v := p.(type) {
		case *memory.Buffer:
			add = append(add, v.Retain())
		case *Array:
			v.mu.RLock()
			if i, ok := v.set.NextClear(0); ok && i < uint(len(v.chunks)) {
				v.mu.RUnlock()
				return fail(core.Domainf("appended array has unset chunk %d", i))
			}
			for _, c := range v.chunks {
				add = append(add, c.Retain())
			}
			v.mu.RUnlock()
		default:
			return fail(core.InvalidArgumentf("cannot append %T", p))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range add {
		a.chunks = append(a.chunks, b)
		a.set.Set(uint(len(a.chunks) - 1))
	}
	a.offsets.Store(nil)
	return nil
}

// Clone returns a new Array with its own references to a's chunks.
func (a *Array) Clone() *Array {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := New(a.dt, len(a.chunks))
	a.eachSet(func(i int, c *memory.Buffer) bool {
		out.chunks[i] = c.Retain()
		out.set.Set(uint(i))
		return true
	})
	return out
}

// HaveSamePolicies reports whether every set chunk lives in the same kind of
// memory.
func (a *Array) HaveSamePolicies() bool {
	_, _, ok := a.kinds()
	return ok
}

func (a *Array) kinds() (first, other policy.AllocKind, same bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := false
	other, same = first, true
	a.eachSet(func(_ int, c *memory.Buffer) bool {
		switch {
		case !seen:
			first, other, seen = c.Kind(), c.Kind(), true
		case c.Kind() != first:
			other, same = c.Kind(), false
		}
		return same
	})
	return first, other, same
}

// Validate checks that every chunk is set and that all chunks live in one
// kind of memory. Callers run it before handing the array to operations
// that cannot mix memory spaces without an explicit copy.
func (a *Array) Validate() error {
	a.mu.RLock()
	n := uint(len(a.chunks))
	missing, hasMissing := a.set.NextClear(0)
	a.mu.RUnlock()

	if hasMissing && missing < n {
		return core.Domainf("chunk %d of %d is not set", missing, n)
	}
	if first, other, ok := a.kinds(); !ok {
		return core.InvalidArgumentf("chunks mix %s and %s memory", first, other)
	}
	return nil
}

// Release drops the array's chunk references. The array is empty afterwards.
func (a *Array) Release() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eachSet(func(_ int, c *memory.Buffer) bool {
		c.Release()
		return true
	})
	a.chunks = nil
	a.set.ClearAll()
	a.offsets.Store(nil)
}

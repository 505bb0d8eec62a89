package table

import (
	"context"
	"fmt"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
)

// Kind is the stable tag identifying a table backend. It is written first in
// the persisted form of a table.
type Kind uint8

const (
	KindEmpty     Kind = 0
	KindHomogen   Kind = 1
	KindCSR       Kind = 10
	KindHeterogen Kind = 100
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindHomogen:
		return "homogen"
	case KindCSR:
		return "csr"
	case KindHeterogen:
		return "heterogen"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Layout is the element order of dense storage.
type Layout uint8

const (
	RowMajor Layout = iota
	ColumnMajor
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// Valid reports whether l is a supported layout.
func (l Layout) Valid() bool { return l == RowMajor || l == ColumnMajor }

// Indexing is the base of CSR column indices and row offsets.
type Indexing uint8

const (
	OneBased Indexing = iota
	ZeroBased
)

func (ix Indexing) String() string {
	switch ix {
	case OneBased:
		return "one-based"
	case ZeroBased:
		return "zero-based"
	default:
		return fmt.Sprintf("indexing(%d)", uint8(ix))
	}
}

// Valid reports whether ix is a supported indexing mode.
func (ix Indexing) Valid() bool { return ix == OneBased || ix == ZeroBased }

// Base returns the value of the first index: 1 or 0.
func (ix Indexing) Base() int64 {
	if ix == OneBased {
		return 1
	}
	return 0
}

// Range is a half-open range of rows [Start, End). A negative End means the
// table extent.
type Range struct {
	Start int64
	End   int64
}

// All is the range of every row.
var All = Range{Start: 0, End: -1}

// Rows returns the range [start, end).
func Rows(start, end int64) Range { return Range{Start: start, End: end} }

// normalize resolves r against extent.
func (r Range) normalize(what string, extent int64) (start, end int64, err error) {
	start, end = r.Start, r.End
	if end < 0 {
		end = extent
	}
	if start < 0 || start > end || end > extent {
		return 0, 0, &core.RangeError{What: what, Start: r.Start, End: end, Extent: extent}
	}
	return start, end, nil
}

func checkColumn(col, cols int64) error {
	if col < 0 || col >= cols {
		return &core.RangeError{What: "column", Start: col, End: col + 1, Extent: cols}
	}
	return nil
}

// Table is the block-access contract shared by every backend.
//
// Pulls return a block of the requested element type over a row range. When
// the request is alias-eligible (same element type, memory that serves the
// policy's allocation kind, and a block that is contiguous in storage) the
// block is a view of table storage; otherwise it is a fresh buffer filled by
// the conversion engine. Row blocks are row-major.
//
// Under a host policy operations complete before returning and the event is
// nil or already done. Under a queue policy the event signals completion.
//
// A Table is safe for concurrent pulls. Pushes mutate storage in place and
// need a single writer per table; overlapping concurrent pushes are
// undefined.
type Table interface {
	Kind() Kind
	RowCount() int64
	ColumnCount() int64
	Metadata() Metadata
	Layout() Layout

	PullRows(ctx context.Context, dt dtype.DataType, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error)
	PullColumn(ctx context.Context, dt dtype.DataType, column int64, rows Range, opts ...AccessOption) (*memory.Buffer, *policy.Event, error)
	PushRows(ctx context.Context, block *memory.Buffer, rows Range, opts ...AccessOption) (*policy.Event, error)
	PushColumn(ctx context.Context, block *memory.Buffer, column int64, rows Range, opts ...AccessOption) (*policy.Event, error)

	// Release drops the table's references to its storage.
	Release()
}

// CSRAccessor is implemented by tables that can serve compressed sparse row
// blocks.
type CSRAccessor interface {
	PullCSR(ctx context.Context, dt dtype.DataType, rows Range, indexing Indexing, opts ...AccessOption) (*CSRBlock, error)
}

// CSRBlock is a pulled CSR row range.
type CSRBlock struct {
	Values        *memory.Buffer
	ColumnIndices *memory.Buffer
	RowOffsets    *memory.Buffer
	// Event completes when all three buffers are ready.
	Event *policy.Event
}

// Wait blocks until the block is ready.
func (b *CSRBlock) Wait() error { return b.Event.Wait() }

// Release releases the three buffers.
func (b *CSRBlock) Release() {
	if b == nil {
		return
	}
	b.Values.Release()
	b.ColumnIndices.Release()
	b.RowOffsets.Release()
}

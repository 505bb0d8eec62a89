package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/internal/conv"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/policy"
	"github.com/hupe1980/tabula/resource"
	"github.com/hupe1980/tabula/table"
)

// Info describes an encoded table.
type Info struct {
	Kind        table.Kind
	Rows        int64
	Columns     int64
	DataType    dtype.DataType
	NonZeros    int64
	Compression Compression
	PayloadSize int64
	// Size is the number of bytes written, header and trailer included.
	Size     int64
	Checksum uint32
}

// Encode writes t to w. Homogeneous and CSR tables must live in
// host-accessible memory; heterogeneous tables are not supported.
//
// Payload layout, little-endian, every section 8-byte aligned:
//
//	kind u8 | dtype u8 | layout or indexing u8 | pad
//	rows u64 | cols u64 | nnz u64 (CSR only)
//	feature types (cols bytes) | pad
//	data (homogeneous) or values | column indices | row offsets (CSR)
func Encode(ctx context.Context, w io.Writer, t table.Table, opts ...Option) (info Info, err error) {
	if t == nil {
		return Info{}, core.InvalidArgumentf("nil table")
	}
	o := applyOptions(opts)
	defer func() {
		o.logger.LogArchive(ctx, "encode", t.Kind().String(), info.Size, err)
	}()

	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	w = resource.ThrottleWriter(ctx, w, o.rc)

	payload, info, err := encodePayload(t)
	if err != nil {
		return Info{}, err
	}
	stored, c, err := compress(payload, o.compression)
	if err != nil {
		return Info{}, err
	}

	header := FileHeader{
		Kind:        uint8(t.Kind()),
		Compression: uint8(c),
		PayloadSize: uint64(len(payload)),
		StoredSize:  uint64(len(stored)),
	}
	if err := WriteHeader(w, &header); err != nil {
		return Info{}, err
	}
	cw := NewChecksumWriter(w)
	if _, err := cw.Write(stored); err != nil {
		return Info{}, err
	}
	sum := cw.Sum()
	if err := binary.Write(w, binary.LittleEndian, sum); err != nil {
		return Info{}, err
	}

	info.Compression = c
	info.PayloadSize = int64(len(payload))
	info.Size = int64(HeaderSize + len(stored) + TrailerSize)
	info.Checksum = sum
	return info, nil
}

func encodePayload(t table.Table) ([]byte, Info, error) {
	if err := checkPlatform(); err != nil {
		return nil, Info{}, err
	}
	info := Info{Kind: t.Kind(), Rows: t.RowCount(), Columns: t.ColumnCount()}

	switch tt := t.(type) {
	case table.EmptyTable:
		pw := newPayloadWriter(1)
		pw.uint8(uint8(table.KindEmpty))
		return pw.Bytes(), info, nil

	case *table.Homogen:
		data, err := tt.Data().Bytes()
		if err != nil {
			return nil, Info{}, err
		}
		info.DataType = tt.DataType()
		pw := newPayloadWriter(64 + int(info.Columns) + len(data))
		writeShape(pw, t, tt.DataType(), uint8(tt.Layout()))
		pw.bytes(data)
		pw.align()
		return pw.Bytes(), info, nil

	case *table.CSR:
		values, err := tt.Values().Bytes()
		if err != nil {
			return nil, Info{}, err
		}
		colIdx, err := tt.ColumnIndices().Bytes()
		if err != nil {
			return nil, Info{}, err
		}
		rowOff, err := tt.RowOffsets().Bytes()
		if err != nil {
			return nil, Info{}, err
		}
		info.DataType = tt.DataType()
		info.NonZeros = tt.NonZeroCount()
		pw := newPayloadWriter(80 + int(info.Columns) + len(values) + len(colIdx) + len(rowOff))
		writeShape(pw, t, tt.DataType(), uint8(tt.Indexing()))
		pw.uint64(uint64(tt.NonZeroCount()))
		writeFeatureTypes(pw, t)
		for _, section := range [][]byte{values, colIdx, rowOff} {
			pw.bytes(section)
			pw.align()
		}
		return pw.Bytes(), info, nil

	case *table.Heterogen:
		return nil, Info{}, core.Unsupported("heterogen", "encode")

	default:
		return nil, Info{}, fmt.Errorf("%w: %s", ErrInvalidKind, t.Kind())
	}
}

// writeShape writes the fixed prefix. Feature types follow directly for
// homogeneous tables; CSR tables put the value count first.
func writeShape(pw *payloadWriter, t table.Table, dt dtype.DataType, flag uint8) {
	pw.uint8(uint8(t.Kind()))
	pw.uint8(uint8(dt))
	pw.uint8(flag)
	pw.align()
	pw.uint64(uint64(t.RowCount()))
	pw.uint64(uint64(t.ColumnCount()))
	if t.Kind() == table.KindHomogen {
		writeFeatureTypes(pw, t)
	}
}

func writeFeatureTypes(pw *payloadWriter, t table.Table) {
	for _, ft := range t.Metadata().FeatureTypes {
		pw.uint8(uint8(ft))
	}
	pw.align()
}

// Decode reads a table written by Encode. The table's storage is allocated
// under the configured policy, which must produce host-accessible memory.
func Decode(ctx context.Context, r io.Reader, opts ...Option) (t table.Table, err error) {
	o := applyOptions(opts)
	var size int64
	defer func() {
		name := "table"
		if t != nil {
			name = t.Kind().String()
		}
		o.logger.LogArchive(ctx, "decode", name, size, err)
	}()

	if !o.pol.Kind().HostAccessible() {
		return nil, core.Capabilityf("cannot decode into %s memory", o.pol.Kind())
	}
	avail, known := remaining(r)
	r = resource.ThrottleReader(ctx, r, o.rc)
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	payloadSize, err := sectionSize(header.PayloadSize)
	if err != nil {
		return nil, err
	}
	storedSize, err := sectionSize(header.StoredSize)
	if err != nil {
		return nil, err
	}
	if int64(payloadSize) > o.maxPayload {
		return nil, fmt.Errorf("%w: %d byte payload exceeds the %d byte limit", ErrCorrupt, payloadSize, o.maxPayload)
	}
	if known && int64(HeaderSize)+int64(storedSize)+TrailerSize > avail {
		return nil, fmt.Errorf("%w: header announces %d stored bytes, input holds %d", ErrCorrupt, storedSize, avail-HeaderSize-TrailerSize)
	}

	cr := NewChecksumReader(r)
	c := Compression(header.Compression)
	var (
		root   *memory.Buffer
		stored []byte
	)
	if c == CompressionNone && known {
		// The length is checked, so read straight into the table storage.
		if root, err = memory.Alloc(ctx, o.pol, dtype.Uint8, payloadSize); err != nil {
			return nil, err
		}
		defer root.Release()
		raw, err := root.MutableBytes()
		if err == nil {
			_, err = io.ReadFull(cr, raw)
		}
		if err != nil {
			return nil, truncated(err)
		}
	} else if stored, err = readSection(cr, storedSize); err != nil {
		return nil, err
	}

	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, truncated(err)
	}
	if err := cr.Verify(sum); err != nil {
		return nil, err
	}

	switch {
	case root != nil:
	case c == CompressionNone:
		if root, err = memory.Alloc(ctx, o.pol, dtype.Uint8, payloadSize); err != nil {
			return nil, err
		}
		defer root.Release()
		raw, err := root.MutableBytes()
		if err != nil {
			return nil, err
		}
		copy(raw, stored)
	default:
		raw, err := decompress(stored, c, payloadSize)
		if err != nil {
			return nil, err
		}
		if root, err = memory.WrapBytes(dtype.Uint8, raw, policy.Pageable, nil); err != nil {
			return nil, err
		}
		defer root.Release()
	}

	size = int64(HeaderSize+storedSize) + TrailerSize
	return decodePayload(root, header.Kind, o)
}

// remaining reports how many bytes r still holds, when r can tell.
func remaining(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len()), true
	case io.Seeker:
		cur, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		end, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false
		}
		if _, err := v.Seek(cur, io.SeekStart); err != nil {
			return 0, false
		}
		return end - cur, true
	}
	return 0, false
}

// readSection reads n bytes into a buffer that grows as data arrives, so a
// corrupt size in the header cannot force a large allocation up front.
func readSection(r io.Reader, n int) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated input", ErrCorrupt)
	}
	return err
}

func sectionSize(n uint64) (int, error) {
	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: section size %d", ErrCorrupt, n)
	}
	return conv.ToInt(int64(n))
}

// decodePayload builds a table whose storage views root. root stays owned
// by the caller; tables take their own references.
func decodePayload(root *memory.Buffer, kind uint8, o options) (table.Table, error) {
	if err := checkPlatform(); err != nil {
		return nil, err
	}
	raw, err := root.Bytes()
	if err != nil {
		return nil, err
	}
	sr := NewSliceReader(raw)
	tag, err := sr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if tag != kind {
		return nil, fmt.Errorf("%w: payload kind %d, header kind %d", ErrCorrupt, tag, kind)
	}

	switch table.Kind(tag) {
	case table.KindEmpty:
		if len(sr.Remaining()) != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes after empty table", ErrCorrupt, len(sr.Remaining()))
		}
		return table.Empty(), nil
	case table.KindHomogen:
		return decodeHomogen(root, sr, o)
	case table.KindCSR:
		return decodeCSR(root, sr, o)
	case table.KindHeterogen:
		return nil, core.Unsupported("heterogen", "decode")
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, tag)
	}
}

type shape struct {
	dt         dtype.DataType
	flag       uint8
	rows, cols int64
	nnz        int64
	features   []table.FeatureType
}

func readCount(sr *SliceReader, what string) (int64, error) {
	v, err := sr.ReadUint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s %d", ErrCorrupt, what, v)
	}
	return int64(v), nil
}

func readShape(sr *SliceReader, sparse bool) (s shape, err error) {
	dt, err := sr.ReadUint8()
	if err != nil {
		return s, err
	}
	if s.dt = dtype.DataType(dt); !s.dt.Valid() {
		return s, fmt.Errorf("%w: data type %d", ErrCorrupt, dt)
	}
	if s.flag, err = sr.ReadUint8(); err != nil {
		return s, err
	}
	if err = sr.Align(); err != nil {
		return s, err
	}
	if s.rows, err = readCount(sr, "rows"); err != nil {
		return s, err
	}
	if s.cols, err = readCount(sr, "columns"); err != nil {
		return s, err
	}
	if sparse {
		if s.nnz, err = readCount(sr, "values"); err != nil {
			return s, err
		}
	}
	ncols, err := conv.ToInt(s.cols)
	if err != nil {
		return s, err
	}
	ft, err := sr.ReadBytes(ncols)
	if err != nil {
		return s, err
	}
	s.features = make([]table.FeatureType, ncols)
	for i, f := range ft {
		s.features[i] = table.FeatureType(f)
	}
	return s, sr.Align()
}

// section returns a view of the next count elements of dt in root.
func section(root *memory.Buffer, sr *SliceReader, dt dtype.DataType, count int64) (*memory.Buffer, error) {
	n, err := conv.ByteSize(count, dt.Size())
	if err != nil {
		return nil, err
	}
	off := sr.Offset()
	if _, err := sr.ReadBytes(n); err != nil {
		return nil, err
	}
	if err := sr.Align(); err != nil {
		return nil, err
	}
	raw, err := root.Slice(off, off+n)
	if err != nil {
		return nil, err
	}
	defer raw.Release()
	return memory.Reinterpret(raw, dt)
}

func (o options) decodedTableOptions(s shape) []table.Option {
	return append(append([]table.Option(nil), o.tableOpts...), table.WithFeatureTypes(s.features...))
}

func decodeHomogen(root *memory.Buffer, sr *SliceReader, o options) (table.Table, error) {
	s, err := readShape(sr, false)
	if err != nil {
		return nil, err
	}
	count, err := conv.Mul(s.rows, s.cols)
	if err != nil {
		return nil, err
	}
	data, err := section(root, sr, s.dt, count)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	if len(sr.Remaining()) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(sr.Remaining()))
	}
	layout := table.Layout(s.flag)
	if !layout.Valid() {
		return nil, fmt.Errorf("%w: layout %d", ErrCorrupt, s.flag)
	}
	return table.NewHomogen(data, s.rows, s.cols, layout, o.decodedTableOptions(s)...)
}

func decodeCSR(root *memory.Buffer, sr *SliceReader, o options) (table.Table, error) {
	s, err := readShape(sr, true)
	if err != nil {
		return nil, err
	}
	nrowOff, err := conv.Add(s.rows, 1)
	if err != nil {
		return nil, err
	}
	values, err := section(root, sr, s.dt, s.nnz)
	if err != nil {
		return nil, err
	}
	defer values.Release()
	colIdx, err := section(root, sr, dtype.Int64, s.nnz)
	if err != nil {
		return nil, err
	}
	defer colIdx.Release()
	rowOff, err := section(root, sr, dtype.Int64, nrowOff)
	if err != nil {
		return nil, err
	}
	defer rowOff.Release()
	if len(sr.Remaining()) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(sr.Remaining()))
	}
	indexing := table.Indexing(s.flag)
	if !indexing.Valid() {
		return nil, fmt.Errorf("%w: indexing %d", ErrCorrupt, s.flag)
	}
	return table.NewCSR(values, colIdx, rowOff, s.cols, indexing, o.decodedTableOptions(s)...)
}

// SaveFile atomically writes t to path.
func SaveFile(ctx context.Context, path string, t table.Table, opts ...Option) (info Info, err error) {
	err = SaveToFile(path, func(w io.Writer) error {
		info, err = Encode(ctx, w, t, opts...)
		return err
	})
	return info, err
}

// LoadFile decodes the table stored at path into memory.
func LoadFile(ctx context.Context, path string, opts ...Option) (t table.Table, err error) {
	err = LoadFromFile(path, func(r io.Reader) error {
		t, err = Decode(ctx, r, opts...)
		return err
	})
	return t, err
}

// MapFile opens the table stored at path without copying it: the table's
// buffers are read-only views of a memory mapping that is closed once the
// table and every block aliasing it are released. Compressed files cannot
// be viewed in place and are decoded into memory instead.
func MapFile(ctx context.Context, path string, opts ...Option) (table.Table, error) {
	o := applyOptions(opts)

	m, err := openMapping(path)
	if errors.Is(err, errNoMapping) {
		return LoadFile(ctx, path, opts...)
	}
	if err != nil {
		return nil, err
	}
	data := m.data
	sr := NewSliceReader(data)
	header, err := sr.ReadFileHeader()
	if err != nil {
		_ = m.close()
		return nil, err
	}
	if Compression(header.Compression) != CompressionNone {
		defer m.close()
		return Decode(ctx, bytes.NewReader(data), opts...)
	}

	n, err := sectionSize(header.StoredSize)
	if err != nil {
		_ = m.close()
		return nil, err
	}
	stored, err := sr.ReadBytes(n)
	if err == nil {
		var trailer []byte
		if trailer, err = sr.ReadBytes(TrailerSize); err == nil {
			err = verify(Checksum(stored), binary.LittleEndian.Uint32(trailer))
		}
	}
	if err != nil {
		_ = m.close()
		return nil, err
	}

	wrapped, err := memory.WrapBytes(dtype.Uint8, stored, policy.Pageable, func() { _ = m.close() })
	if err != nil {
		_ = m.close()
		return nil, err
	}
	root := wrapped.ReadOnly()
	wrapped.Release()
	defer root.Release()

	t, err := decodePayload(root, header.Kind, o)
	o.logger.LogArchive(ctx, "map", path, int64(len(data)), err)
	return t, err
}

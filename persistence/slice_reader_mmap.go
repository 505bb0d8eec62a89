package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SliceReader provides bounds-checked reads from a byte slice.
// Decoders use it to locate sections without copying them.
type SliceReader struct {
	b   []byte
	off int
}

func NewSliceReader(b []byte) *SliceReader {
	return &SliceReader{b: b, off: 0}
}

func (r *SliceReader) Offset() int {
	if r == nil {
		return 0
	}
	return r.off
}

func (r *SliceReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > len(r.b)-r.off {
		return nil, fmt.Errorf("%w: out of bounds read (%d bytes at %d, len=%d)", ErrCorrupt, n, r.off, len(r.b))
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *SliceReader) ReadUint8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *SliceReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Align skips the zero padding up to the next section boundary.
func (r *SliceReader) Align() error {
	_, err := r.ReadBytes(padding(r.off))
	return err
}

func (r *SliceReader) Remaining() []byte {
	if r.off >= len(r.b) {
		return nil
	}
	return r.b[r.off:]
}

func (r *SliceReader) ReadFileHeader() (*FileHeader, error) {
	b, err := r.ReadBytes(HeaderSize)
	if err != nil {
		return nil, err
	}
	return ReadHeader(bytes.NewReader(b))
}

package persistence

import (
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// The trailer is a CRC32 (IEEE) over the stored payload bytes. It detects
// accidental corruption only.
var crcTable = crc32.MakeTable(crc32.IEEE)

// Checksum returns the trailer checksum of stored payload bytes.
func Checksum(stored []byte) uint32 {
	return crc32.Checksum(stored, crcTable)
}

type running struct{ h hash.Hash32 }

func newRunning() running { return running{h: crc32.New(crcTable)} }

func (r running) add(p []byte) { _, _ = r.h.Write(p) }

// Sum returns the checksum of the bytes seen so far.
func (r running) Sum() uint32 { return r.h.Sum32() }

// ChecksumWriter checksums everything written through it.
type ChecksumWriter struct {
	running
	w io.Writer
}

func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{running: newRunning(), w: w}
}

func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.add(p[:n])
	return n, err
}

// ChecksumReader checksums everything read through it.
type ChecksumReader struct {
	running
	r io.Reader
}

func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{running: newRunning(), r: r}
}

func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.add(p[:n])
	return n, err
}

// Verify compares the checksum of the bytes read so far with expected.
func (cr *ChecksumReader) Verify(expected uint32) error {
	return verify(cr.Sum(), expected)
}

func verify(actual, expected uint32) error {
	if actual == expected {
		return nil
	}
	return &ChecksumMismatchError{Expected: expected, Actual: actual}
}

// ChecksumMismatchError reports a trailer that does not match the payload.
// It matches ErrCorrupt with errors.Is.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }

// IsChecksumMismatch reports whether err is or wraps a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var mismatch *ChecksumMismatchError
	return errors.As(err, &mismatch)
}

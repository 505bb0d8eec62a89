package persistence

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
)

// WriteHeader writes the file header, stamping magic and version.
func WriteHeader(w io.Writer, header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, truncated(err)
	}
	if err := header.validate(); err != nil {
		return nil, err
	}
	return &header, nil
}

// payloadWriter appends little-endian fields to an in-memory payload and
// keeps sections aligned.
type payloadWriter struct {
	buf []byte
}

func newPayloadWriter(capacity int) *payloadWriter {
	return &payloadWriter{buf: make([]byte, 0, capacity)}
}

func (pw *payloadWriter) uint8(v uint8) { pw.buf = append(pw.buf, v) }

func (pw *payloadWriter) uint64(v uint64) {
	pw.buf = binary.LittleEndian.AppendUint64(pw.buf, v)
}

func (pw *payloadWriter) bytes(b []byte) { pw.buf = append(pw.buf, b...) }

// align pads the payload with zeros up to the next section boundary.
func (pw *payloadWriter) align() {
	for range padding(len(pw.buf)) {
		pw.buf = append(pw.buf, 0)
	}
}

func (pw *payloadWriter) Bytes() []byte { return pw.buf }

// SaveToFile is a helper to save data to a file.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile is a helper to load data from a file.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}

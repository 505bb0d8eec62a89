package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHeader_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	header := &FileHeader{Kind: 1, Compression: uint8(CompressionLZ4), PayloadSize: 128, StoredSize: 64}
	if err := WriteHeader(&buf, header); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("header size: got %d, want %d", buf.Len(), HeaderSize)
	}

	got, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if *got != *header {
		t.Errorf("header mismatch: got %+v, want %+v", *got, *header)
	}
}

func TestHeader_Validation(t *testing.T) {
	tests := []struct {
		name   string
		header FileHeader
		want   error
	}{
		{"magic", FileHeader{Magic: 0xdeadbeef, Version: Version}, ErrInvalidMagic},
		{"version", FileHeader{Magic: MagicNumber, Version: 2}, ErrInvalidVersion},
		{"compression", FileHeader{Magic: MagicNumber, Version: Version, Compression: 9}, ErrInvalidCompression},
		{"stored size", FileHeader{Magic: MagicNumber, Version: Version, PayloadSize: 8, StoredSize: 4}, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.header.validate(); !errors.Is(err, tt.want) {
				t.Errorf("validate: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSliceReader_Align(t *testing.T) {
	pw := newPayloadWriter(0)
	pw.uint8(7)
	pw.align()
	pw.uint64(42)
	if len(pw.Bytes()) != 16 {
		t.Fatalf("payload size: got %d, want 16", len(pw.Bytes()))
	}

	sr := NewSliceReader(pw.Bytes())
	if v, err := sr.ReadUint8(); err != nil || v != 7 {
		t.Fatalf("ReadUint8: got %d, %v", v, err)
	}
	if err := sr.Align(); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if v, err := sr.ReadUint64(); err != nil || v != 42 {
		t.Fatalf("ReadUint64: got %d, %v", v, err)
	}
	if _, err := sr.ReadBytes(1); !errors.Is(err, ErrCorrupt) {
		t.Errorf("read past end: got %v", err)
	}
}

func TestCompression(t *testing.T) {
	payload := bytes.Repeat([]byte("tabula"), 1024)
	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			stored, used, err := compress(payload, c)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if used != c {
				t.Fatalf("compression: got %s, want %s", used, c)
			}
			out, err := decompress(stored, used, len(payload))
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(out, payload) {
				t.Error("payload mismatch")
			}
			if _, err := decompress(stored, used, len(payload)+1); !errors.Is(err, ErrCorrupt) {
				t.Errorf("size mismatch: got %v", err)
			}
		})
	}

	// Incompressible input is stored as is.
	small := []byte{1, 2, 3}
	stored, used, err := compress(small, CompressionZSTD)
	if err != nil || used != CompressionNone || !bytes.Equal(stored, small) {
		t.Errorf("small payload: got %v %s %v", stored, used, err)
	}
}

func TestChecksumReaderWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	if _, err := cw.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	cr := NewChecksumReader(&buf)
	if _, err := io.ReadAll(cr); err != nil {
		t.Fatal(err)
	}
	if err := cr.Verify(cw.Sum()); err != nil {
		t.Errorf("Verify: %v", err)
	}
	err := cr.Verify(cw.Sum() + 1)
	if !IsChecksumMismatch(err) || !errors.Is(err, ErrCorrupt) {
		t.Errorf("Verify mismatch: got %v", err)
	}
}

func TestSaveToFile_Atomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.tbl")
	if err := SaveToFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("v1"))
		return err
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	if err := SaveToFile(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1" {
		t.Errorf("failed save replaced the file: %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

package persistence

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies tabula table files (ASCII: "TBL1").
	MagicNumber = 0x54424c31
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 32
	// TrailerSize is the size of the CRC32 trailer.
	TrailerSize = 4

	// sections inside the payload start at multiples of align so that a
	// mapped uncompressed file can be viewed in place.
	align = 8
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported version")
	ErrInvalidKind        = errors.New("invalid table kind")
	ErrInvalidCompression = errors.New("invalid compression")
	ErrCorrupt            = errors.New("corrupt table payload")
)

// FileHeader is the 32-byte header at the start of every table file.
//
// The payload that follows starts with the table kind tag, repeated from
// the header, and is followed by a CRC32 of the stored payload bytes.
type FileHeader struct {
	Magic       uint32 // 0x54424c31 ("TBL1")
	Version     uint32 // File format version
	Kind        uint8  // table.Kind
	Compression uint8  // Compression of the stored payload
	Padding1    [2]byte
	PayloadSize uint64 // Payload size before compression
	StoredSize  uint64 // Payload size as stored
	Padding2    [4]byte
}

func (h *FileHeader) validate() error {
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, h.Version)
	}
	if Compression(h.Compression) > CompressionZSTD {
		return fmt.Errorf("%w: %d", ErrInvalidCompression, h.Compression)
	}
	if h.StoredSize > h.PayloadSize {
		return fmt.Errorf("%w: stored %d bytes exceed the %d byte payload", ErrCorrupt, h.StoredSize, h.PayloadSize)
	}
	if Compression(h.Compression) == CompressionNone && h.PayloadSize != h.StoredSize {
		return fmt.Errorf("%w: stored %d bytes for a %d byte payload", ErrCorrupt, h.StoredSize, h.PayloadSize)
	}
	return nil
}

func padding(n int) int {
	return (align - n%align) % align
}

package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every tabula package.
//
// All errors returned by buffers, chunked arrays, tables and the conversion
// engine satisfy errors.Is against exactly one of these sentinels.
var (
	// ErrDomain is returned for values outside the valid domain of an operation:
	// non-positive row/column counts, unsupported data layouts, unsupported
	// indexing modes, columns of unequal length.
	ErrDomain = errors.New("domain error")

	// ErrRange is returned when a row/column range exceeds the table extent or a
	// pushed block does not match the destination size.
	ErrRange = errors.New("range error")

	// ErrInvalidArgument is returned for unsupported conversion pairs,
	// incompatible reinterpretation sizes and unsupported allocation kinds.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOverflow is returned when count, size or stride arithmetic would
	// exceed the addressable range.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnsupported is returned for operations a backend does not implement.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrCapability is returned when the memory behind a buffer does not offer
	// the requested access (mutable view of read-only memory, host view of
	// accelerator-only memory).
	ErrCapability = errors.New("capability error")

	// ErrClosed is returned when using a released buffer or a closed queue.
	ErrClosed = errors.New("closed")
)

// RangeError describes a range that does not fit its extent.
type RangeError struct {
	What   string
	Start  int64
	End    int64
	Extent int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s range [%d, %d) exceeds extent %d", e.What, e.Start, e.End, e.Extent)
}

// Is reports ErrRange.
func (e *RangeError) Is(target error) bool { return target == ErrRange }

// SizeMismatchError is returned when a pushed block size differs from the
// destination element count.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("block size mismatch: expected %d elements, got %d", e.Expected, e.Actual)
}

// Is reports ErrRange.
func (e *SizeMismatchError) Is(target error) bool { return target == ErrRange }

// OverflowError describes the operation whose result overflowed.
type OverflowError struct {
	Op string
	A  int64
	B  int64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("integer overflow: %d %s %d", e.A, e.Op, e.B)
}

// Is reports ErrOverflow.
func (e *OverflowError) Is(target error) bool { return target == ErrOverflow }

// ConversionError is returned for an unsupported element type pair.
type ConversionError struct {
	From fmt.Stringer
	To   fmt.Stringer
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("unsupported conversion from %v to %v", e.From, e.To)
}

// Is reports ErrInvalidArgument.
func (e *ConversionError) Is(target error) bool { return target == ErrInvalidArgument }

// UnsupportedError names the backend and the operation it does not implement.
type UnsupportedError struct {
	Backend string
	Op      string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.Backend, e.Op)
}

// Is reports ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// Domainf returns an ErrDomain-wrapping error.
func Domainf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// InvalidArgumentf returns an ErrInvalidArgument-wrapping error.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Capabilityf returns an ErrCapability-wrapping error.
func Capabilityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCapability, fmt.Sprintf(format, args...))
}

// Unsupported returns an UnsupportedError.
func Unsupported(backend, op string) error {
	return &UnsupportedError{Backend: backend, Op: op}
}

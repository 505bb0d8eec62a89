// Package dtype defines the closed set of numeric element types a table can
// store and the mapping between Go types and their runtime tags.
package dtype

import (
	"fmt"
	"unsafe"
)

// Element is the constraint satisfied by every supported Go element type.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// DataType is the runtime tag of an element type.
type DataType uint8

// Supported element types. Invalid is the zero value.
const (
	Invalid DataType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

// Count is the number of valid data types; valid tags are in [1, Count].
const Count = int(Float64)

var names = [...]string{
	Invalid: "invalid",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
}

var sizes = [...]int{
	Int8: 1, Int16: 2, Int32: 4, Int64: 8,
	Uint8: 1, Uint16: 2, Uint32: 4, Uint64: 8,
	Float32: 4, Float64: 8,
}

// Valid reports whether dt is one of the supported element types.
func (dt DataType) Valid() bool {
	return dt > Invalid && dt <= Float64
}

// Size returns the byte size of one element, or 0 for an invalid tag.
func (dt DataType) Size() int {
	if !dt.Valid() {
		return 0
	}
	return sizes[dt]
}

// IsInteger reports whether dt is a signed or unsigned integer type.
func (dt DataType) IsInteger() bool {
	return dt >= Int8 && dt <= Uint64
}

// IsSigned reports whether dt can represent negative values.
func (dt DataType) IsSigned() bool {
	return (dt >= Int8 && dt <= Int64) || dt.IsFloat()
}

// IsFloat reports whether dt is a floating-point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// String returns the Go name of the type.
func (dt DataType) String() string {
	if int(dt) < len(names) {
		return names[dt]
	}
	return fmt.Sprintf("dtype(%d)", uint8(dt))
}

// Parse returns the DataType for a Go type name as produced by String.
func Parse(s string) (DataType, bool) {
	for i, n := range names {
		if i > 0 && n == s {
			return DataType(i), true
		}
	}
	return Invalid, false
}

// Widens reports whether every value of from is exactly representable in to.
func Widens(from, to DataType) bool {
	if from == to {
		return from.Valid()
	}
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch {
	case to.IsFloat():
		// float64 holds every integer up to 2^53, float32 up to 2^24.
		mantissa := 24
		if to == Float64 {
			mantissa = 53
		}
		if from.IsFloat() {
			return from.Size() < to.Size()
		}
		bits := from.Size() * 8
		if from.IsSigned() {
			bits--
		}
		return bits <= mantissa
	case from.IsFloat():
		return false
	case from.IsSigned() == to.IsSigned():
		return from.Size() < to.Size()
	case !from.IsSigned() && to.IsSigned():
		return from.Size() < to.Size()
	default:
		return false
	}
}

// Of returns the DataType tag for T.
func Of[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	// Named types built on a supported kind: fall back to the size and the
	// float/signed probes.
	return ofUnderlying[T]()
}

func ofUnderlying[T Element]() DataType {
	var zero T
	size := int(unsafe.Sizeof(zero))
	minusOne := T(0)
	minusOne--
	isFloat := T(1)/T(2) != 0
	switch {
	case isFloat && size == 4:
		return Float32
	case isFloat:
		return Float64
	case minusOne < 0:
		switch size {
		case 1:
			return Int8
		case 2:
			return Int16
		case 4:
			return Int32
		default:
			return Int64
		}
	default:
		switch size {
		case 1:
			return Uint8
		case 2:
			return Uint16
		case 4:
			return Uint32
		default:
			return Uint64
		}
	}
}

// All returns every valid data type in tag order.
func All() []DataType {
	out := make([]DataType, 0, Count)
	for dt := Int8; dt <= Float64; dt++ {
		out = append(out, dt)
	}
	return out
}

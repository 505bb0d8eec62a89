package table

import (
	"fmt"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
)

// FeatureType is the measurement scale of a column.
type FeatureType uint8

const (
	Nominal FeatureType = iota
	Ordinal
	Interval
	Ratio
)

func (f FeatureType) String() string {
	switch f {
	case Nominal:
		return "nominal"
	case Ordinal:
		return "ordinal"
	case Interval:
		return "interval"
	case Ratio:
		return "ratio"
	default:
		return fmt.Sprintf("feature(%d)", uint8(f))
	}
}

// Valid reports whether f is a known feature type.
func (f FeatureType) Valid() bool { return f <= Ratio }

// DefaultFeatureType is ratio for floating point and ordinal for integers.
func DefaultFeatureType(dt dtype.DataType) FeatureType {
	if dt.IsFloat() {
		return Ratio
	}
	return Ordinal
}

// Metadata describes each column of a table.
type Metadata struct {
	DataTypes    []dtype.DataType
	FeatureTypes []FeatureType
}

func uniformMetadata(dt dtype.DataType, cols int64) Metadata {
	m := Metadata{
		DataTypes:    make([]dtype.DataType, cols),
		FeatureTypes: make([]FeatureType, cols),
	}
	for i := range m.DataTypes {
		m.DataTypes[i] = dt
		m.FeatureTypes[i] = DefaultFeatureType(dt)
	}
	return m
}

// ColumnCount returns the number of described columns.
func (m Metadata) ColumnCount() int { return len(m.DataTypes) }

// Validate checks that m describes cols columns with valid types.
func (m Metadata) Validate(cols int64) error {
	if int64(len(m.DataTypes)) != cols || int64(len(m.FeatureTypes)) != cols {
		return core.Domainf("metadata describes %d/%d columns, table has %d",
			len(m.DataTypes), len(m.FeatureTypes), cols)
	}
	for i, dt := range m.DataTypes {
		if !dt.Valid() {
			return core.Domainf("column %d has invalid data type %s", i, dt)
		}
		if !m.FeatureTypes[i].Valid() {
			return core.Domainf("column %d has invalid feature type %s", i, m.FeatureTypes[i])
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	return Metadata{
		DataTypes:    append([]dtype.DataType(nil), m.DataTypes...),
		FeatureTypes: append([]FeatureType(nil), m.FeatureTypes...),
	}
}

package persistence

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var errNoMapping = errors.New("mapped region not accessible")

// mapping is a read-only memory mapping of a table file. Slices of data are
// invalid once the mapping is closed.
type mapping struct {
	r    *mmap.ReaderAt
	data []byte
}

func openMapping(path string) (*mapping, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mappedBytes(r)
	if err == nil && len(data) < HeaderSize+TrailerSize {
		err = fmt.Errorf("%w: %d byte file is shorter than header and trailer", ErrCorrupt, len(data))
	}
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &mapping{r: r, data: data}, nil
}

func (m *mapping) close() error {
	m.data = nil
	return m.r.Close()
}

// mappedBytes returns the region behind r, which mmap.ReaderAt keeps in an
// unexported field.
func mappedBytes(r *mmap.ReaderAt) ([]byte, error) {
	f := reflect.ValueOf(r).Elem().FieldByName("data")
	if !f.IsValid() || f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.Uint8 {
		return nil, errNoMapping
	}
	return unsafe.Slice((*byte)(f.UnsafePointer()), f.Len()), nil
}

package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryStore keeps blobs in a map. It is meant for tests and for catalogs
// that live only as long as the process.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var (
	_ BlobStore         = (*MemoryStore)(nil)
	_ ConditionalPutter = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Open returns a Mappable blob sharing the stored bytes. Stored slices are
// never modified, only replaced.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return memBlob(data), nil
}

// Create buffers writes; the blob is stored on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memWriter{store: m, name: name}, nil
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.store(name, bytes.Clone(data), false)
	return nil
}

func (m *MemoryStore) PutIfNotExists(_ context.Context, name string, data []byte) error {
	if !m.store(name, bytes.Clone(data), true) {
		return fmt.Errorf("%w: %s", ErrConflict, name)
	}
	return nil
}

// store reports false when exclusive is set and name is taken.
func (m *MemoryStore) store(name string, data []byte, exclusive bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.blobs[name]; taken && exclusive {
		return false
	}
	m.blobs[name] = data
	return true
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	var names []string
	for name := range m.blobs {
		if hasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

// memBlob is a stored blob; it needs no cleanup.
type memBlob []byte

func (b memBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return bytes.NewReader(b).ReadAt(p, off)
}

func (b memBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	return readRange(b, off, length)
}

func (b memBlob) Bytes() ([]byte, error) { return b, nil }
func (b memBlob) Size() int64            { return int64(len(b)) }
func (memBlob) Close() error             { return nil }

type memWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Sync() error                 { return nil }

func (w *memWriter) Close() error {
	w.store.store(w.name, bytes.Clone(w.buf.Bytes()), false)
	return nil
}

// readRange serves ReadRange for blobs held in memory.
func readRange(data []byte, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	}
	if off >= int64(len(data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

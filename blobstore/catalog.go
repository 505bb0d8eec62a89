package blobstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/tabula/codec"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/logging"
	"github.com/hupe1980/tabula/persistence"
	"github.com/hupe1980/tabula/table"
)

const (
	dataSuffix     = ".tbl"
	manifestSuffix = ".manifest.json"
)

// Manifest describes a table stored in a Catalog.
type Manifest struct {
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	Rows         int64     `json:"rows"`
	Columns      int64     `json:"columns"`
	DataTypes    []string  `json:"dtypes,omitempty"`
	FeatureTypes []string  `json:"feature_types,omitempty"`
	NonZeros     int64     `json:"nnz,omitempty"`
	Compression  string    `json:"compression"`
	Size         int64     `json:"size"`
	Checksum     uint32    `json:"checksum"`
	Codec        string    `json:"codec"`
	CreatedAt    time.Time `json:"created_at"`
}

// Catalog stores named tables in a BlobStore. Each table is one blob in the
// persistence file format plus a manifest blob. The manifest is written
// last, so a table is listed only once its data is complete.
type Catalog struct {
	store     BlobStore
	prefix    string
	codec     codec.Codec
	persist   []persistence.Option
	logger    *logging.Logger
	exclusive bool
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithPrefix sets the blob name prefix of the catalog. Default: "tables/".
func WithPrefix(prefix string) CatalogOption {
	return func(c *Catalog) { c.prefix = prefix }
}

// WithCodec sets the manifest codec. Default: codec.Default.
func WithCodec(cd codec.Codec) CatalogOption {
	return func(c *Catalog) { c.codec = cd }
}

// WithPersistenceOptions sets encode and decode options, for example the
// payload compression.
func WithPersistenceOptions(opts ...persistence.Option) CatalogOption {
	return func(c *Catalog) { c.persist = append(c.persist, opts...) }
}

// WithLogger sets the logger for catalog operations.
func WithLogger(l *logging.Logger) CatalogOption {
	return func(c *Catalog) { c.logger = l }
}

// WithNoOverwrite makes Save fail with ErrConflict when the name is taken.
func WithNoOverwrite() CatalogOption {
	return func(c *Catalog) { c.exclusive = true }
}

// NewCatalog creates a catalog over store.
func NewCatalog(store BlobStore, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		store:  store,
		prefix: "tables/",
		codec:  codec.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNoop(c.logger)
	return c
}

func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return core.InvalidArgumentf("invalid table name %q", name)
	}
	return nil
}

func (c *Catalog) dataName(name string) string     { return path.Join(c.prefix, name+dataSuffix) }
func (c *Catalog) manifestName(name string) string { return path.Join(c.prefix, name+manifestSuffix) }

// Save stores t under name, replacing an existing table unless the catalog
// was created WithNoOverwrite.
func (c *Catalog) Save(ctx context.Context, name string, t table.Table) (m *Manifest, err error) {
	defer func() {
		var size int64
		if m != nil {
			size = m.Size
		}
		c.logger.LogArchive(ctx, "save", name, size, err)
	}()

	if err := validateName(name); err != nil {
		return nil, err
	}
	cp, conditional := c.store.(ConditionalPutter)
	if c.exclusive && !conditional {
		switch _, err := c.Stat(ctx, name); {
		case err == nil:
			return nil, fmt.Errorf("%w: %s", ErrConflict, name)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	var buf bytes.Buffer
	info, err := persistence.Encode(ctx, &buf, t, c.persist...)
	if err != nil {
		return nil, err
	}

	meta := t.Metadata()
	m = &Manifest{
		Name:        name,
		Kind:        info.Kind.String(),
		Rows:        info.Rows,
		Columns:     info.Columns,
		NonZeros:    info.NonZeros,
		Compression: info.Compression.String(),
		Size:        info.Size,
		Checksum:    info.Checksum,
		Codec:       c.codec.Name(),
		CreatedAt:   time.Now().UTC(),
	}
	for i := range meta.DataTypes {
		m.DataTypes = append(m.DataTypes, meta.DataTypes[i].String())
		m.FeatureTypes = append(m.FeatureTypes, meta.FeatureTypes[i].String())
	}
	manifest, err := c.codec.Marshal(m)
	if err != nil {
		return nil, err
	}

	if err := c.putData(ctx, cp, name, buf.Bytes()); err != nil {
		return nil, err
	}
	if c.exclusive && conditional {
		err = cp.PutIfNotExists(ctx, c.manifestName(name), manifest)
		if errors.Is(err, ErrConflict) {
			err = fmt.Errorf("%w: %s", ErrConflict, name)
		}
	} else {
		err = c.store.Put(ctx, c.manifestName(name), manifest)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// putData writes the data blob. In exclusive mode with a conditional store
// the blob is created only if absent; an existing blob without a manifest is
// left over from an interrupted save and may be replaced.
func (c *Catalog) putData(ctx context.Context, cp ConditionalPutter, name string, data []byte) error {
	if !c.exclusive || cp == nil {
		return c.store.Put(ctx, c.dataName(name), data)
	}
	err := cp.PutIfNotExists(ctx, c.dataName(name), data)
	if !errors.Is(err, ErrConflict) {
		return err
	}
	switch _, err := c.Stat(ctx, name); {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrConflict, name)
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return c.store.Put(ctx, c.dataName(name), data)
}

// Stat returns the manifest of the named table.
func (c *Catalog) Stat(ctx context.Context, name string) (*Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := c.readAll(ctx, c.manifestName(name))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := c.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest of %s: %v", persistence.ErrCorrupt, name, err)
	}
	if m.Codec != "" {
		if _, ok := codec.ByName(m.Codec); !ok {
			return nil, fmt.Errorf("manifest of %s: unknown codec %q", name, m.Codec)
		}
	}
	return &m, nil
}

func (c *Catalog) readAll(ctx context.Context, blobName string) ([]byte, error) {
	b, err := c.store.Open(ctx, blobName)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return io.ReadAll(NewReader(ctx, b))
}

// Load decodes the named table. opts are applied after the catalog's
// persistence options.
func (c *Catalog) Load(ctx context.Context, name string, opts ...persistence.Option) (t table.Table, err error) {
	var size int64
	defer func() { c.logger.LogArchive(ctx, "load", name, size, err) }()

	m, err := c.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	b, err := c.store.Open(ctx, c.dataName(name))
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if b.Size() != m.Size {
		return nil, fmt.Errorf("%w: %s holds %d bytes, manifest records %d", persistence.ErrCorrupt, name, b.Size(), m.Size)
	}
	var trailer [persistence.TrailerSize]byte
	if _, err := b.ReadAt(ctx, trailer[:], m.Size-persistence.TrailerSize); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if sum := binary.LittleEndian.Uint32(trailer[:]); sum != m.Checksum {
		return nil, &persistence.ChecksumMismatchError{Expected: m.Checksum, Actual: sum}
	}

	all := append(append([]persistence.Option(nil), c.persist...), opts...)
	t, err = persistence.Decode(ctx, NewReader(ctx, b), all...)
	if err != nil {
		return nil, err
	}
	size = m.Size
	return t, nil
}

// List returns the sorted names of all complete tables.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	prefix := c.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	blobs, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range blobs {
		if name, ok := strings.CutSuffix(strings.TrimPrefix(b, prefix), manifestSuffix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named table. The manifest goes first so that readers
// never see a manifest without data.
func (c *Catalog) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, c.manifestName(name)); err != nil {
		return err
	}
	err := c.store.Delete(ctx, c.dataName(name))
	c.logger.LogArchive(ctx, "delete", name, 0, err)
	return err
}

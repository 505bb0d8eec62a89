package persistence

import (
	"github.com/hupe1980/tabula/logging"
	"github.com/hupe1980/tabula/policy"
	"github.com/hupe1980/tabula/resource"
	"github.com/hupe1980/tabula/table"
)

// Option configures encoding and decoding.
type Option func(*options)

type options struct {
	compression Compression
	pol         policy.Policy
	tableOpts   []table.Option
	logger      *logging.Logger
	rc          *resource.Controller
	maxPayload  int64
}

// DefaultMaxPayloadSize is the largest payload Decode accepts by default.
const DefaultMaxPayloadSize = 16 << 30

// WithCompression compresses the payload on encode. Decoding detects the
// compression from the header. Default: CompressionNone.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithPolicy sets where decoded tables are allocated. The allocation kind
// must be host-accessible. Default: policy.Host().
func WithPolicy(p policy.Policy) Option {
	return func(o *options) { o.pol = p }
}

// WithTableOptions passes construction options to decoded tables.
func WithTableOptions(opts ...table.Option) Option {
	return func(o *options) { o.tableOpts = append(o.tableOpts, opts...) }
}

// WithLogger sets the logger for encode and decode events.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithResourceController throttles the encoded byte stream by the
// controller's transfer limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithMaxPayloadSize bounds the payload size Decode accepts from a header.
// Default: DefaultMaxPayloadSize.
func WithMaxPayloadSize(n int64) Option {
	return func(o *options) { o.maxPayload = n }
}

func applyOptions(opts []Option) options {
	o := options{
		compression: CompressionNone,
		pol:         policy.Host(),
		maxPayload:  DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNoop(o.logger)
	return o
}

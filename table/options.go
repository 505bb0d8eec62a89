package table

import (
	"context"
	"time"

	"github.com/hupe1980/tabula/convert"
	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/logging"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/metrics"
	"github.com/hupe1980/tabula/policy"
)

// Option configures a table at construction.
type Option func(*options)

type options struct {
	engine       *convert.Engine
	logger       *logging.Logger
	metrics      metrics.Collector
	featureTypes []FeatureType
}

// WithEngine sets the conversion engine used for copying pulls and pushes
// (default: convert.Default()).
func WithEngine(e *convert.Engine) Option {
	return func(o *options) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithLogger sets the logger (default: no logging).
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = logging.OrNoop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) { o.metrics = metrics.OrNoop(c) }
}

// WithFeatureTypes sets one feature type per column, overriding the
// defaults derived from the element types.
func WithFeatureTypes(ft ...FeatureType) Option {
	return func(o *options) { o.featureTypes = append([]FeatureType(nil), ft...) }
}

func applyOptions(opts []Option) options {
	o := options{
		engine:  convert.Default(),
		logger:  logging.NoopLogger(),
		metrics: metrics.NoopCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AccessOption configures a single pull or push.
type AccessOption func(*access)

type access struct {
	pol     policy.Policy
	mutable bool
}

// WithPolicy sets the execution policy of the access (default: host).
func WithPolicy(p policy.Policy) AccessOption {
	return func(a *access) { a.pol = p }
}

// WithMutable requests a writable block. An aliased block is writable only
// when the table storage is; otherwise the pull copies.
func WithMutable() AccessOption {
	return func(a *access) { a.mutable = true }
}

func applyAccess(opts []AccessOption) access {
	a := access{pol: policy.Host()}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// base carries what every backend shares: metadata, observability and the
// conversion engine.
type base struct {
	kind    Kind
	meta    Metadata
	engine  *convert.Engine
	logger  *logging.Logger
	metrics metrics.Collector
}

func newBase(kind Kind, meta Metadata, o options) (base, error) {
	if o.featureTypes != nil {
		if len(o.featureTypes) != len(meta.DataTypes) {
			return base{}, core.Domainf("%d feature types for %d columns", len(o.featureTypes), len(meta.DataTypes))
		}
		meta.FeatureTypes = o.featureTypes
	}
	if err := meta.Validate(int64(len(meta.DataTypes))); err != nil {
		return base{}, err
	}
	return base{
		kind:    kind,
		meta:    meta,
		engine:  o.engine,
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// Kind returns the backend tag.
func (b *base) Kind() Kind { return b.kind }

// Metadata returns a copy of the column metadata.
func (b *base) Metadata() Metadata { return b.meta.Clone() }

// ColumnCount returns the number of columns.
func (b *base) ColumnCount() int64 { return int64(len(b.meta.DataTypes)) }

func (b *base) observePull(ctx context.Context, dt dtype.DataType, start, end int64, out *memory.Buffer, aliased bool, began time.Time, err error) {
	n := 0
	if out != nil {
		n = out.Count()
	}
	b.logger.LogPull(ctx, b.kind.String(), dt.String(), start, end, aliased, err)
	b.metrics.RecordPull(b.kind.String(), n, aliased, time.Since(began), err)
}

func (b *base) observePush(ctx context.Context, block *memory.Buffer, start, end int64, began time.Time, err error) {
	n, dt := 0, "unknown"
	if block != nil {
		n, dt = block.Count(), block.DataType().String()
	}
	b.logger.LogPush(ctx, b.kind.String(), dt, start, end, err)
	b.metrics.RecordPush(b.kind.String(), n, time.Since(began), err)
}

// aliasable reports whether a block of storage can be handed out as a view
// for this access.
func (a access) aliasable(storage *memory.Buffer, dt dtype.DataType) bool {
	if storage.DataType() != dt || policy.NeedsCopy(storage.Kind(), a.pol.Kind()) {
		return false
	}
	return !a.mutable || storage.Mutable()
}

// view returns storage[off, off+n) tagged per the requested mutability.
func (a access) view(storage *memory.Buffer, off, n int) (*memory.Buffer, error) {
	if n == 0 {
		off = 0
	}
	v, err := storage.Slice(off, off+n)
	if err != nil {
		return nil, err
	}
	if a.mutable {
		return v, nil
	}
	ro := v.ReadOnly()
	v.Release()
	return ro, nil
}

// fill allocates a block and runs jobs whose Dst is nil into it.
func (b *base) fill(ctx context.Context, pol policy.Policy, dt dtype.DataType, n int, jobs []convert.Job) (*memory.Buffer, *policy.Event, error) {
	out, err := memory.Alloc(ctx, pol, dt, n)
	if err != nil {
		return nil, nil, err
	}
	for i := range jobs {
		jobs[i].Dst = out
	}
	ev, err := b.engine.Run(ctx, pol, jobs...)
	if err != nil {
		out.Release()
		return nil, nil, err
	}
	return out, ev, nil
}

func checkPushTarget(storage *memory.Buffer) error {
	if !storage.Mutable() {
		return core.Capabilityf("table storage is read-only")
	}
	return nil
}

func checkBlockSize(block *memory.Buffer, want int64) error {
	if block == nil {
		return core.InvalidArgumentf("nil block")
	}
	if int64(block.Count()) != want {
		return &core.SizeMismatchError{Expected: want, Actual: int64(block.Count())}
	}
	return nil
}

// releaseAfter runs fn once ev completes.
func releaseAfter(ev *policy.Event, fn func()) {
	if done, _ := ev.Status(); done {
		fn()
		return
	}
	go func() {
		_ = ev.Wait()
		fn()
	}()
}

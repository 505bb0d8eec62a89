package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/tabula/core"
	"github.com/hupe1980/tabula/dtype"
	"github.com/hupe1980/tabula/logging"
	"github.com/hupe1980/tabula/memory"
	"github.com/hupe1980/tabula/metrics"
	"github.com/hupe1980/tabula/policy"
	"github.com/hupe1980/tabula/resource"
)

// DefaultParallelThreshold is the number of elements a host group must reach
// before it is split across workers.
const DefaultParallelThreshold = 1 << 16

// Engine executes batches of conversion jobs.
//
// An Engine is safe for concurrent use. The zero value is not usable; call
// New or use Default.
type Engine struct {
	logger    *logging.Logger
	metrics   metrics.Collector
	pool      *policy.WorkerPool
	rc        *resource.Controller
	threshold int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger (default: no logging).
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNoop(l) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) { e.metrics = metrics.OrNoop(c) }
}

// WithWorkerPool sets the pool used for host fan-out when the policy of a
// call carries none.
func WithWorkerPool(p *policy.WorkerPool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithResourceController bounds concurrent parallel conversions by the
// controller's worker slots, charges staging scratch memory and throttles
// host/device transfers. A policy's own controller takes precedence.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) { e.rc = rc }
}

// WithParallelThreshold sets the group size, in elements, from which host
// conversions fan out. n <= 0 disables fan-out.
func WithParallelThreshold(n int) Option {
	return func(e *Engine) { e.threshold = n }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    logging.NoopLogger(),
		metrics:   metrics.NoopCollector{},
		threshold: DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Default returns the shared default Engine.
func Default() *Engine { return defaultEngine }

type pair struct{ from, to dtype.DataType }

type group struct {
	pair
	k    kernel
	jobs []Job
}

// groupJobs buckets jobs by element type pair, keeping first-seen order.
func groupJobs(jobs []Job) []*group {
	var groups []*group
	index := make(map[pair]*group)
	for _, j := range jobs {
		p := pair{j.Src.DataType(), j.Dst.DataType()}
		g, ok := index[p]
		if !ok {
			g = &group{pair: p, k: lookup(p.from, p.to)}
			index[p] = g
			groups = append(groups, g)
		}
		g.jobs = append(g.jobs, j)
	}
	return groups
}

// Run validates and executes jobs under pol.
//
// Every job is checked before any memory is touched. Jobs are grouped by
// element type pair and each group is dispatched once to a specialized
// kernel. Under a host policy Run returns after the work is done; under a
// queue policy it returns once the work is enqueued, and the event reports
// completion. Jobs must not overlap in their destination ranges.
func (e *Engine) Run(ctx context.Context, pol policy.Policy, jobs ...Job) (*policy.Event, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	device := false
	for i, j := range jobs {
		if err := j.validate(); err != nil {
			return nil, fmt.Errorf("conversion job %d: %w", i, err)
		}
		if j.Src.Kind().DeviceResident() || j.Dst.Kind().DeviceResident() {
			device = true
		}
	}
	if device && pol.IsHost() {
		return nil, core.Capabilityf("device memory can only be converted under a queue policy")
	}

	groups := groupJobs(jobs)
	return e.submit(ctx, pol, func(ctx context.Context) error {
		for _, g := range groups {
			if err := e.runGroup(ctx, pol, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// submit runs task under pol. Queued tasks are detached from ctx
// cancellation: once issued they run to completion.
func (e *Engine) submit(ctx context.Context, pol policy.Policy, task func(context.Context) error) (*policy.Event, error) {
	if pol.IsHost() {
		ev := pol.Submit(func() error { return task(ctx) })
		if err := ev.Wait(); err != nil {
			return nil, err
		}
		return ev, nil
	}
	detached := context.WithoutCancel(ctx)
	return pol.Submit(func() error { return task(detached) }), nil
}

func (e *Engine) runGroup(ctx context.Context, pol policy.Policy, g *group) error {
	start := time.Now()
	var (
		host     []Job
		elements int
	)
	for _, j := range g.jobs {
		elements += j.Count
		if j.Src.Kind().HostAccessible() && j.Dst.Kind().HostAccessible() {
			host = append(host, j)
			continue
		}
		if err := e.runStaged(ctx, pol, g.k, j); err != nil {
			return err
		}
	}
	parallel, err := e.runHost(ctx, pol, g, host)
	if err != nil {
		return err
	}
	e.logger.LogConversion(ctx, g.from.String(), g.to.String(), len(g.jobs), elements, parallel)
	e.metrics.RecordConversion(g.from.String(), g.to.String(), elements, time.Since(start))
	return nil
}

// runHost converts host-accessible jobs, fanning out over workers once the
// group is large enough. It reports whether it fanned out.
func (e *Engine) runHost(ctx context.Context, pol policy.Policy, g *group, jobs []Job) (bool, error) {
	total := 0
	for _, j := range jobs {
		total += j.Count
	}
	if e.threshold <= 0 || total < e.threshold {
		for _, j := range jobs {
			if err := g.k(j.Dst, j.Src, j.span()); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	rc := e.resources(pol)
	if err := rc.AcquireWorker(ctx); err != nil {
		return false, err
	}
	defer rc.ReleaseWorker()

	pool := pol.Workers()
	if pool == nil {
		pool = e.pool
	}
	grain := policy.Capabilities().GrainSize(g.from.Size() + g.to.Size())

	if len(jobs) == 1 {
		j := jobs[0]
		s := j.span()
		return true, policy.ParallelFor(ctx, pool, s.n, grain, func(lo, hi int) error {
			return g.k(j.Dst, j.Src, s.sub(lo, hi))
		})
	}
	perJob := max(1, grain/max(1, total/len(jobs)))
	return true, policy.ParallelFor(ctx, pool, len(jobs), perJob, func(lo, hi int) error {
		for _, j := range jobs[lo:hi] {
			if err := g.k(j.Dst, j.Src, j.span()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) resources(pol policy.Policy) *resource.Controller {
	if rc := pol.Resources(); rc != nil {
		return rc
	}
	return e.rc
}

// Copy copies src into dst. Both must hold the same element type and count.
func (e *Engine) Copy(ctx context.Context, pol policy.Policy, dst, src *memory.Buffer) (*policy.Event, error) {
	if src.DataType() != dst.DataType() {
		return nil, core.InvalidArgumentf("copy between %s and %s buffers", src.DataType(), dst.DataType())
	}
	if src.Count() != dst.Count() {
		return nil, &core.SizeMismatchError{Expected: int64(dst.Count()), Actual: int64(src.Count())}
	}
	return e.Run(ctx, pol, Job{Src: src, Dst: dst, Count: src.Count()})
}

// Materialize returns a new buffer of element type dt and pol.Kind() holding
// src converted element by element.
func (e *Engine) Materialize(ctx context.Context, pol policy.Policy, src *memory.Buffer, dt dtype.DataType) (*memory.Buffer, *policy.Event, error) {
	dst, err := memory.Alloc(ctx, pol, dt, src.Count())
	if err != nil {
		return nil, nil, err
	}
	ev, err := e.Run(ctx, pol, Job{Src: src, Dst: dst, Count: src.Count()})
	if err != nil {
		dst.Release()
		return nil, nil, err
	}
	return dst, ev, nil
}

// ShiftValues adds shift to every element of the integer buffer b. A zero
// shift returns at once without touching b.
func (e *Engine) ShiftValues(ctx context.Context, pol policy.Policy, b *memory.Buffer, shift int64) (*policy.Event, error) {
	if shift == 0 {
		return nil, nil
	}
	dt := b.DataType()
	if !dt.IsInteger() {
		return nil, core.InvalidArgumentf("cannot shift %s values", dt)
	}
	if b.Released() {
		return nil, core.ErrClosed
	}
	if !b.Mutable() {
		return nil, core.Capabilityf("shift target is read-only")
	}
	if b.Kind().DeviceResident() && pol.IsHost() {
		return nil, core.Capabilityf("device memory can only be shifted under a queue policy")
	}

	k := shiftKernels[dt]
	return e.submit(ctx, pol, func(ctx context.Context) error {
		n := b.Count()
		if e.threshold <= 0 || n < e.threshold {
			return k(b, shift, 0, n)
		}
		pool := pol.Workers()
		if pool == nil {
			pool = e.pool
		}
		grain := policy.Capabilities().GrainSize(2 * dt.Size())
		return policy.ParallelFor(ctx, pool, n, grain, func(lo, hi int) error {
			return k(b, shift, lo, hi)
		})
	})
}

package policy

import (
	"context"
	"slices"

	"github.com/hupe1980/tabula/resource"
)

// Policy says where an operation runs and where the memory it produces lives.
//
// A Policy is a small value. The zero Policy runs synchronously on the host
// and allocates pageable host memory.
type Policy struct {
	kind  AllocKind
	queue Queue
	deps  []*Event
	pool  *WorkerPool
	rc    *resource.Controller
}

// Option configures a Policy.
type Option func(*Policy)

// WithWorkerPool sets the pool host conversions fan out over.
func WithWorkerPool(pool *WorkerPool) Option {
	return func(p *Policy) { p.pool = pool }
}

// WithResourceController charges host allocations made under the policy to rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(p *Policy) { p.rc = rc }
}

// Host returns a synchronous host policy producing pageable host memory.
func Host(opts ...Option) Policy {
	p := Policy{kind: Pageable}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// OnQueue returns a policy whose operations are submitted to q and whose
// allocations have the given kind.
func OnQueue(q Queue, kind AllocKind, opts ...Option) Policy {
	p := Policy{kind: kind, queue: q}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Kind returns the allocation kind of memory produced under p.
func (p Policy) Kind() AllocKind { return p.kind }

// Queue returns the queue operations are submitted to, or nil for host.
func (p Policy) Queue() Queue { return p.queue }

// IsHost reports whether operations run synchronously on the calling goroutine.
func (p Policy) IsHost() bool { return p.queue == nil }

// Workers returns the worker pool for host fan-out (may be nil).
func (p Policy) Workers() *WorkerPool { return p.pool }

// Resources returns the resource controller (may be nil).
func (p Policy) Resources() *resource.Controller { return p.rc }

// Dependencies returns the events operations under p must wait for.
func (p Policy) Dependencies() []*Event { return p.deps }

// WithKind returns a copy of p producing memory of kind k.
func (p Policy) WithKind(k AllocKind) Policy {
	p.kind = k
	return p
}

// After returns a copy of p whose operations additionally wait for events.
func (p Policy) After(events ...*Event) Policy {
	deps := make([]*Event, 0, len(p.deps)+len(events))
	deps = append(deps, p.deps...)
	for _, e := range events {
		if e != nil {
			deps = append(deps, e)
		}
	}
	p.deps = slices.Clip(deps)
	return p
}

// Device returns the device allocations under p come from.
func (p Policy) Device() Accelerator {
	if p.queue != nil {
		return p.queue.Device()
	}
	return HostDevice(p.rc)
}

// Allocate returns size bytes of p.Kind() memory.
func (p Policy) Allocate(ctx context.Context, size int) (Allocation, error) {
	return p.Device().Allocate(ctx, p.kind, size)
}

// Submit runs task under p. On a host policy it waits for the dependencies,
// runs task on the calling goroutine and returns a completed event. On a
// queue policy it enqueues task behind the dependencies and returns at once.
func (p Policy) Submit(task func() error) *Event {
	if p.queue != nil {
		return p.queue.Submit(task, p.deps...)
	}
	if err := WaitAll(p.deps...); err != nil {
		return Completed(err)
	}
	return Completed(runTask(task))
}

package policy

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tabula/core"
)

// WorkerPool runs data-parallel host work on a fixed set of goroutines, so
// back-to-back conversions do not spawn a goroutine per row range.
type WorkerPool struct {
	size  int
	tasks chan func()
	done  sync.WaitGroup

	// mu orders sends on tasks against Close.
	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts a pool of size goroutines. size <= 0 uses GOMAXPROCS.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	wp := &WorkerPool{
		size:  size,
		tasks: make(chan func(), size*2),
	}
	wp.done.Add(size)
	for range size {
		go wp.run()
	}
	return wp
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int {
	if wp == nil {
		return 0
	}
	return wp.size
}

func (wp *WorkerPool) run() {
	defer wp.done.Done()
	for task := range wp.tasks {
		task()
	}
}

// Submit enqueues task, blocking while the queue is full.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return core.ErrClosed
	}
	select {
	case wp.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues task only if the queue has room right now.
func (wp *WorkerPool) TrySubmit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	select {
	case wp.tasks <- task:
		return true
	default:
		return false
	}
}

// Close runs the queued tasks and stops the workers. It is idempotent.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()
	wp.done.Wait()
}

// ParallelFor splits [0, n) into ranges of at most grain elements and calls
// body on each. The calling goroutine always takes part, so ParallelFor
// makes progress even when every pool worker is busy; helpers are only
// recruited from free pool slots. With a nil pool the ranges run on an
// errgroup limited to GOMAXPROCS.
//
// The first error stops further ranges from starting and is returned.
func ParallelFor(ctx context.Context, pool *WorkerPool, n, grain int, body func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if grain <= 0 {
		grain = n
	}
	chunks := (n + grain - 1) / grain
	if chunks == 1 {
		return body(0, n)
	}

	if pool == nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for c := 0; c < chunks; c++ {
			lo := c * grain
			hi := min(lo+grain, n)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return body(lo, hi)
			})
		}
		return g.Wait()
	}

	var (
		next     atomic.Int64
		failed   atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		failed.Store(true)
	}
	drain := func() {
		for !failed.Load() {
			c := int(next.Add(1) - 1)
			if c >= chunks {
				return
			}
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			lo := c * grain
			if err := body(lo, min(lo+grain, n)); err != nil {
				fail(err)
				return
			}
		}
	}

	// Queued helpers may start after the caller has drained every range,
	// possibly on a worker that is itself waiting in this call. Only helpers
	// that joined before the caller finished are waited for.
	var (
		joinMu   sync.Mutex
		finished bool
		joined   sync.WaitGroup
	)
	helper := func() {
		joinMu.Lock()
		if finished {
			joinMu.Unlock()
			return
		}
		joined.Add(1)
		joinMu.Unlock()
		defer joined.Done()
		drain()
	}

	for range min(pool.Size(), chunks-1) {
		if !pool.TrySubmit(helper) {
			break
		}
	}
	drain()

	joinMu.Lock()
	finished = true
	joinMu.Unlock()
	joined.Wait()

	return firstErr
}

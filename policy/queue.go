package policy

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/hupe1980/tabula/core"
)

// Queue is an execution context: an ordered stream of operations running
// against one device.
//
// Submit never blocks on the task itself; it returns an event completed when
// the task has run. Dependencies are explicit: a task starts only after every
// event in deps has completed, and is skipped with the dependency error if
// any of them failed.
type Queue interface {
	Device() Accelerator
	Submit(task func() error, deps ...*Event) *Event
}

type queued struct {
	task func() error
	deps []*Event
	ev   *Event
}

// InOrderQueue runs submitted tasks one at a time in submission order on a
// dedicated goroutine.
type InOrderQueue struct {
	dev Accelerator

	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue
	closed  bool
	done    chan struct{}
}

// NewInOrderQueue starts a queue for dev.
func NewInOrderQueue(dev Accelerator) *InOrderQueue {
	q := &InOrderQueue{
		dev:     dev,
		pending: queue.New(),
		done:    make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Device returns the device the queue runs on.
func (q *InOrderQueue) Device() Accelerator { return q.dev }

// Submit enqueues task after deps.
func (q *InOrderQueue) Submit(task func() error, deps ...*Event) *Event {
	ev := NewEvent()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		ev.Complete(fmt.Errorf("submit: %w", core.ErrClosed))
		return ev
	}
	q.pending.Add(queued{task: task, deps: deps, ev: ev})
	q.cond.Signal()
	q.mu.Unlock()

	return ev
}

// Depth returns the number of tasks not yet started.
func (q *InOrderQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Length()
}

// Finish blocks until every task submitted so far has completed.
func (q *InOrderQueue) Finish() error {
	return q.Submit(func() error { return nil }).Wait()
}

// Close drains the queue and stops its goroutine. Tasks submitted after
// Close fail with core.ErrClosed.
func (q *InOrderQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return nil
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()

	<-q.done
	return nil
}

func (q *InOrderQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for q.pending.Length() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.pending.Length() == 0 {
			q.mu.Unlock()
			return
		}
		item := q.pending.Remove().(queued)
		q.mu.Unlock()

		if err := WaitAll(item.deps...); err != nil {
			item.ev.Complete(fmt.Errorf("dependency failed: %w", err))
			continue
		}
		item.ev.Complete(runTask(item.task))
	}
}

func runTask(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue task panicked: %v", r)
		}
	}()
	return task()
}

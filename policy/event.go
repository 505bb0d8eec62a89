package policy

import (
	"context"
	"errors"
	"sync"
)

// Event is the completion handle of an operation issued against a queue.
//
// A nil *Event is a valid, already-completed event. Events are completed
// exactly once; Wait may be called any number of times from any goroutine.
type Event struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewEvent returns a pending event.
func NewEvent() *Event {
	return &Event{done: make(chan struct{})}
}

// Completed returns an event that has already finished with err.
func Completed(err error) *Event {
	e := NewEvent()
	e.Complete(err)
	return e
}

// Complete finishes the event. Only the first call has an effect.
func (e *Event) Complete(err error) {
	if e == nil {
		return
	}
	e.once.Do(func() {
		e.err = err
		close(e.done)
	})
}

// Done returns a channel closed when the event finishes.
func (e *Event) Done() <-chan struct{} {
	if e == nil {
		return closedCh
	}
	return e.done
}

// Wait blocks until the event finishes and returns its error.
func (e *Event) Wait() error {
	if e == nil {
		return nil
	}
	<-e.done
	return e.err
}

// WaitContext is Wait with cancellation of the wait itself. Canceling ctx
// does not cancel the underlying operation.
func (e *Event) WaitContext(ctx context.Context) error {
	if e == nil {
		return nil
	}
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports whether the event finished and, if so, its error.
func (e *Event) Status() (done bool, err error) {
	if e == nil {
		return true, nil
	}
	select {
	case <-e.done:
		return true, e.err
	default:
		return false, nil
	}
}

// WaitAll waits for every event and joins their errors.
func WaitAll(events ...*Event) error {
	var errs []error
	for _, e := range events {
		if err := e.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Join returns an event that completes after all events complete.
func Join(events ...*Event) *Event {
	pending := events[:0:0]
	for _, e := range events {
		if e != nil {
			pending = append(pending, e)
		}
	}
	switch len(pending) {
	case 0:
		return nil
	case 1:
		return pending[0]
	}
	out := NewEvent()
	go func() { out.Complete(WaitAll(pending...)) }()
	return out
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

package broker

import (
	"context"
	"sync"
)

// Outcome is the result of one asynchronous send.
// On success Record is the record as written by the broker (partition, offset
// and timestamp filled in). On failure Err is set and Record is the message
// that was attempted.
type Outcome struct {
	Record Message
	Err    error
}

// Succeeded reports whether the record was written.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Future is a pending delivery Outcome. It resolves exactly once.
type Future struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that already carries o. Callers that fail before
// reaching the broker (for example on serialization) use it to report through
// the same path as delivery failures.
func Resolved(o Outcome) *Future {
	f := newFuture()
	f.resolve(o)
	return f
}

// resolve records the outcome; later calls are ignored.
func (f *Future) resolve(o Outcome) {
	f.once.Do(func() {
		f.outcome = o
		close(f.done)
	})
}

// Done is closed once the outcome is known.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsComplete reports whether the outcome is known without blocking.
func (f *Future) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the outcome is known or ctx is done.
// Cancelling ctx stops the wait only; delivery carries on.
func (f *Future) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Then runs fn with the outcome on its own goroutine once the future resolves.
// The registration cannot be cancelled. The returned channel is closed after fn returns.
func (f *Future) Then(fn func(Outcome)) <-chan struct{} {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		<-f.done
		fn(f.outcome)
	}()
	return finished
}

// Package future provides the single completion contract used by mutations
// and commits: a result-or-pending value settled exactly once.
//
// A Future created with Defer hands its work to an Executor. The Immediate
// executor runs it within the creating call; a Queue runs it when the owner
// drains the queue. Callers see the same contract either way: Wait returns
// the value or the rejection, running the pending work inline when nothing
// has run it yet.
package future

import (
	"context"
	"sync"
)

// State is the settlement state of a Future.
type State int

const (
	// Pending means the work has not completed yet.
	Pending State = iota
	// Fulfilled means the Future holds a value.
	Fulfilled
	// Rejected means the Future holds an error.
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Future is a value of type T that is either pending or settled.
//
// Thread-safety: all methods are safe for concurrent use.
type Future[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	thunk     func() (T, error)
	callbacks []func(T, error)
	done      chan struct{}
}

// Resolved returns a Future already fulfilled with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{state: Fulfilled, value: v, done: make(chan struct{})}
	close(f.done)
	return f
}

// Reject returns a Future already rejected with err.
func Reject[T any](err error) *Future[T] {
	f := &Future[T]{state: Rejected, err: err, done: make(chan struct{})}
	close(f.done)
	return f
}

// Defer returns a pending Future whose work is submitted to exec.
// A nil exec leaves the work to run on the first Wait.
func Defer[T any](exec Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{thunk: fn, done: make(chan struct{})}
	if exec != nil {
		exec.Submit(f.run)
	}
	return f
}

// run executes the pending work once. Later calls are no-ops.
func (f *Future[T]) run() {
	f.mu.Lock()
	fn := f.thunk
	f.thunk = nil
	f.mu.Unlock()

	if fn == nil {
		return
	}
	v, err := fn()
	f.settle(v, err)
}

func (f *Future[T]) settle(v T, err error) {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.state = Rejected
		f.err = err
	} else {
		f.state = Fulfilled
		f.value = v
	}
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
}

// Wait returns the settled value or error. If the work has not been started
// by its executor it runs inline; if another goroutine is running it, Wait
// blocks until it settles.
func (f *Future[T]) Wait() (T, error) {
	f.run()
	<-f.done
	return f.result()
}

// WaitContext is like Wait but gives up when ctx is done.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	f.run()
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// State returns the current settlement state without running pending work.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Settled reports whether the Future is fulfilled or rejected.
func (f *Future[T]) Settled() bool {
	return f.State() != Pending
}

// Done returns a channel closed once the Future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// OnSettle registers cb to run once the Future settles. If it already has,
// cb runs immediately on the calling goroutine.
func (f *Future[T]) OnSettle(cb func(T, error)) {
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Then chains fn after f. The returned Future settles when f settles: with
// fn's result when f fulfils, or with f's error when f rejects.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := Defer[U](nil, func() (U, error) {
		v, err := f.Wait()
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
	f.OnSettle(func(T, error) { next.run() })
	return next
}

package future

import (
	"context"
	"sync"
)

// Executor runs submitted work.
type Executor interface {
	Submit(task func())
}

// Immediate runs every task synchronously inside Submit.
var Immediate Executor = immediate{}

type immediate struct{}

func (immediate) Submit(task func()) { task() }

// Queue is a FIFO executor driven by its owner.
//
// Tasks accumulate until Drain or Run executes them, which lets a batching
// caller create many futures and settle them together. The queue is
// unbounded so a task may submit further tasks without blocking.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; coalesces wakeups
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Submit appends a task. Tasks submitted after Close are dropped.
func (q *Queue) Submit(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.tasks = append(q.tasks, task)

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil // release the closure for GC
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return task, true
}

// Drain runs queued tasks, including ones submitted while draining, until
// the queue is empty. Returns the number of tasks run.
func (q *Queue) Drain() int {
	n := 0
	for {
		task, ok := q.tryDequeue()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Run drains the queue as tasks arrive until ctx is cancelled or the queue
// is closed and empty.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Drain()

		q.mu.Lock()
		finished := q.closed && len(q.tasks) == 0
		q.mu.Unlock()
		if finished {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks and wakes Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

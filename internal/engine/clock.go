package engine

import "sync/atomic"

// Sequencer hands out the seq stamped on sweeps and lifecycle events.
type Sequencer interface {
	Next() int64
}

// Clock is the default Sequencer: a lock-free counter. Sweeps carry its
// value instead of wall-clock time so two runs of one session line up
// event for event.
type Clock struct {
	seq atomic.Int64
}

var _ Sequencer = (*Clock)(nil)

// NewClock returns a clock whose first Next is 1.
func NewClock() *Clock { return NewClockAt(0) }

// NewClockAt returns a clock positioned at start, so Next yields start+1.
func NewClockAt(start int64) *Clock {
	var c Clock
	c.seq.Store(start)
	return &c
}

func (c *Clock) Next() int64 { return c.seq.Add(1) }

// Current reports the most recent seq without advancing.
func (c *Clock) Current() int64 { return c.seq.Load() }

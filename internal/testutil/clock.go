package testutil

import (
	"sync"

	"github.com/roach88/cartflow/internal/engine"
)

var _ engine.Sequencer = (*DeterministicClock)(nil)

// DeterministicClock wraps engine.Clock with a rewind, so a harness run
// replayed on one clock stamps the same trace.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	clock *engine.Clock
}

// NewDeterministicClock starts at 0; the first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt starts at start and rewinds back to it.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{start: start, clock: engine.NewClockAt(start)}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Next()
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Current()
}

// Reset rewinds to the starting position.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = engine.NewClockAt(c.start)
}

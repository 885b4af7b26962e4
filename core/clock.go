package core

import (
	"sync"
	"time"
)

// TickClock is the monotonic clock used for sequencing timestamps and
// delay bookkeeping. Readings must be non-decreasing.
type TickClock interface {
	NowTicks() time.Time
}

// DefaultTickClock reads time.Now, whose monotonic reading is used by
// Sub/Before/After.
type DefaultTickClock struct{}

func (DefaultTickClock) NowTicks() time.Time { return time.Now() }

// ManualTickClock is a TickClock that only moves when told to.
type ManualTickClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualTickClock returns a clock frozen at start.
func NewManualTickClock(start time.Time) *ManualTickClock {
	return &ManualTickClock{now: start}
}

func (c *ManualTickClock) NowTicks() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward. Negative durations are ignored.
func (c *ManualTickClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

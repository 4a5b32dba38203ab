package enginetest

import (
	"sync"
	"time"
)

// ManualClock is a deterministic clock: Sleep advances Now without real
// waiting, so polling loops run instantly in tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time

	// Slept records every sleep request in order.
	Slept []time.Duration
}

// NewManualClock starts at an arbitrary fixed instant.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.Slept = append(c.Slept, d)
}

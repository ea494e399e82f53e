package testutil

import (
	"sync"
	"time"
)

// DefaultStart is the first instant a DeterministicClock returns.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a wall clock for tests that advances by a fixed
// tick on every reading.
//
// Passed to engine.WithNow it makes step start and end times reproducible,
// so two runs of the same scenario log identical step records.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	tick  time.Duration
	n     int64
}

// NewDeterministicClock creates a clock starting at DefaultStart that
// advances one second per reading.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultStart, time.Second)
}

// NewDeterministicClockAt creates a clock starting at start that advances
// by tick per reading.
func NewDeterministicClockAt(start time.Time, tick time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), tick: tick}
}

// Now returns the current instant and advances the clock.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.tick)
	c.n++
	return t
}

// Readings returns how many times Now has been called.
func (c *DeterministicClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to its start.
//
// Used for test reuse. After Reset(), the next call to Now() returns the start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

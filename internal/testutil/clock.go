package testutil

import (
	"sync"
	"time"
)

// FixedClock is a settable wall clock for tests.
//
// Unlike the engine's system clock, FixedClock only moves when a test tells
// it to, so due-date arithmetic and golden traces stay byte-identical across
// runs.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned at the given instant.
//
// Times are normalized to UTC to match the engine's system clock.
func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{now: at.UTC()}
}

// Now returns the pinned instant.
//
// Implements engine.Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// AdvanceDate moves the clock forward by calendar units, matching the
// AddDate arithmetic the scheduler uses for due dates.
func (c *FixedClock) AdvanceDate(years, months, days int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(years, months, days)
	return c.now
}

// Set pins the clock to a new instant.
func (c *FixedClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at.UTC()
}

package testutil

import (
	"sync"
	"time"
)

// StepClock provides a thread-safe deterministic time source for tests.
//
// Each call to Now returns the current reading and advances it by a fixed
// step, so a recorder driven by a StepClock stamps the same entry
// timestamps on every run. Unlike the wall clock it can be reset for
// test reuse.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewStepClock creates a clock that starts at start and advances by step
// per reading.
//
// The first call to Now() returns start itself.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, now: start, step: step}
}

// Now returns the current reading and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset rewinds the clock to its start time.
//
// After Reset(), the next call to Now() returns start again.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}

package time2

import (
	"sync"
	"time"
)

// A fake clock useful for testing timing.  Optionally advances itself by a
// fixed step on every Now call, so code that measures "elapsed since Now()"
// sees a deterministic duration.
type MockClock struct {
	mutex       sync.Mutex
	currentTime time.Time
	step        time.Duration
}

// Resets the mock clock back to initial state.
func (c *MockClock) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.currentTime = time.Time{}
	c.step = 0
}

// Set the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.currentTime = t
}

// Advances the mock clock by the specified duration.
func (c *MockClock) Advance(delta time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.currentTime = c.currentTime.Add(delta)
}

// Makes every subsequent Now call advance the clock by step after reading it.
func (c *MockClock) AutoAdvance(step time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.step = step
}

// Returns the fake current time.
func (c *MockClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := c.currentTime
	c.currentTime = c.currentTime.Add(c.step)
	return now
}

// Returns the time elapsed since t, measured against the fake current time.
func (c *MockClock) Since(t time.Time) time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.currentTime.Sub(t)
}

package time2

import (
	"time"
)

// The subset of the time package the bridge needs for measuring calls.
// Methods are equivalent to the time package functions of the same name.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type realClock struct{}

func NewRealClock() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func (c *realClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

var DefaultClock = NewRealClock()

// Returns clock if non-nil, otherwise DefaultClock.
func OrDefault(clock Clock) Clock {
	if clock == nil {
		return DefaultClock
	}
	return clock
}

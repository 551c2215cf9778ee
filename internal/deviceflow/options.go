package deviceflow

import (
	"time"

	"github.com/charmbracelet/log"
)

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the logger used for transitions and swallowed poll errors.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSecond sets the wall-clock length of one protocol second.
//
// Grant lifetimes and intervals are counted in these units. Tests shrink it to run
// expiry scenarios in milliseconds.
func WithSecond(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.second = d
		}
	}
}

// WithMinInterval sets the floor applied to the provider poll interval, in seconds.
func WithMinInterval(seconds int) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.minInterval = seconds
		}
	}
}

// WithSlowDownStep sets how many seconds each slow_down adds to the interval.
// RFC 8628 §3.5 requires 5.
func WithSlowDownStep(seconds int) Option {
	return func(c *Controller) {
		if seconds > 0 {
			c.slowDownStep = seconds
		}
	}
}

// WithBufferSize sets the capacity of the update channel returned by Start.
func WithBufferSize(n int) Option {
	return func(c *Controller) {
		if n > minBuffer {
			c.bufferSize = n
		}
	}
}

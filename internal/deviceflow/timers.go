package deviceflow

import "time"

// timers owns the poll timer and countdown ticker of one flow attempt.
//
// At most one of each exists per attempt. stop releases both and is called by
// defer on every exit path of the attempt loop.
type timers struct {
	unit      time.Duration
	poll      *time.Timer
	countdown *time.Ticker
}

func newTimers(unit time.Duration, intervalSeconds int) *timers {
	return &timers{
		unit:      unit,
		poll:      time.NewTimer(unit * time.Duration(intervalSeconds)),
		countdown: time.NewTicker(unit),
	}
}

// arm schedules the next poll. It must only be called after the previous poll
// timer fired and its value was received.
func (t *timers) arm(intervalSeconds int) {
	t.poll.Reset(t.unit * time.Duration(intervalSeconds))
}

func (t *timers) pollC() <-chan time.Time      { return t.poll.C }
func (t *timers) countdownC() <-chan time.Time { return t.countdown.C }

func (t *timers) stop() {
	t.poll.Stop()
	t.countdown.Stop()
}

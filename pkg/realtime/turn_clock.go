package realtime

import "time"

// TurnClock is the countdown of a single turn. It holds no goroutine: the
// owner asks it for the deadline and feeds expiry back as an event.
type TurnClock struct {
	Duration  time.Duration
	Turn      int
	StartedAt time.Time
}

// Start begins a new turn at now and bumps the turn counter.
func (c *TurnClock) Start(now time.Time) {
	c.Turn++
	c.StartedAt = now
}

// Stop cancels the running turn. The counter is kept.
func (c *TurnClock) Stop() {
	c.StartedAt = time.Time{}
}

func (c *TurnClock) Running() bool {
	return !c.StartedAt.IsZero()
}

// Deadline returns when the running turn expires.
func (c *TurnClock) Deadline() (time.Time, bool) {
	if !c.Running() {
		return time.Time{}, false
	}
	return c.StartedAt.Add(c.Duration), true
}

// Remaining is the time left in the running turn, never negative. A stopped
// clock has nothing remaining.
func (c *TurnClock) Remaining(now time.Time) time.Duration {
	deadline, ok := c.Deadline()
	if !ok {
		return 0
	}
	left := deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the running turn has reached its deadline.
func (c *TurnClock) Expired(now time.Time) bool {
	deadline, ok := c.Deadline()
	return ok && !now.Before(deadline)
}

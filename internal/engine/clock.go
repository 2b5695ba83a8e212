package engine

import (
	"time"

	"k8s.io/utils/clock"
)

// restartClock tracks the time since the last completed refresh. It is used
// for reporting only and never throttles a load.
type restartClock struct {
	clk  clock.PassiveClock
	last time.Time
}

func newRestartClock(clk clock.PassiveClock) restartClock {
	return restartClock{clk: clk, last: clk.Now()}
}

// Elapsed returns the time since the last restart.
func (c *restartClock) Elapsed() time.Duration {
	return c.clk.Since(c.last)
}

// Restart marks a refresh as completed now.
func (c *restartClock) Restart() {
	c.last = c.clk.Now()
}

// Now returns the current time.
func (c *restartClock) Now() time.Time {
	return c.clk.Now()
}

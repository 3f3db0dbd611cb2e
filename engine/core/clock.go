package core

import (
	"time"

	"github.com/loov/hrtime"
)

// Clock measures elapsed time with the high resolution timer. Elapsed is in seconds.
type Clock struct {
	started   bool
	startTime time.Duration
	elapsed   float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.started {
		c.elapsed = (hrtime.Now() - c.startTime).Seconds()
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = hrtime.Now()
	c.started = true
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.started = false
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Now returns the absolute high resolution time in seconds.
func Now() float64 {
	return hrtime.Now().Seconds()
}

package main

import "time"

// fpsCounter reports the frame rate measured over fixed windows.
type fpsCounter struct {
	interval time.Duration
	start    time.Time
	frames   int
	fps      float64
}

func newFPSCounter(interval time.Duration) *fpsCounter {
	return &fpsCounter{interval: interval}
}

// Tick records a frame at now and returns the rate of the last full window.
func (c *fpsCounter) Tick(now time.Time) float64 {
	if c.start.IsZero() {
		c.start = now
	}
	c.frames++

	if elapsed := now.Sub(c.start); elapsed >= c.interval {
		c.fps = float64(c.frames) / elapsed.Seconds()
		c.frames = 0
		c.start = now
	}
	return c.fps
}

package app

import "time"

// DefaultTickInterval is the countdown resolution
const DefaultTickInterval = time.Second

// countdown drives the ticks of a timed stage. Every tick carries the
// sequence number it was armed under; disarm bumps the sequence, so a tick
// that was already in flight when the stage moved on is ignored.
// All methods must be called with the engine lock held.
type countdown struct {
	clock    Clock
	interval time.Duration
	timer    Timer
	seq      uint64
}

func newCountdown(clock Clock, interval time.Duration) *countdown {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &countdown{clock: clock, interval: interval}
}

// arm starts a fresh run of ticks
func (c *countdown) arm(tick func(seq uint64)) {
	c.disarm()
	c.schedule(tick)
}

// next schedules the following tick of the run identified by seq
func (c *countdown) next(seq uint64, tick func(seq uint64)) {
	if seq != c.seq {
		return
	}
	c.schedule(tick)
}

func (c *countdown) schedule(tick func(seq uint64)) {
	seq := c.seq
	c.timer = c.clock.AfterFunc(c.interval, func() { tick(seq) })
}

// disarm cancels the pending tick and invalidates any tick already firing
func (c *countdown) disarm() {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// current reports whether seq belongs to the armed run
func (c *countdown) current(seq uint64) bool {
	return c.timer != nil && seq == c.seq
}

package card

import "sync/atomic"

// Sequencer stamps exchanges with strictly increasing numbers.
// testutil.DeterministicClock satisfies it for tests that reset between runs.
type Sequencer interface {
	Next() int64
}

// Clock is the platform's logical clock. Every exchange gets the next value,
// so transcripts order by sequence number rather than wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

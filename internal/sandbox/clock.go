package sandbox

import "sync/atomic"

// SeqClock stamps trace events with strictly increasing sequence numbers.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock for host-call ordering.
//
// Trace events are ordered by seq, never by wall-clock time, so that the
// same scenario always produces the same trace.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, for a host that
// continues an existing log.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

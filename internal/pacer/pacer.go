// Package pacer implements the drift-free scheduling required for the
// sender audio pipeline: each deadline is computed as start + n*period rather
// than by sleeping for one period after the previous send, which would
// accumulate scheduling error and cause audible drift within minutes.
package pacer

import "time"

// Pacer yields one deadline per call, computed from a fixed start time and
// period so that timer jitter never accumulates across calls.
type Pacer struct {
	start  time.Time
	period time.Duration
	count  uint64
}

// New creates a Pacer whose first deadline is start, advancing by period
// each subsequent call to Next.
func New(start time.Time, period time.Duration) *Pacer {
	return &Pacer{start: start, period: period}
}

// Next returns the deadline for the next packet and advances the internal
// counter.
func (p *Pacer) Next() time.Time {
	deadline := p.start.Add(time.Duration(p.count) * p.period)
	p.count++
	return deadline
}

// Reset restarts the schedule from a new start time, as on a Flush.
func (p *Pacer) Reset(start time.Time) {
	p.start = start
	p.count = 0
}

// Count returns the number of deadlines issued since the last Reset.
func (p *Pacer) Count() uint64 { return p.count }

// WaitNext sleeps until the next scheduled deadline and returns it. The
// sleep duration shrinks to zero (never negative) if the caller has fallen
// behind schedule, so a slow packet never pushes every later one out by the
// same amount.
func (p *Pacer) WaitNext(sleep func(time.Duration)) time.Time {
	deadline := p.Next()
	if d := time.Until(deadline); d > 0 {
		sleep(d)
	}
	return deadline
}

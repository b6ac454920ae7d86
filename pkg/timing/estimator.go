package timing

import "time"

// smoothingGain is the exponential filter gain applied to offset/RTT
// samples from both the legacy NTP-like exchange and the modern NTP
// fallback path.
const smoothingGain = 8

// OffsetEstimator maintains a low-pass-filtered clock offset and round-trip
// time from a sequence of four-timestamp exchanges.
type OffsetEstimator struct {
	initialized bool
	offset      time.Duration
	rtt         time.Duration
}

// Update feeds one exchange's four timestamps — t1 originate (local send),
// t2 receive (remote receive), t3 transmit (remote send), t4 local receive
// — and returns the filtered offset and RTT. Offset is the amount to add to
// local time to get remote time.
func (e *OffsetEstimator) Update(t1, t2, t3, t4 time.Time) (offset, rtt time.Duration) {
	sampleOffset := (t2.Sub(t1) + t3.Sub(t4)) / 2
	sampleRTT := t4.Sub(t1) - t3.Sub(t2)

	if !e.initialized {
		e.offset = sampleOffset
		e.rtt = sampleRTT
		e.initialized = true
	} else {
		e.offset += (sampleOffset - e.offset) / smoothingGain
		e.rtt += (sampleRTT - e.rtt) / smoothingGain
	}
	return e.offset, e.rtt
}

// Offset returns the most recently filtered offset.
func (e *OffsetEstimator) Offset() time.Duration { return e.offset }

// RTT returns the most recently filtered round-trip time.
func (e *OffsetEstimator) RTT() time.Duration { return e.rtt }

// Initialized reports whether at least one sample has been applied.
func (e *OffsetEstimator) Initialized() bool { return e.initialized }

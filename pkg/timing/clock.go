package timing

import (
	"sync"
	"time"
)

// Clock maps between RTP timestamps and wall-clock time for one session. It
// is the contract exposed to the audio pipeline: two pure functions,
// WallTimeForRTP and RTPForWallTime, both monotonic over the session lifetime
// modulo 32-bit wrap on the RTP side. The mapping is anchored at the most
// recent sync packet (legacy) or PTP/NTP sample (modern): SetAnchor records
// the (rtpTimestamp, wallTime) pair the mapping is built from, and SetOffset
// a smoothed offset applied on top of it.
type Clock struct {
	mu sync.Mutex

	sampleRate uint32

	anchorSet  bool
	anchorRTP  uint32
	anchorWall time.Time
	offset     time.Duration
}

// NewClock creates a Clock for a stream sampled at sampleRate Hz.
func NewClock(sampleRate uint32) *Clock {
	return &Clock{sampleRate: sampleRate}
}

// SetAnchor records a fresh (rtpTimestamp, wallTime) correspondence, as
// produced by a legacy sync packet or a PTP/NTP sample. Monotonicity across
// anchor updates is the caller's responsibility.
func (c *Clock) SetAnchor(rtpTimestamp uint32, wallTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorRTP = rtpTimestamp
	c.anchorWall = wallTime
	c.anchorSet = true
}

// SetOffset records the smoothed clock offset to apply on top of the
// anchor, as produced by OffsetEstimator or a PTP slave.
func (c *Clock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = offset
}

// HasAnchor reports whether an anchor has been established yet.
func (c *Clock) HasAnchor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchorSet
}

// WallTimeForRTP maps an RTP timestamp to the wall-clock instant it plays
// at, using signed 32-bit wraparound-safe arithmetic relative to the
// anchor.
func (c *Clock) WallTimeForRTP(ts uint32) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	deltaRTP := int32(ts - c.anchorRTP)
	deltaNanos := int64(deltaRTP) * int64(time.Second) / int64(c.sampleRate)
	return c.anchorWall.Add(time.Duration(deltaNanos) + c.offset)
}

// RTPForWallTime maps a wall-clock instant to the RTP timestamp that would
// play at that instant, wrapping naturally on 32-bit overflow.
func (c *Clock) RTPForWallTime(t time.Time) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	deltaNanos := t.Sub(c.anchorWall) - c.offset
	deltaRTP := int64(deltaNanos) * int64(c.sampleRate) / int64(time.Second)
	return c.anchorRTP + uint32(int32(deltaRTP))
}

// Package timing implements the audio clock and synchronization contract:
// the legacy NTP-like sync/timing packet exchange, a PTP-slave collaborator
// interface for the modern dialect, and the two pure functions
// (WallTimeForRTP / RTPForWallTime) the sender pacer and receiver jitter
// buffer depend on.
package timing

import (
	"math"
	"time"
)

// EncodeNTP encodes t as a 64-bit NTP timestamp (RFC 3550 section 4):
// seconds since 1900-01-01 in the high 32 bits, a binary fraction of a
// second in the low 32 bits.
func EncodeNTP(t time.Time) uint64 {
	ntp := uint64(t.UnixNano()) + 2208988800*1000000000
	secs := ntp / 1000000000
	fractional := uint64(math.Round(float64((ntp%1000000000)*(1<<32)) / 1000000000))
	return secs<<32 | fractional
}

// DecodeNTP decodes a 64-bit NTP timestamp into a time.Time.
func DecodeNTP(v uint64) time.Time {
	secs := int64((v >> 32) - 2208988800)
	nanos := int64(math.Round(float64(((v & 0xFFFFFFFF) * 1000000000) / (1 << 32))))
	return time.Unix(secs, nanos)
}

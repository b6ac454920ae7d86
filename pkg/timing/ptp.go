package timing

import "time"

// PTPSlave is the interface the core consumes when timingProtocol = "PTP".
// A concrete implementation talks to an external PTP daemon (e.g. over its
// local control socket); this package only depends on the contract below.
type PTPSlave interface {
	// CurrentPTPTime returns the daemon's current view of PTP wall-clock
	// time.
	CurrentPTPTime() (time.Time, error)

	// NotifyGrandmasterChange is invoked by the daemon (or a poller wrapping
	// it) whenever the PTP grandmaster changes, so the session can
	// re-anchor its Clock.
	NotifyGrandmasterChange(cb func())
}

// DriveFromPTP anchors clock using slave's current time at the given RTP
// timestamp, and re-anchors automatically on every grandmaster change.
func DriveFromPTP(clock *Clock, slave PTPSlave, rtpTimestamp uint32) error {
	now, err := slave.CurrentPTPTime()
	if err != nil {
		return err
	}
	clock.SetAnchor(rtpTimestamp, now)

	slave.NotifyGrandmasterChange(func() {
		if t, err := slave.CurrentPTPTime(); err == nil {
			clock.SetAnchor(rtpTimestamp, t)
		}
	})
	return nil
}

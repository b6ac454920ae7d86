package airplay2

import "github.com/pion/rtcp"

// EventKind identifies a session lifecycle event emitted by the dispatcher.
type EventKind int

const (
	EventPairingComplete EventKind = iota
	EventSetupComplete
	EventStreamingStarted
	EventFlushRequested
	EventPaused
	EventTeardown
	EventVolumeChanged
	EventMetadataUpdated
	EventQualityDegraded
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventPairingComplete:
		return "pairing-complete"
	case EventSetupComplete:
		return "setup-complete"
	case EventStreamingStarted:
		return "streaming-started"
	case EventFlushRequested:
		return "flush-requested"
	case EventPaused:
		return "paused"
	case EventTeardown:
		return "teardown"
	case EventVolumeChanged:
		return "volume-changed"
	case EventMetadataUpdated:
		return "metadata-updated"
	case EventQualityDegraded:
		return "quality-degraded"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a session lifecycle notification, delivered to a Client or
// Receiver's event callback.
type Event struct {
	Kind EventKind

	// Volume is populated for EventVolumeChanged: dB in [-144, 0], -144
	// meaning mute.
	Volume float64

	// DecryptFailures is populated for EventQualityDegraded.
	DecryptFailures uint64

	// Loss is populated for EventQualityDegraded when the degradation was a
	// sequence gap rather than a decrypt failure: the RTCP receiver report
	// snapshotting the loss observed on the audio stream.
	Loss *rtcp.ReceiverReport

	// Err is populated for EventDisconnected when the cause was an error.
	Err error
}

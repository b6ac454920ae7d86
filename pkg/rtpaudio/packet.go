// Package rtpaudio implements the per-packet binary contracts and the
// sender/receiver audio pipelines. Packet framing is delegated to
// github.com/pion/rtp, which already implements the RFC 3550 layout.
package rtpaudio

import "github.com/pion/rtp"

// Legacy payload types.
const (
	PayloadTypeRealtimeAudio   = 0x60
	PayloadTypeBufferedAudio   = 0x61
	PayloadTypeRetransmitReply = 0x56
	PayloadTypeRetransmitAsk   = 0x55
)

// EncryptionType identifies the negotiated per-packet audio encryption.
type EncryptionType int

const (
	EncryptionNone EncryptionType = iota
	EncryptionRSAAES
	EncryptionFairPlay
	EncryptionMFiSAP
	EncryptionFairPlaySAPv25
	EncryptionChaCha20Poly1305
)

// NewPacket builds an RTP packet with the given header fields and payload.
func NewPacket(marker bool, payloadType uint8, sequence uint16, timestamp uint32, ssrc uint32, payload []byte) *rtp.Packet {
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: sequence,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
}

// RetransmitRequestSize is the length of a legacy retransmit request body.
const RetransmitRequestSize = 4

// EncodeRetransmitRequest marshals a retransmit request body: bytes 0-1 =
// first sequence, bytes 2-3 = count (both big-endian).
func EncodeRetransmitRequest(first, count uint16) []byte {
	return []byte{byte(first >> 8), byte(first), byte(count >> 8), byte(count)}
}

// DecodeRetransmitRequest parses a legacy retransmit request body.
func DecodeRetransmitRequest(buf []byte) (first, count uint16, ok bool) {
	if len(buf) != RetransmitRequestSize {
		return 0, 0, false
	}
	first = uint16(buf[0])<<8 | uint16(buf[1])
	count = uint16(buf[2])<<8 | uint16(buf[3])
	return first, count, true
}

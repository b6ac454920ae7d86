package timing

import (
	"encoding/binary"
	"fmt"
)

// Legacy per-packet payload types.
const (
	PayloadTypeRealtimeAudio    = 0x60
	PayloadTypeBufferedAudio    = 0x61
	PayloadTypeRetransmitReply  = 0x56
	PayloadTypeRetransmitAsk    = 0x55
	PayloadTypeSync             = 0x54
	PayloadTypeTimingResponse   = 0x53
	PayloadTypeTimingRequest    = 0x52
)

// SyncPacketSize is the fixed length of a legacy sync packet.
const SyncPacketSize = 20

// SyncPacket carries the RTP timestamp currently being played, the
// corresponding NTP wall-clock timestamp, and the RTP timestamp of the next
// packet to be sent.
type SyncPacket struct {
	IsFirst     bool
	CurrentRTP  uint32
	NTPNow      uint64
	NextRTP     uint32
}

// Encode marshals the packet: byte0 = 0x80 | (is_first ? 0x10: 0), byte1 =
// 0xD4, bytes 2-3 = 0x0007, bytes 4-7 = RTP ts, bytes 8-15 = NTP ts, bytes
// 16-19 = next RTP ts.
func (p SyncPacket) Encode() []byte {
	buf := make([]byte, SyncPacketSize)
	buf[0] = 0x80
	if p.IsFirst {
		buf[0] |= 0x10
	}
	buf[1] = 0xD4
	binary.BigEndian.PutUint16(buf[2:4], 0x0007)
	binary.BigEndian.PutUint32(buf[4:8], p.CurrentRTP)
	binary.BigEndian.PutUint64(buf[8:16], p.NTPNow)
	binary.BigEndian.PutUint32(buf[16:20], p.NextRTP)
	return buf
}

// DecodeSyncPacket parses a legacy sync packet from the wire.
func DecodeSyncPacket(buf []byte) (SyncPacket, error) {
	if len(buf) != SyncPacketSize {
		return SyncPacket{}, fmt.Errorf("timing: sync packet must be %d bytes, got %d", SyncPacketSize, len(buf))
	}
	return SyncPacket{
		IsFirst:    buf[0]&0x10 != 0,
		CurrentRTP: binary.BigEndian.Uint32(buf[4:8]),
		NTPNow:     binary.BigEndian.Uint64(buf[8:16]),
		NextRTP:    binary.BigEndian.Uint32(buf[16:20]),
	}, nil
}

// TimingPacketSize is the fixed length of a legacy timing request/response.
const TimingPacketSize = 32

// TimingPacket carries the three timestamps of the legacy timing exchange:
// the originate timestamp copied from the request, the receive timestamp
// stamped by the responder, and the transmit timestamp stamped just before
// sending.
type TimingPacket struct {
	Response  bool
	Originate uint64
	Receive   uint64
	Transmit  uint64
}

// Encode marshals the packet: byte0 = 0x80, byte1 = payload type (request
// or response), bytes 2-3 reserved, bytes 4-7 reserved/zero padding,
// followed by the three 8-byte NTP timestamps.
func (p TimingPacket) Encode() []byte {
	buf := make([]byte, TimingPacketSize)
	buf[0] = 0x80
	if p.Response {
		buf[1] = PayloadTypeTimingResponse
	} else {
		buf[1] = PayloadTypeTimingRequest
	}
	binary.BigEndian.PutUint64(buf[8:16], p.Originate)
	binary.BigEndian.PutUint64(buf[16:24], p.Receive)
	binary.BigEndian.PutUint64(buf[24:32], p.Transmit)
	return buf
}

// DecodeTimingPacket parses a legacy timing request/response from the wire.
func DecodeTimingPacket(buf []byte) (TimingPacket, error) {
	if len(buf) != TimingPacketSize {
		return TimingPacket{}, fmt.Errorf("timing: timing packet must be %d bytes, got %d", TimingPacketSize, len(buf))
	}
	return TimingPacket{
		Response:  buf[1] == PayloadTypeTimingResponse,
		Originate: binary.BigEndian.Uint64(buf[8:16]),
		Receive:   binary.BigEndian.Uint64(buf[16:24]),
		Transmit:  binary.BigEndian.Uint64(buf[24:32]),
	}, nil
}

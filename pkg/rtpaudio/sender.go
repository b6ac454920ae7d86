package rtpaudio

import (
	"fmt"
	"time"

	"github.com/jburnhams/airplay2/internal/pacer"
	"github.com/jburnhams/airplay2/pkg/codec"
	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/retransmit"
)

// SenderConfig bundles a Sender's collaborators: encoder, encryption
// material, the retransmit cache, the drift-free pacer, and the transport
// sink.
type SenderConfig struct {
	SSRC            uint32
	FramesPerPacket int

	Encoder    codec.Encoder
	Encryption EncryptionType

	LegacyKey, LegacyIV []byte
	ModernAudioKey      [32]byte

	Retransmit *retransmit.Buffer
	Pacer      *pacer.Pacer
	Sleep      func(time.Duration)
	Send       func(payload []byte) error
}

// Sender drives the sender audio pipeline: source PCM -> encode -> encrypt
// (prefix-only for legacy) -> packetize -> pace -> send, with a copy pushed
// into the retransmit cache on every packet.
type Sender struct {
	cfg SenderConfig

	sequence      uint16
	timestamp     uint32
	markerPending bool
}

// NewSender creates a Sender whose first packet carries the marker bit, set
// on the first packet after start or after every Flush.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.FramesPerPacket == 0 {
		cfg.FramesPerPacket = codec.FramesPerPacket
	}
	return &Sender{cfg: cfg, markerPending: true}
}

// SendFrame encodes, encrypts, packetizes, caches, and transmits one
// frame's worth of PCM, then blocks on the pacer's next scheduled deadline.
func (s *Sender) SendFrame(pcm []int16) error {
	payload, err := s.cfg.Encoder.Encode(pcm)
	if err != nil {
		return fmt.Errorf("rtpaudio: encode: %w", err)
	}

	switch s.cfg.Encryption {
	case EncryptionRSAAES:
		payload, err = cryptoutil.AESCBCEncryptPrefix(s.cfg.LegacyKey, s.cfg.LegacyIV, payload)
	case EncryptionChaCha20Poly1305:
		nonce := cryptoutil.AudioNonce(s.cfg.SSRC, s.sequence)
		payload, err = cryptoutil.ChaChaSeal(s.cfg.ModernAudioKey[:], nonce, nil, payload)
	}
	if err != nil {
		return fmt.Errorf("rtpaudio: encrypt: %w", err)
	}

	marker := s.markerPending
	s.markerPending = false

	pkt := NewPacket(marker, PayloadTypeRealtimeAudio, s.sequence, s.timestamp, s.cfg.SSRC, payload)
	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("rtpaudio: marshal: %w", err)
	}

	if s.cfg.Retransmit != nil {
		s.cfg.Retransmit.Put(s.sequence, raw)
	}

	if err := s.cfg.Send(raw); err != nil {
		return err
	}

	s.sequence++
	s.timestamp += uint32(s.cfg.FramesPerPacket)

	if s.cfg.Pacer != nil {
		s.cfg.Pacer.WaitNext(s.cfg.Sleep)
	}
	return nil
}

// Flush resets the packetizer so the next packet carries the marker bit
// again, clears the retransmit cache, and restarts the pacer schedule from
// now.
func (s *Sender) Flush() {
	s.markerPending = true
	if s.cfg.Retransmit != nil {
		s.cfg.Retransmit.Reset()
	}
	if s.cfg.Pacer != nil {
		s.cfg.Pacer.Reset(time.Now())
	}
}

// Sequence returns the sequence number the next packet will carry.
func (s *Sender) Sequence() uint16 { return s.sequence }

// HandleRetransmitRequest resends cached packets for [first, first+count),
// rewriting their payload type to 0x56 but otherwise leaving them
// unchanged.
func (s *Sender) HandleRetransmitRequest(first, count uint16) error {
	if s.cfg.Retransmit == nil {
		return nil
	}
	for _, raw := range s.cfg.Retransmit.Range(first, count) {
		resent := make([]byte, len(raw))
		copy(resent, raw)
		resent[1] = (resent[1] & 0x80) | PayloadTypeRetransmitReply
		if err := s.cfg.Send(resent); err != nil {
			return err
		}
	}
	return nil
}

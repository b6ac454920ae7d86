package rtpaudio

import (
	"fmt"

	"github.com/jburnhams/airplay2/pkg/codec"
	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/jitterbuffer"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// ReceiverConfig bundles a Receiver's collaborators.
type ReceiverConfig struct {
	Decoder    codec.Decoder
	Encryption EncryptionType

	LegacyKey, LegacyIV []byte
	ModernAudioKey      [32]byte

	JitterBuffer *jitterbuffer.Buffer

	// ReceiveInstant stamps each incoming packet; injectable so tests don't
	// depend on wall-clock time.
	ReceiveInstant func() int64

	// OnRetransmitRequest is invoked by the loss detector when a gap in the
	// sequence is observed, identifying the first missing sequence and
	// count.
	OnRetransmitRequest func(first, count uint16) error
}

// Receiver drives the receiver audio pipeline: decrypt -> decode ->
// jitter-buffer hand-off, plus an independent loss detector.
type Receiver struct {
	cfg ReceiverConfig

	seeded          bool
	expectedSeq     uint16
	decryptFailures uint64

	ssrc            uint32
	packetsExpected uint32
	intervalLost    uint32
	totalLost       uint32
}

// NewReceiver creates a Receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	return &Receiver{cfg: cfg}
}

// DecryptFailures returns the count of Poly1305 tag failures observed so
// far. A failure increments this counter but does not tear down the
// session.
func (r *Receiver) DecryptFailures() uint64 { return r.decryptFailures }

// HandleDatagram parses, decrypts, decodes, and hands off one received RTP
// audio datagram, then runs loss detection.
func (r *Receiver) HandleDatagram(raw []byte) error {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return fmt.Errorf("rtpaudio: unmarshal: %w", err)
	}

	r.ssrc = pkt.SSRC

	payload := pkt.Payload
	switch r.cfg.Encryption {
	case EncryptionRSAAES:
		p, err := cryptoutil.AESCBCDecryptPrefix(r.cfg.LegacyKey, r.cfg.LegacyIV, payload)
		if err != nil {
			return fmt.Errorf("rtpaudio: decrypt: %w", err)
		}
		payload = p
	case EncryptionChaCha20Poly1305:
		nonce := cryptoutil.AudioNonce(pkt.SSRC, pkt.SequenceNumber)
		p, err := cryptoutil.ChaChaOpen(r.cfg.ModernAudioKey[:], nonce, nil, payload)
		if err != nil {
			r.decryptFailures++
			r.observeSequence(pkt.SequenceNumber)
			return nil
		}
		payload = p
	}

	samples, err := r.cfg.Decoder.Decode(payload)
	if err != nil {
		return fmt.Errorf("rtpaudio: decode: %w", err)
	}

	var recvInstant int64
	if r.cfg.ReceiveInstant != nil {
		recvInstant = r.cfg.ReceiveInstant()
	}

	r.cfg.JitterBuffer.Insert(jitterbuffer.Packet{
		Sequence:       pkt.SequenceNumber,
		RTPTimestamp:   pkt.Timestamp,
		ReceiveInstant: recvInstant,
		Samples:        samples,
	})

	return r.observeSequence(pkt.SequenceNumber)
}

// observeSequence maintains the expected-next-sequence counter and issues a
// retransmit request on any gap.
func (r *Receiver) observeSequence(seq uint16) error {
	if !r.seeded {
		r.expectedSeq = seq + 1
		r.seeded = true
		return nil
	}

	r.packetsExpected++

	if seq == r.expectedSeq {
		r.expectedSeq++
		return nil
	}

	if diff := int16(seq - r.expectedSeq); diff > 0 {
		firstMissing := r.expectedSeq
		missing := uint16(diff)
		r.expectedSeq = seq + 1
		r.packetsExpected += uint32(missing)
		r.intervalLost += uint32(missing)
		r.totalLost += uint32(missing)
		if r.cfg.OnRetransmitRequest != nil {
			return r.cfg.OnRetransmitRequest(firstMissing, missing)
		}
	}
	// diff < 0: a late/reordered packet behind expectedSeq; the jitter
	// buffer already decided whether to accept or drop it.
	return nil
}

// LossReport snapshots the loss observed since the last call as an RTCP
// receiver report, using github.com/pion/rtcp's wire types so a host can
// log, forward, or marshal it exactly like any other RTCP packet. The
// SSRC is the one most recently seen on the stream.
func (r *Receiver) LossReport() *rtcp.ReceiverReport {
	var fraction uint8
	if r.packetsExpected > 0 {
		fraction = uint8((uint64(r.intervalLost) * 256) / uint64(r.packetsExpected))
	}

	rr := &rtcp.ReceiverReport{
		SSRC: r.ssrc,
		Reports: []rtcp.ReceptionReport{
			{
				SSRC:               r.ssrc,
				FractionLost:       fraction,
				TotalLost:          r.totalLost,
				LastSequenceNumber: uint32(r.expectedSeq) - 1,
			},
		},
	}

	r.packetsExpected = 0
	r.intervalLost = 0
	return rr
}

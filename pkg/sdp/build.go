package sdp

import (
	"encoding/base64"
	"fmt"

	psdp "github.com/pion/sdp/v3"
)

// LegacyAnnounceParams bundles the fields a legacy (RAOP) ANNOUNCE body
// needs: session endpoints, the negotiated codec, and (for RSA/AES
// encryption) the wrapped stream key.
type LegacyAnnounceParams struct {
	ClientIP string
	ServerIP string

	SampleRate int
	Channels   int

	// PayloadType and Codec select the rtpmap line; 96/"AppleLossless"
	// for ALAC, the only codec this core recognizes by name (the others
	// are opaque to the transport).
	PayloadType int
	Codec       string

	// WrappedAESKey and AESIV are populated when the stream is RSA/AES
	// encrypted; omitted (both nil) for an unencrypted or FairPlay
	// stream, whose key material travels out of band.
	WrappedAESKey []byte
	AESIV         []byte
}

// BuildLegacyAnnounce constructs the SDP session description sent as an
// ANNOUNCE request body by a legacy-dialect sender.
func BuildLegacyAnnounce(p LegacyAnnounceParams) *SessionDescription {
	if p.PayloadType == 0 {
		p.PayloadType = 96
	}
	if p.Codec == "" {
		p.Codec = "AppleLossless"
	}
	if p.Channels == 0 {
		p.Channels = 2
	}
	if p.SampleRate == 0 {
		p.SampleRate = 44100
	}

	media := &psdp.MediaDescription{
		MediaName: psdp.MediaName{
			Media:   "audio",
			Port:    psdp.RangedPort{Value: 0},
			Protos:  []string{"RTP", "AVP", fmt.Sprintf("%d", p.PayloadType)},
			Formats: []string{fmt.Sprintf("%d", p.PayloadType)},
		},
		Attributes: []psdp.Attribute{
			{Key: "rtpmap", Value: fmt.Sprintf("%d %s", p.PayloadType, p.Codec)},
			{Key: "fmtp", Value: fmt.Sprintf("%d 352 0 16 40 10 14 2 255 0 0 %d", p.PayloadType, p.SampleRate)},
		},
	}

	if p.WrappedAESKey != nil {
		media.Attributes = append(media.Attributes, psdp.Attribute{
			Key:   "rsaaeskey",
			Value: base64.RawStdEncoding.EncodeToString(p.WrappedAESKey),
		})
	}
	if p.AESIV != nil {
		media.Attributes = append(media.Attributes, psdp.Attribute{
			Key:   "aesiv",
			Value: base64.RawStdEncoding.EncodeToString(p.AESIV),
		})
	}

	s := &psdp.SessionDescription{
		Origin: psdp.Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 0,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: p.ClientIP,
		},
		SessionName: "AirTunes",
		ConnectionInformation: &psdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &psdp.Address{Address: p.ServerIP},
		},
		TimeDescriptions:  []psdp.TimeDescription{{Timing: psdp.Timing{StartTime: 0, StopTime: 0}}},
		MediaDescriptions: []*psdp.MediaDescription{media},
	}

	return (*SessionDescription)(s)
}

// Package sdp contains a SDP encoder/decoder for the attributes used by the
// legacy AirPlay dialect's ANNOUNCE request.
package sdp

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// SessionDescription is a SDP session description, as carried by an ANNOUNCE
// request body.
type SessionDescription psdp.SessionDescription

// Unmarshal decodes a SessionDescription from raw SDP bytes.
func Unmarshal(byts []byte) (*SessionDescription, error) {
	var s psdp.SessionDescription
	if err := s.Unmarshal(byts); err != nil {
		return nil, fmt.Errorf("sdp: %w", err)
	}
	return (*SessionDescription)(&s), nil
}

// Marshal encodes the SessionDescription.
func (s *SessionDescription) Marshal() ([]byte, error) {
	return (*psdp.SessionDescription)(s).Marshal()
}

// AudioMedia returns the first "audio" media description, if any.
func (s *SessionDescription) AudioMedia() (*psdp.MediaDescription, bool) {
	for _, m := range s.MediaDescriptions {
		if m.MediaName.Media == "audio" {
			return m, true
		}
	}
	return nil, false
}

// attribute returns the value of a media-level attribute.
func attribute(m *psdp.MediaDescription, key string) (string, bool) {
	for _, a := range m.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// RTPMap returns the rtpmap payload-type number and encoding name for the
// audio media, e.g. "96" -> "AppleLossless".
func RTPMap(m *psdp.MediaDescription) (int, string, error) {
	v, ok := attribute(m, "rtpmap")
	if !ok {
		return 0, "", fmt.Errorf("sdp: rtpmap attribute missing")
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("sdp: invalid rtpmap %q", v)
	}
	pt, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("sdp: invalid rtpmap payload type %q", parts[0])
	}
	return pt, parts[1], nil
}

// FMTP returns the space-separated fmtp parameters for the audio media, e.g.
// ALAC's "352 0 16 40 10 14 2 255 0 0 44100".
func FMTP(m *psdp.MediaDescription) ([]string, bool) {
	v, ok := attribute(m, "fmtp")
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return nil, false
	}
	return strings.Fields(parts[1]), true
}

// RSAAESKey returns the base64-decoded rsaaeskey attribute (the RSA-OAEP
// wrapped AES key), if carried.
func RSAAESKey(m *psdp.MediaDescription) ([]byte, bool) {
	v, ok := attribute(m, "rsaaeskey")
	if !ok {
		return nil, false
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		b, err = base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, false
		}
	}
	return b, true
}

// AESIV returns the base64-decoded aesiv attribute, if carried.
func AESIV(m *psdp.MediaDescription) ([]byte, bool) {
	v, ok := attribute(m, "aesiv")
	if !ok {
		return nil, false
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		b, err = base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, false
		}
	}
	return b, true
}

// Package discovery implements AirPlay device records, their TXT-record
// encoding, and the mDNS browse/advertise collaborator contract.
package discovery

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dialect distinguishes which of the two service types a Device was
// discovered under.
type Dialect int

const (
	DialectLegacy Dialect = iota
	DialectModern
)

// ServiceType is the mDNS service type string for each dialect.
const (
	ServiceTypeLegacy = "_raop._tcp"
	ServiceTypeModern = "_airplay._tcp"
)

// RAOPCapabilities is the legacy dialect's TXT-record contents.
type RAOPCapabilities struct {
	TxtVers      int
	Channels     int
	CodecIDs     []int  // `cn`: 0=PCM, 1=ALAC, 2=AAC, 3=AAC-ELD
	EncryptionID []int  // `et`: 0=none, 1=RSA, 3=FairPlay, 4=MFi-SAP, 5=FairPlay-SAPv2.5
	ModelName    string // `md`
	SampleRate   int    // `sr`
	SampleSize   int    // `ss`
	TimingPort   string // `tp`
	ServerVer    string // `vs`
	VoiceOverNet bool   // `vn`
	AuthMethod   string // `am`
	StatusFlags  string // `sf`
	Password     bool   // `pw`
}

// MarshalTXT renders the capabilities as the legacy TXT record.
func (c RAOPCapabilities) MarshalTXT() map[string]string {
	txt := map[string]string{
		"txtvers": strconv.Itoa(c.TxtVers),
		"ch":      strconv.Itoa(c.Channels),
		"cn":      joinInts(c.CodecIDs),
		"et":      joinInts(c.EncryptionID),
		"md":      c.ModelName,
		"sr":      strconv.Itoa(c.SampleRate),
		"ss":      strconv.Itoa(c.SampleSize),
		"tp":      c.TimingPort,
		"vs":      c.ServerVer,
		"am":      c.AuthMethod,
		"sf":      c.StatusFlags,
	}
	txt["vn"] = boolToFlag(c.VoiceOverNet)
	txt["pw"] = boolToFlag(c.Password)
	return txt
}

// UnmarshalRAOPTXT parses a legacy TXT record into RAOPCapabilities.
func UnmarshalRAOPTXT(txt map[string]string) RAOPCapabilities {
	return RAOPCapabilities{
		TxtVers:      atoiOr(txt["txtvers"], 0),
		Channels:     atoiOr(txt["ch"], 2),
		CodecIDs:     splitInts(txt["cn"]),
		EncryptionID: splitInts(txt["et"]),
		ModelName:    txt["md"],
		SampleRate:   atoiOr(txt["sr"], 44100),
		SampleSize:   atoiOr(txt["ss"], 16),
		TimingPort:   txt["tp"],
		ServerVer:    txt["vs"],
		VoiceOverNet: txt["vn"] == "1",
		AuthMethod:   txt["am"],
		StatusFlags:  txt["sf"],
		Password:     txt["pw"] == "1",
	}
}

// AudioFormat describes one entry of the modern dialect's supported audio
// formats list.
type AudioFormat struct {
	FormatID       int
	Channels       int
	SampleRates    []int
	BitDepths      []int
	EncryptionType int
}

// pairingIDNamespace scopes DerivePairingID's UUIDv5 derivation so it can't
// collide with an unrelated NewSHA1 use elsewhere.
var pairingIDNamespace = uuid.NewSHA1(uuid.Nil, []byte("airplay2.pi"))

// DerivePairingID deterministically derives the 36-character `pi` pairing
// identity from a device's `deviceid`, so the same device advertises the
// same pairing identity across restarts without persisting one separately.
func DerivePairingID(deviceID string) string {
	return uuid.NewSHA1(pairingIDNamespace, []byte(deviceID)).String()
}

// AirPlay2Capabilities is the modern dialect's feature set, carried both in
// TXT records and in the `/info` bplist body.
type AirPlay2Capabilities struct {
	DeviceID       string // `deviceid`
	Features       uint64 // `features`
	Model          string // `model`
	PublicKey      [32]byte
	PairingID      string // `pi`, UUID-format pairing identity
	SourceVersion  string // `srcvers`
	ProtocolVer    string // `protovers`
	SupportsPTP    bool
	AudioFormats   []AudioFormat
}

// MarshalTXT renders the capabilities as the modern TXT record. PairingID
// is used verbatim if set (a peer's advertised `pi` is opaque to us); a
// device advertising its own capabilities with no PairingID gets one
// derived deterministically from its DeviceID.
func (c AirPlay2Capabilities) MarshalTXT() map[string]string {
	pi := c.PairingID
	if pi == "" {
		pi = DerivePairingID(c.DeviceID)
	}
	return map[string]string{
		"deviceid":  c.DeviceID,
		"features":  strconv.FormatUint(c.Features, 16),
		"model":     c.Model,
		"pk":        hex.EncodeToString(c.PublicKey[:]),
		"pi":        pi,
		"srcvers":   c.SourceVersion,
		"protovers": c.ProtocolVer,
	}
}

// UnmarshalAirPlay2TXT parses a modern TXT record into AirPlay2Capabilities.
func UnmarshalAirPlay2TXT(txt map[string]string) (AirPlay2Capabilities, error) {
	c := AirPlay2Capabilities{
		DeviceID:      txt["deviceid"],
		Model:         txt["model"],
		PairingID:     txt["pi"],
		SourceVersion: txt["srcvers"],
		ProtocolVer:   txt["protovers"],
	}

	if f, ok := txt["features"]; ok {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return AirPlay2Capabilities{}, fmt.Errorf("discovery: invalid features hex %q: %w", f, err)
		}
		c.Features = v
	}

	if pk, ok := txt["pk"]; ok {
		raw, err := hex.DecodeString(pk)
		if err != nil || len(raw) != 32 {
			return AirPlay2Capabilities{}, fmt.Errorf("discovery: invalid pk hex %q", pk)
		}
		copy(c.PublicKey[:], raw)
	}

	return c, nil
}

// Device is a discovered AirPlay sender/receiver endpoint.
type Device struct {
	Name    string
	Dialect Dialect
	Host    string
	Port    int

	RAOP     RAOPCapabilities
	AirPlay2 AirPlay2Capabilities
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		out = append(out, atoiOr(strings.TrimSpace(p), 0))
	}
	return out
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func boolToFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

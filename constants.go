// Package airplay2 implements both ends of Apple's AirPlay audio streaming
// protocols: the legacy RAOP/AirPlay 1 dialect (RSA-wrapped AES keys, SDP,
// unencrypted RTSP) and the modern AirPlay 2 dialect (SRP-6a pairing,
// Curve25519 pair-verify, HKDF-derived ChaCha20-Poly1305 stream keys,
// bplist/TLV8 bodies).
package airplay2

// Legacy codec ids, carried in the `cn` TXT key and SDP fmtp lines.
const (
	CodecPCM = iota
	CodecALAC
	CodecAAC
	CodecAACELD
)

// Legacy encryption type ids, carried in the `et` TXT key.
const (
	EncryptionNone = iota
	EncryptionRSA
	_ // 2 is unused in the protocol
	EncryptionFairPlay
	EncryptionMFiSAP
	EncryptionFairPlaySAPv25
)

// RAOPRSAKeyBits is the modulus size a Receiver generates its legacy
// pairing keypair with. A sender obtains the matching public modulus out of
// band, typically from a prior session or device record; this package
// never hardcodes a shared modulus.
const RAOPRSAKeyBits = 2048

// mDNS service types.
const (
	ServiceTypeLegacy = "_raop._tcp"
	ServiceTypeModern = "_airplay._tcp"
)

// HomeKit-style pair-setup transient-mode fixed PIN.
const TransientPIN = "3939"

// Timeouts.
const (
	ControlIdleTimeoutSeconds    = 30
	PairingStepTimeoutSeconds    = 10
	TimingResponseTimeoutSeconds = 1
	DefaultUnderrunBudgetSeconds = 1
)

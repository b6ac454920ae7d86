// Package pairing implements both the legacy RSA-wrapped-AES-key exchange
// and the modern SRP-6a pair-setup / Curve25519 pair-verify handshakes. On
// success the modern engine emits the three 32-byte stream keys; the
// per-direction AEAD nonce counters that seal the control channel are kept
// by pkg/control's Writer and Reader, not here.
package pairing

// TLV8 item types used by pair-setup and pair-verify, per the HomeKit
// Accessory Protocol TLV dictionary this exchange is built on.
const (
	TLVMethod        byte = 0x00
	TLVIdentifier    byte = 0x01
	TLVSalt          byte = 0x02
	TLVPublicKey     byte = 0x03
	TLVProof         byte = 0x04
	TLVEncryptedData byte = 0x05
	TLVState         byte = 0x06
	TLVError         byte = 0x07
	TLVRetryDelay    byte = 0x08
	TLVSignature     byte = 0x0A
	TLVFlags         byte = 0x13
)

// TLV8 "State" (<M>) values.
const (
	State1 byte = 1
	State2 byte = 2
	State3 byte = 3
	State4 byte = 4
	State5 byte = 5
	State6 byte = 6
)

// TLV8 "Error" values.
const (
	ErrorUnknown     byte = 1
	ErrorAuthication byte = 2 // SRP proof or signature verification failed
	ErrorBackoff     byte = 3
	ErrorMaxPeers    byte = 4
	ErrorMaxTries    byte = 5
	ErrorUnavailable byte = 6
	ErrorBusy        byte = 7
)

// MethodPairSetup is the pair-setup "Method" TLV value.
const (
	MethodPairSetup byte = 0
)

// FlagsTransient marks a pair-setup session as transient (the fixed PIN
// "3939" pairing mode selected by the client header X-Apple-HKP: 4).
const FlagsTransient uint32 = 1 << 4

// identity salts used in the HKDF/Ed25519 transcripts below.
const (
	saltPairSetupEncrypt     = "Pair-Setup-Encrypt-Salt"
	infoPairSetupEncrypt     = "Pair-Setup-Encrypt-Info"
	saltPairSetupController = "Pair-Setup-Controller-Sign-Salt"
	saltPairSetupAccessory  = "Pair-Setup-Accessory-Sign-Salt"
	infoPairSetupController = "Pair-Setup-Controller-Sign-Info"
	infoPairSetupAccessory  = "Pair-Setup-Accessory-Sign-Info"

	saltPairVerifyEncrypt = "Pair-Verify-Encrypt-Salt"
	infoPairVerifyEncrypt = "Pair-Verify-Encrypt-Info"

	infoControlReadKey  = "Control-Read-Encryption-Key"
	infoControlWriteKey = "Control-Write-Encryption-Key"
	infoAudioKey        = "Audio-Key"
)

// nonceLabel pads an 8-byte ASCII label into a 12-byte ChaCha20-Poly1305
// nonce: 4 zero bytes followed by the label, matching the HAP convention of
// fixed per-message nonces (safe here because each label/key pair is used
// exactly once per pairing attempt).
func nonceLabel(label string) []byte {
	n := make([]byte, 12)
	copy(n[4:], label)
	return n
}

var (
	nonceM5 = nonceLabel("PS-Msg05")
	nonceM6 = nonceLabel("PS-Msg06")
	nonceV2 = nonceLabel("PV-Msg02")
	nonceV3 = nonceLabel("PV-Msg03")
)

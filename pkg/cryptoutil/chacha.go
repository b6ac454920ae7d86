package cryptoutil

import (
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the ChaCha20-Poly1305 nonce length used throughout the
// modern dialect.
const NonceSize = chacha20poly1305.NonceSize

// TagSize is the Poly1305 authentication tag length.
const TagSize = chacha20poly1305.Overhead

// ChaChaSeal encrypts plaintext under key/nonce, authenticating aad,
// appending a 16-byte tag.
func ChaChaSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// ChaChaOpen decrypts and verifies ciphertext (which includes the trailing
// tag) under key/nonce/aad. A tag mismatch is reported as an error; callers
// on the control channel must treat it as ErrCryptoTagFailure.
func ChaChaOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

// ControlNonce builds the 12-byte nonce for the encrypted control channel:
// 4 zero bytes followed by the little-endian 8-byte counter.
func ControlNonce(counter uint64) []byte {
	n := make([]byte, NonceSize)
	for i := 0; i < 8; i++ {
		n[4+i] = byte(counter >> (8 * i))
	}
	return n
}

// AudioNonce builds the 12-byte nonce for a modern RTP audio payload from
// the packet's SSRC and sequence number: 4 zero bytes, 4-byte big-endian
// SSRC at bytes 4-7, then the big-endian sequence number at bytes 8-9
// (the remaining 2 bytes reserved/zero).
func AudioNonce(ssrc uint32, sequence uint16) []byte {
	n := make([]byte, NonceSize)
	n[4] = byte(ssrc >> 24)
	n[5] = byte(ssrc >> 16)
	n[6] = byte(ssrc >> 8)
	n[7] = byte(ssrc)
	n[8] = byte(sequence >> 8)
	n[9] = byte(sequence)
	return n
}

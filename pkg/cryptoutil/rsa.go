// Package cryptoutil wraps the cryptographic primitives the pairing engine
// and audio transport depend on. The free functions here are pure; the only
// state in the package is held by the SRPClient and SRPServer values, which
// keep one exchange's ephemeral values and session key.
package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // RAOP mandates SHA-1 inside RSA-OAEP, not for general hashing
)

// RSAOAEPWrap encrypts key (the legacy 16-byte AES key) with RSA-OAEP-SHA1
// under pub, as carried in the SDP "rsaaeskey" attribute.
func RSAOAEPWrap(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, key, nil)
}

// RSAOAEPUnwrap decrypts an RSA-OAEP-SHA1 ciphertext with the receiver's
// private key.
func RSAOAEPUnwrap(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
}

// GenerateRSAKeyPair generates a fresh RSA keypair for a receiver at
// startup.
func GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, bits)
}

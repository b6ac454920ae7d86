package pairing

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
)

// GenerateLegacyKeys generates a random 16-byte AES key and IV for a new
// legacy streaming session.
func GenerateLegacyKeys() (LegacyKeys, error) {
	var k LegacyKeys
	if _, err := rand.Read(k.AESKey[:]); err != nil {
		return LegacyKeys{}, fmt.Errorf("pairing: %w", err)
	}
	if _, err := rand.Read(k.AESIV[:]); err != nil {
		return LegacyKeys{}, fmt.Errorf("pairing: %w", err)
	}
	return k, nil
}

// WrapLegacyKey RSA-OAEP-SHA1-encrypts k's AES key under the receiver's
// well-known public modulus, for placement in the SDP "rsaaeskey"
// attribute. The IV is carried in the clear in the SDP "aesiv" attribute.
func WrapLegacyKey(pub *rsa.PublicKey, k LegacyKeys) ([]byte, error) {
	return cryptoutil.RSAOAEPWrap(pub, k.AESKey[:])
}

// UnwrapLegacyKey is the receiver-side inverse: it RSA-OAEP-decrypts the
// wrapped key with the receiver's private key and pairs it with the
// cleartext IV carried alongside it.
func UnwrapLegacyKey(priv *rsa.PrivateKey, wrappedKey, iv []byte) (LegacyKeys, error) {
	key, err := cryptoutil.RSAOAEPUnwrap(priv, wrappedKey)
	if err != nil {
		return LegacyKeys{}, fmt.Errorf("pairing: %w", err)
	}
	if len(key) != 16 {
		return LegacyKeys{}, fmt.Errorf("pairing: unwrapped key has length %d, want 16", len(key))
	}
	if len(iv) != 16 {
		return LegacyKeys{}, fmt.Errorf("pairing: iv has length %d, want 16", len(iv))
	}

	var k LegacyKeys
	copy(k.AESKey[:], key)
	copy(k.AESIV[:], iv)
	return k, nil
}

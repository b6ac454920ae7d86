package cryptoutil

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFSHA512 derives outLen bytes from secret using the given salt and info
// strings.
func HKDFSHA512(secret, salt, info []byte, outLen int) ([]byte, error) {
	r := hkdf.New(sha512.New, secret, salt, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

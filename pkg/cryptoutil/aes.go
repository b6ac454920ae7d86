package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESCTRXOR encrypts or decrypts (the operation is symmetric) data using
// AES-128-CTR, used by MFi-SAP style legacy encryption variants. The result
// is returned in a new slice; data is left unchanged.
func AESCTRXOR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

// AESCBCEncryptPrefix encrypts only the block-aligned prefix of data
// (N - (N mod 16) bytes) with AES-128-CBC, leaving the trailing
// non-block-aligned bytes untouched, as requires for every legacy RTP audio
// payload. The returned slice has the same length as data: its prefix is
// ciphertext, its suffix is the original plaintext tail.
func AESCBCEncryptPrefix(key, iv []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}

	n := len(data) - (len(data) % aes.BlockSize)
	out := make([]byte, len(data))
	copy(out, data)

	if n > 0 {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[:n], data[:n])
	}

	return out, nil
}

// AESCBCDecryptPrefix is the receiver-side inverse of AESCBCEncryptPrefix.
func AESCBCDecryptPrefix(key, iv []byte, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}

	n := len(data) - (len(data) % aes.BlockSize)
	out := make([]byte, len(data))
	copy(out, data)

	if n > 0 {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out[:n], data[:n])
	}

	return out, nil
}

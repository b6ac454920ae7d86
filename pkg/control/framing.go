// Package control implements the AEAD framing applied to every RTSP
// message on the modern control channel once pair-verify completes:
// messages are split into <=1024-byte fragments, each sealed under
// ChaCha20-Poly1305 with a per-direction monotonically increasing 64-bit nonce
// counter, and framed as {u16 length, ciphertext, 16-byte tag}.
package control

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/liberrors"
)

const maxChunkSize = 1024

// Writer frames and encrypts outgoing control messages.
type Writer struct {
	w       io.Writer
	key     [32]byte
	counter uint64
}

// NewWriter creates a Writer using key for every frame it emits.
func NewWriter(w io.Writer, key [32]byte) *Writer {
	return &Writer{w: w, key: key}
}

// Counter returns the next nonce counter value that will be used; it is
// strictly increasing across the Writer's lifetime.
func (fw *Writer) Counter() uint64 { return fw.counter }

// WriteMessage frames and transmits one logical RTSP message, split into
// chunks of at most 1024 bytes.
func (fw *Writer) WriteMessage(msg []byte) error {
	if len(msg) == 0 {
		msg = []byte{}
	}

	for {
		n := len(msg)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		chunk := msg[:n]
		msg = msg[n:]

		var aad [2]byte
		binary.BigEndian.PutUint16(aad[:], uint16(n))

		nonce := cryptoutil.ControlNonce(fw.counter)
		ct, err := cryptoutil.ChaChaSeal(fw.key[:], nonce, aad[:], chunk)
		if err != nil {
			return fmt.Errorf("control: %w", err)
		}
		fw.counter++

		if _, err := fw.w.Write(aad[:]); err != nil {
			return err
		}
		if _, err := fw.w.Write(ct); err != nil {
			return err
		}

		if len(msg) == 0 {
			return nil
		}
	}
}

// Reader decrypts incoming control frames and exposes the reassembled
// plaintext byte stream through io.Reader, so that pkg/rtsp can parse
// messages from it exactly as it would an unencrypted connection.
type Reader struct {
	r       *bufio.Reader
	key     [32]byte
	counter uint64
	pending []byte
}

// NewReader creates a Reader using key to decrypt every frame it reads.
func NewReader(r io.Reader, key [32]byte) *Reader {
	return &Reader{r: bufio.NewReader(r), key: key}
}

// Counter returns the next expected nonce counter value.
func (fr *Reader) Counter() uint64 { return fr.counter }

// Read implements io.Reader, decrypting additional frames as needed.
func (fr *Reader) Read(p []byte) (int, error) {
	if len(fr.pending) == 0 {
		chunk, err := fr.readFrame()
		if err != nil {
			return 0, err
		}
		fr.pending = chunk
	}

	n := copy(p, fr.pending)
	fr.pending = fr.pending[n:]
	return n, nil
}

func (fr *Reader) readFrame() ([]byte, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(fr.r, lenBytes[:]); err != nil {
		return nil, err
	}
	plainLen := binary.BigEndian.Uint16(lenBytes[:])

	ct := make([]byte, int(plainLen)+cryptoutil.TagSize)
	if _, err := io.ReadFull(fr.r, ct); err != nil {
		return nil, err
	}

	nonce := cryptoutil.ControlNonce(fr.counter)
	pt, err := cryptoutil.ChaChaOpen(fr.key[:], nonce, lenBytes[:], ct)
	if err != nil {
		return nil, liberrors.ErrCryptoTagFailure{}
	}
	fr.counter++

	return pt, nil
}

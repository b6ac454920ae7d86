package control

import (
	"bytes"
	"io"
	"testing"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/liberrors"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func TestFramingRoundTripSingleChunk(t *testing.T) {
	key := testKey(0x11)
	var buf bytes.Buffer

	w := NewWriter(&buf, key)
	require.NoError(t, w.WriteMessage([]byte("OPTIONS * RTSP/1.0\r\n\r\n")))

	r := NewReader(&buf, key)
	got, err := io.ReadAll(io.LimitReader(r, int64(len("OPTIONS * RTSP/1.0\r\n\r\n"))))
	require.NoError(t, err)
	require.Equal(t, "OPTIONS * RTSP/1.0\r\n\r\n", string(got))
}

func TestFramingLengthFieldExcludesTag(t *testing.T) {
	key := testKey(0x77)
	var buf bytes.Buffer

	w := NewWriter(&buf, key)
	msg := []byte("hello")
	require.NoError(t, w.WriteMessage(msg))

	wire := buf.Bytes()
	length := int(wire[0])<<8 | int(wire[1])
	require.Equal(t, len(msg), length)
	require.Len(t, wire, 2+length+cryptoutil.TagSize)
}

func TestFramingSplitsLargeMessageIntoChunks(t *testing.T) {
	key := testKey(0x22)
	var buf bytes.Buffer

	msg := bytes.Repeat([]byte{'a'}, 2500)
	w := NewWriter(&buf, key)
	require.NoError(t, w.WriteMessage(msg))
	require.Equal(t, uint64(3), w.Counter())

	r := NewReader(&buf, key)
	got := make([]byte, len(msg))
	_, err := io.ReadFull(r, got)
	require.NoError(t, err)
	require.Equal(t, msg, got)
	require.Equal(t, uint64(3), r.Counter())
}

func TestFramingCounterIsMonotonic(t *testing.T) {
	key := testKey(0x33)
	var buf bytes.Buffer
	w := NewWriter(&buf, key)

	require.NoError(t, w.WriteMessage([]byte("first")))
	require.Equal(t, uint64(1), w.Counter())
	require.NoError(t, w.WriteMessage([]byte("second")))
	require.Equal(t, uint64(2), w.Counter())
}

func TestFramingTamperedCiphertextFailsTag(t *testing.T) {
	key := testKey(0x44)
	var buf bytes.Buffer
	w := NewWriter(&buf, key)
	require.NoError(t, w.WriteMessage([]byte("hello")))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // flip a byte inside the tag

	r := NewReader(bytes.NewReader(raw), key)
	_, err := r.Read(make([]byte, 5))
	require.Error(t, err)
	require.IsType(t, liberrors.ErrCryptoTagFailure{}, err)
}

func TestFramingWrongKeyFailsTag(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, testKey(0x55))
	require.NoError(t, w.WriteMessage([]byte("hello")))

	r := NewReader(&buf, testKey(0x66))
	_, err := r.Read(make([]byte, 5))
	require.Error(t, err)
	require.IsType(t, liberrors.ErrCryptoTagFailure{}, err)
}

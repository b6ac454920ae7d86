package tlv8

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		{Type: 0x06, Value: []byte{0x01}},
		{Type: 0x03, Value: []byte("abc")},
	}
	enc := Encode(items)
	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, dec, 2)
	require.Equal(t, items[0].Value, dec[0].Value)
	require.Equal(t, items[1].Value, dec[1].Value)
}

func TestFragmentationOver255Bytes(t *testing.T) {
	value := bytes.Repeat([]byte{0xAB}, 600)
	items := []Item{{Type: 0x09, Value: value}}
	enc := Encode(items)

	// three fragments: 255 + 255 + 90
	require.Equal(t, 600+6, len(enc))

	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, dec, 1)
	require.Equal(t, value, dec[0].Value)
}

func TestGet(t *testing.T) {
	items := []Item{{Type: 0x01, Value: []byte{0x02}}}
	v, ok := Get(items, 0x01)
	require.True(t, ok)
	require.Equal(t, []byte{0x02}, v)

	_, ok = Get(items, 0x99)
	require.False(t, ok)
}

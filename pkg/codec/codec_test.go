package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCMRoundTrip(t *testing.T) {
	c := PCMCodec{Channels: 2}
	pcm := []int16{0, 1, -1, 32767, -32768, 1234}

	payload, err := c.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, payload, len(pcm)*2)

	got, err := c.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, pcm, got)
}

func TestPCMEncodeIsBigEndian(t *testing.T) {
	c := PCMCodec{Channels: 2}
	payload, err := c.Encode([]int16{0x0102})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, payload)
}

package airplay2

import (
	"testing"

	"github.com/jburnhams/airplay2/pkg/discovery"
	"github.com/stretchr/testify/require"
)

func TestInfoBodyCarriesRequiredKeys(t *testing.T) {
	d := LocalDevice{
		Name: "Living Room",
		AirPlay2: discovery.AirPlay2Capabilities{
			DeviceID:      "AA:BB:CC:DD:EE:FF",
			Model:         "AudioAccessory5,1",
			PairingID:     "11111111-2222-3333-4444-555555555555",
			SourceVersion: "690.7.1",
			AudioFormats: []discovery.AudioFormat{
				{FormatID: 0, Channels: 2, SampleRates: []int{44100}, BitDepths: []int{16}},
			},
		},
	}

	body := d.InfoBody()

	deviceID, ok := body.Get("deviceid")
	require.True(t, ok)
	s, err := deviceID.AsString()
	require.NoError(t, err)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", s)

	name, ok := body.Get("name")
	require.True(t, ok)
	s, err = name.AsString()
	require.NoError(t, err)
	require.Equal(t, "Living Room", s)

	formats, ok := body.Get("audioFormats")
	require.True(t, ok)
	require.Len(t, formats.Array, 1)

	formatEntry := formats.Array[0]
	ch, ok := formatEntry.Get("ch")
	require.True(t, ok)
	chVal, err := ch.AsInt()
	require.NoError(t, err)
	require.Equal(t, int64(2), chVal)
}

func TestInfoBodyDerivesPairingIDWhenUnset(t *testing.T) {
	d := LocalDevice{
		AirPlay2: discovery.AirPlay2Capabilities{DeviceID: "AA:BB:CC:DD:EE:FF"},
	}

	body := d.InfoBody()

	pi, ok := body.Get("pi")
	require.True(t, ok)
	s, err := pi.AsString()
	require.NoError(t, err)
	require.Equal(t, discovery.DerivePairingID("AA:BB:CC:DD:EE:FF"), s)
}

package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRAOPCapabilitiesTXTRoundTrip(t *testing.T) {
	c := RAOPCapabilities{
		TxtVers:      1,
		Channels:     2,
		CodecIDs:     []int{0, 1},
		EncryptionID: []int{0, 1},
		ModelName:    "AppleTV3,2",
		SampleRate:   44100,
		SampleSize:   16,
		TimingPort:   "6002",
		ServerVer:    "220.68",
		AuthMethod:   "4",
		StatusFlags:  "0x4",
		Password:     false,
	}

	txt := c.MarshalTXT()
	require.Equal(t, "0,1", txt["cn"])
	require.Equal(t, "44100", txt["sr"])

	got := UnmarshalRAOPTXT(txt)
	require.Equal(t, c.CodecIDs, got.CodecIDs)
	require.Equal(t, c.EncryptionID, got.EncryptionID)
	require.Equal(t, c.SampleRate, got.SampleRate)
	require.Equal(t, c.ModelName, got.ModelName)
	require.False(t, got.Password)
}

func TestAirPlay2CapabilitiesTXTRoundTrip(t *testing.T) {
	c := AirPlay2Capabilities{
		DeviceID:      "AA:BB:CC:DD:EE:FF",
		Features:      0x405203FE,
		Model:         "AudioAccessory5,1",
		PairingID:     "11111111-2222-3333-4444-555555555555",
		SourceVersion: "690.7.1",
		ProtocolVer:   "1.1",
	}
	c.PublicKey[0] = 0xAB
	c.PublicKey[31] = 0xCD

	txt := c.MarshalTXT()
	got, err := UnmarshalAirPlay2TXT(txt)
	require.NoError(t, err)
	require.Equal(t, c.DeviceID, got.DeviceID)
	require.Equal(t, c.Features, got.Features)
	require.Equal(t, c.PublicKey, got.PublicKey)
	require.Equal(t, c.PairingID, got.PairingID)
}

func TestAirPlay2CapabilitiesDerivesPairingIDWhenUnset(t *testing.T) {
	c := AirPlay2Capabilities{DeviceID: "AA:BB:CC:DD:EE:FF"}

	txt := c.MarshalTXT()
	want := DerivePairingID("AA:BB:CC:DD:EE:FF")
	require.Equal(t, want, txt["pi"])
	require.Len(t, txt["pi"], 36)

	// deterministic: same device id, same pi, every time.
	require.Equal(t, want, DerivePairingID("AA:BB:CC:DD:EE:FF"))
	require.NotEqual(t, want, DerivePairingID("00:00:00:00:00:00"))
}

func TestUnmarshalAirPlay2TXTRejectsBadHex(t *testing.T) {
	_, err := UnmarshalAirPlay2TXT(map[string]string{"features": "not-hex"})
	require.Error(t, err)

	_, err = UnmarshalAirPlay2TXT(map[string]string{"pk": "zz"})
	require.Error(t, err)
}

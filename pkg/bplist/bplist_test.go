package bplist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripScalarTypes(t *testing.T) {
	v := NewDict(map[string]Value{
		"deviceid": NewString("AA:BB:CC:DD:EE:FF"),
		"features": NewInt(0x527FFFF7),
		"pk":       NewBytes([]byte{0x01, 0x02, 0x03, 0x04}),
		"volume":   NewReal(-15.0),
		"supportsPTP": NewBool(true),
		"nested": NewArray(NewInt(1), NewInt(2), NewString("three")),
	})

	enc, err := Encode(v)
	require.NoError(t, err)
	require.True(t, len(enc) > 8 && string(enc[:8]) == "bplist00")

	dec, err := Decode(enc)
	require.NoError(t, err)

	require.Equal(t, KindDict, dec.Kind)
	name, err := dec.Dict["deviceid"].AsString()
	require.NoError(t, err)
	require.Equal(t, "AA:BB:CC:DD:EE:FF", name)

	feat, err := dec.Dict["features"].AsInt()
	require.NoError(t, err)
	require.Equal(t, int64(0x527FFFF7), feat)

	pk, err := dec.Dict["pk"].AsBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, pk)

	require.InDelta(t, -15.0, dec.Dict["volume"].Real, 0.0001)
	require.True(t, dec.Dict["supportsPTP"].Bool)

	nested := dec.Dict["nested"]
	require.Equal(t, KindArray, nested.Kind)
	require.Len(t, nested.Array, 3)
	s, err := nested.Array[2].AsString()
	require.NoError(t, err)
	require.Equal(t, "three", s)
}

func TestRoundTripEmptyContainers(t *testing.T) {
	v := NewDict(map[string]Value{
		"empty_arr": NewArray(),
	})
	enc, err := Encode(v)
	require.NoError(t, err)
	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, dec.Dict["empty_arr"].Array, 0)
}

func TestRoundTripLargeArray(t *testing.T) {
	items := make([]Value, 20)
	for i := range items {
		items[i] = NewInt(int64(i))
	}
	v := NewArray(items...)
	enc, err := Encode(v)
	require.NoError(t, err)
	dec, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, dec.Array, 20)
	for i := range items {
		n, err := dec.Array[i].AsInt()
		require.NoError(t, err)
		require.Equal(t, int64(i), n)
	}
}

func TestRoundTripUnicodeString(t *testing.T) {
	v := NewString("Living Room ♫")
	enc, err := Encode(v)
	require.NoError(t, err)
	dec, err := Decode(enc)
	require.NoError(t, err)
	s, err := dec.AsString()
	require.NoError(t, err)
	require.Equal(t, "Living Room ♫", s)
}

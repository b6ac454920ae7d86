package pairing

import (
	"testing"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/stretchr/testify/require"
)

func TestLegacyWrapUnwrapRoundTrip(t *testing.T) {
	priv, err := cryptoutil.GenerateRSAKeyPair(2048)
	require.NoError(t, err)

	keys, err := GenerateLegacyKeys()
	require.NoError(t, err)

	wrapped, err := WrapLegacyKey(&priv.PublicKey, keys)
	require.NoError(t, err)

	got, err := UnwrapLegacyKey(priv, wrapped, keys.AESIV[:])
	require.NoError(t, err)
	require.Equal(t, keys.AESKey, got.AESKey)
	require.Equal(t, keys.AESIV, got.AESIV)
}

func TestLegacyKeysZero(t *testing.T) {
	keys, err := GenerateLegacyKeys()
	require.NoError(t, err)
	keys.Zero()
	require.Equal(t, [16]byte{}, keys.AESKey)
	require.Equal(t, [16]byte{}, keys.AESIV)
}

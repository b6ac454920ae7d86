package pairing

import (
	"crypto/ed25519"
	"testing"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/stretchr/testify/require"
)

func TestPairVerifyBothSidesDeriveIdenticalKeys(t *testing.T) {
	clientLTPK, clientLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)
	serverLTPK, serverLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client, err := NewClientPairVerify("client-1", clientLTSK, serverLTPK)
	require.NoError(t, err)
	lookup := func(identifier string) (ed25519.PublicKey, bool) {
		if identifier == "client-1" {
			return clientLTPK, true
		}
		return nil, false
	}
	server, err := NewServerPairVerify("server-1", serverLTSK, lookup)
	require.NoError(t, err)

	m1 := client.StartM1()
	m2, err := server.HandleM1(m1)
	require.NoError(t, err)

	m3, err := client.HandleM2(m2)
	require.NoError(t, err)

	serverKeys, err := server.HandleM3(m3)
	require.NoError(t, err)

	clientKeys, err := client.DeriveKeys()
	require.NoError(t, err)

	// Each side names its keys from its own perspective: the server's write
	// key is the client's read key and vice versa.
	require.Equal(t, clientKeys.ControlReadKey, serverKeys.ControlWriteKey)
	require.Equal(t, clientKeys.ControlWriteKey, serverKeys.ControlReadKey)
	require.Equal(t, clientKeys.AudioKey, serverKeys.AudioKey)
	require.NotEqual(t, clientKeys.ControlReadKey, clientKeys.ControlWriteKey)
}

func TestPairVerifyUnknownPeerFails(t *testing.T) {
	clientLTPK, clientLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)
	serverLTPK, serverLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client, err := NewClientPairVerify("stranger", clientLTSK, serverLTPK)
	require.NoError(t, err)
	lookup := func(string) (ed25519.PublicKey, bool) { return nil, false }
	server, err := NewServerPairVerify("server-2", serverLTSK, lookup)
	require.NoError(t, err)

	m2, err := server.HandleM1(client.StartM1())
	require.NoError(t, err)
	m3, err := client.HandleM2(m2)
	require.NoError(t, err)

	_, err = server.HandleM3(m3)
	require.ErrorIs(t, err, ErrUnknownPeer)
}

func TestPairVerifyTamperedSignatureFails(t *testing.T) {
	clientLTPK, clientLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)
	serverLTPK, serverLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client, err := NewClientPairVerify("client-3", clientLTSK, serverLTPK)
	require.NoError(t, err)
	lookup := func(identifier string) (ed25519.PublicKey, bool) {
		// a different key than the client actually signed with.
		other, _, _ := cryptoutil.GenerateEd25519KeyPair()
		_ = clientLTPK
		return other, true
	}
	server, err := NewServerPairVerify("server-3", serverLTSK, lookup)
	require.NoError(t, err)

	m2, err := server.HandleM1(client.StartM1())
	require.NoError(t, err)
	m3, err := client.HandleM2(m2)
	require.NoError(t, err)

	_, err = server.HandleM3(m3)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

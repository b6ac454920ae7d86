package pairing

import (
	"testing"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/tlv8"
	"github.com/stretchr/testify/require"
)

func TestPairSetupTransientSixMessages(t *testing.T) {
	srvLTPK, srvLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	cltLTPK, cltLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client := NewClientPairSetup("client-001", cltLTPK, cltLTSK, "3939", true)
	server := NewServerPairSetup("server-001", srvLTPK, srvLTSK, "3939")

	m1 := client.StartM1()
	require.True(t, server.transient == false) // not yet processed

	m2, err := server.HandleM1(m1)
	require.NoError(t, err)
	require.True(t, server.transient)

	m3, err := client.HandleM2(m2)
	require.NoError(t, err)

	m4, err := server.HandleM3(m3)
	require.NoError(t, err)

	m5, err := client.HandleM4(m4)
	require.NoError(t, err)

	m6, serverPeer, err := server.HandleM5(m5)
	require.NoError(t, err)
	require.Equal(t, "client-001", serverPeer.Identifier)

	clientPeer, err := client.HandleM6(m6)
	require.NoError(t, err)
	require.Equal(t, "server-001", clientPeer.Identifier)

	require.Equal(t, client.key, server.key)
}

func TestPairSetupWrongPINFailsAtM3(t *testing.T) {
	srvLTPK, srvLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	cltLTPK, cltLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client := NewClientPairSetup("client-002", cltLTPK, cltLTSK, "0000", true)
	server := NewServerPairSetup("server-002", srvLTPK, srvLTSK, "3939")

	m2, err := server.HandleM1(client.StartM1())
	require.NoError(t, err)

	m3, err := client.HandleM2(m2)
	require.NoError(t, err)

	_, err = server.HandleM3(m3)
	require.ErrorIs(t, err, ErrSRPProofMismatch)
}

func TestTLV8StateValuesMatchSpec(t *testing.T) {
	cltLTPK, cltLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	client := NewClientPairSetup("c", cltLTPK, cltLTSK, "3939", true)
	m1 := client.StartM1()
	state, ok := tlv8.Get(m1, TLVState)
	require.True(t, ok)
	require.Equal(t, []byte{State1}, state)
}

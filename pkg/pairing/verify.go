package pairing

import (
	"crypto/ed25519"
	"fmt"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/tlv8"
)

// PeerLookup resolves a previously-paired peer's long-term public key by
// identifier, backed by a KeyStore.
type PeerLookup func(identifier string) (ed25519.PublicKey, bool)

// ClientPairVerify drives the sender side of pair-verify: an ephemeral
// Curve25519 exchange, mutually authenticated by Ed25519 signatures over a
// transcript of both ephemeral public keys and both pairing identities.
type ClientPairVerify struct {
	identity string
	ltsk     ed25519.PrivateKey
	peerLTPK ed25519.PublicKey

	ephPriv, ephPub [32]byte
	peerEphPub      [32]byte
	shared          []byte
}

// NewClientPairVerify creates a client for a peer whose long-term public
// key is already known (obtained from a prior pair-setup or from the host's
// KeyStore).
func NewClientPairVerify(identity string, ltsk ed25519.PrivateKey, peerLTPK ed25519.PublicKey) (*ClientPairVerify, error) {
	priv, pub, err := cryptoutil.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	return &ClientPairVerify{identity: identity, ltsk: ltsk, peerLTPK: peerLTPK, ephPriv: priv, ephPub: pub}, nil
}

// StartM1 builds the first pair-verify message.
func (c *ClientPairVerify) StartM1() []tlv8.Item {
	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State1}},
		{Type: TLVPublicKey, Value: c.ephPub[:]},
	}
}

// HandleM2 verifies the server's ephemeral key and identity proof and
// returns M3, the client's own signed proof.
func (c *ClientPairVerify) HandleM2(items []tlv8.Item) ([]tlv8.Item, error) {
	peerPubBytes, ok := tlv8.Get(items, TLVPublicKey)
	if !ok || len(peerPubBytes) != 32 {
		return nil, fmt.Errorf("pairing: M2 missing/invalid public key")
	}
	copy(c.peerEphPub[:], peerPubBytes)

	shared, err := cryptoutil.X25519(c.ephPriv, c.peerEphPub)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	c.shared = shared

	encKey, err := cryptoutil.HKDFSHA512(shared, []byte(saltPairVerifyEncrypt), []byte(infoPairVerifyEncrypt), 32)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	ct, ok := tlv8.Get(items, TLVEncryptedData)
	if !ok {
		return nil, fmt.Errorf("pairing: M2 missing encrypted data")
	}
	plain, err := cryptoutil.ChaChaOpen(encKey, nonceV2, nil, ct)
	if err != nil {
		return nil, ErrSignatureMismatch
	}

	inner, err := tlv8.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	serverIdentity, ok := tlv8.Get(inner, TLVIdentifier)
	if !ok {
		return nil, fmt.Errorf("pairing: M2 missing identifier")
	}
	sig, ok := tlv8.Get(inner, TLVSignature)
	if !ok {
		return nil, fmt.Errorf("pairing: M2 missing signature")
	}

	transcript := append(append([]byte{}, c.peerEphPub[:]...), serverIdentity...)
	transcript = append(transcript, c.ephPub[:]...)
	if !cryptoutil.Ed25519Verify(c.peerLTPK, transcript, sig) {
		return nil, ErrSignatureMismatch
	}

	myTranscript := append(append([]byte{}, c.ephPub[:]...), []byte(c.identity)...)
	myTranscript = append(myTranscript, c.peerEphPub[:]...)
	mySig := cryptoutil.Ed25519Sign(c.ltsk, myTranscript)

	outInner := tlv8.Encode([]tlv8.Item{
		{Type: TLVIdentifier, Value: []byte(c.identity)},
		{Type: TLVSignature, Value: mySig},
	})
	outCt, err := cryptoutil.ChaChaSeal(encKey, nonceV3, nil, outInner)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State3}},
		{Type: TLVEncryptedData, Value: outCt},
	}, nil
}

// DeriveKeys derives the three stream keys from the pair-verify shared
// secret, once M4 (the server's final 200 OK) has been observed.
func (c *ClientPairVerify) DeriveKeys() (ModernKeys, error) {
	return deriveModernKeys(c.shared)
}

// ServerPairVerify drives the receiver side of pair-verify.
type ServerPairVerify struct {
	identity string
	ltsk     ed25519.PrivateKey
	lookup   PeerLookup

	ephPriv, ephPub [32]byte
	peerEphPub      [32]byte
	shared          []byte
}

// NewServerPairVerify creates a server. lookup resolves a claimed client
// identity to its previously-paired long-term public key.
func NewServerPairVerify(identity string, ltsk ed25519.PrivateKey, lookup PeerLookup) (*ServerPairVerify, error) {
	priv, pub, err := cryptoutil.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	return &ServerPairVerify{identity: identity, ltsk: ltsk, lookup: lookup, ephPriv: priv, ephPub: pub}, nil
}

// HandleM1 consumes the client's ephemeral key and returns M2: the server's
// ephemeral key plus its own signed identity proof.
func (s *ServerPairVerify) HandleM1(items []tlv8.Item) ([]tlv8.Item, error) {
	peerPubBytes, ok := tlv8.Get(items, TLVPublicKey)
	if !ok || len(peerPubBytes) != 32 {
		return nil, fmt.Errorf("pairing: M1 missing/invalid public key")
	}
	copy(s.peerEphPub[:], peerPubBytes)

	shared, err := cryptoutil.X25519(s.ephPriv, s.peerEphPub)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	s.shared = shared

	encKey, err := cryptoutil.HKDFSHA512(shared, []byte(saltPairVerifyEncrypt), []byte(infoPairVerifyEncrypt), 32)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	transcript := append(append([]byte{}, s.ephPub[:]...), []byte(s.identity)...)
	transcript = append(transcript, s.peerEphPub[:]...)
	sig := cryptoutil.Ed25519Sign(s.ltsk, transcript)

	inner := tlv8.Encode([]tlv8.Item{
		{Type: TLVIdentifier, Value: []byte(s.identity)},
		{Type: TLVSignature, Value: sig},
	})
	ct, err := cryptoutil.ChaChaSeal(encKey, nonceV2, nil, inner)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State2}},
		{Type: TLVPublicKey, Value: s.ephPub[:]},
		{Type: TLVEncryptedData, Value: ct},
	}, nil
}

// HandleM3 verifies the client's identity proof and, on success, returns
// the negotiated stream keys. A session permanently fails — AuthFailed — if
// this check fails.
func (s *ServerPairVerify) HandleM3(items []tlv8.Item) (ModernKeys, error) {
	encKey, err := cryptoutil.HKDFSHA512(s.shared, []byte(saltPairVerifyEncrypt), []byte(infoPairVerifyEncrypt), 32)
	if err != nil {
		return ModernKeys{}, fmt.Errorf("pairing: %w", err)
	}

	ct, ok := tlv8.Get(items, TLVEncryptedData)
	if !ok {
		return ModernKeys{}, fmt.Errorf("pairing: M3 missing encrypted data")
	}
	plain, err := cryptoutil.ChaChaOpen(encKey, nonceV3, nil, ct)
	if err != nil {
		return ModernKeys{}, ErrSignatureMismatch
	}

	inner, err := tlv8.Decode(plain)
	if err != nil {
		return ModernKeys{}, fmt.Errorf("pairing: %w", err)
	}
	clientIdentity, ok := tlv8.Get(inner, TLVIdentifier)
	if !ok {
		return ModernKeys{}, fmt.Errorf("pairing: M3 missing identifier")
	}
	sig, ok := tlv8.Get(inner, TLVSignature)
	if !ok {
		return ModernKeys{}, fmt.Errorf("pairing: M3 missing signature")
	}

	peerLTPK, ok := s.lookup(string(clientIdentity))
	if !ok {
		return ModernKeys{}, ErrUnknownPeer
	}

	transcript := append(append([]byte{}, s.peerEphPub[:]...), clientIdentity...)
	transcript = append(transcript, s.ephPub[:]...)
	if !cryptoutil.Ed25519Verify(peerLTPK, transcript, sig) {
		return ModernKeys{}, ErrSignatureMismatch
	}

	// Server is the one that receives on "write" and writes on "read" from
	// the client's perspective; key roles are swapped symmetrically below so
	// both sides agree byte-for-byte.
	return deriveModernKeysSwapped(s.shared)
}

func deriveModernKeys(shared []byte) (ModernKeys, error) {
	var k ModernKeys
	readKey, err := cryptoutil.HKDFSHA512(shared, []byte(saltPairVerifyEncrypt), []byte(infoControlReadKey), 32)
	if err != nil {
		return k, fmt.Errorf("pairing: %w", err)
	}
	writeKey, err := cryptoutil.HKDFSHA512(shared, []byte(saltPairVerifyEncrypt), []byte(infoControlWriteKey), 32)
	if err != nil {
		return k, fmt.Errorf("pairing: %w", err)
	}
	audioKey, err := cryptoutil.HKDFSHA512(shared, []byte(saltPairVerifyEncrypt), []byte(infoAudioKey), 32)
	if err != nil {
		return k, fmt.Errorf("pairing: %w", err)
	}
	copy(k.ControlReadKey[:], readKey)
	copy(k.ControlWriteKey[:], writeKey)
	copy(k.AudioKey[:], audioKey)
	return k, nil
}

// deriveModernKeysSwapped derives the same key material as deriveModernKeys
// but with the read/write roles swapped, so that the client's write key is
// the server's read key and vice versa.
func deriveModernKeysSwapped(shared []byte) (ModernKeys, error) {
	k, err := deriveModernKeys(shared)
	if err != nil {
		return k, err
	}
	k.ControlReadKey, k.ControlWriteKey = k.ControlWriteKey, k.ControlReadKey
	return k, nil
}

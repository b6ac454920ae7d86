package pairing

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/tlv8"
)

// identityPairSetup is the SRP "identity" string used for every pair-setup
// exchange, per the HomeKit Accessory Protocol convention this handshake is
// built on.
const identityPairSetup = "Pair-Setup"

// ClientPairSetup drives the sender side of the SRP-6a pair-setup dialogue:
// six TLV8 messages (M1..M6) producing a shared SRP session key K, which is
// not itself a stream key but authenticates the subsequent pair-verify.
type ClientPairSetup struct {
	pin       string
	transient bool

	identity string
	ltpk     ed25519.PublicKey
	ltsk     ed25519.PrivateKey

	srp    *cryptoutil.SRPClient
	salt   []byte
	pubB   *big.Int
	m1     []byte
	key    []byte
}

// NewClientPairSetup creates a client for a transient (PIN "3939") or
// PIN-based pairing attempt. identity is the client's own pairing
// identifier, persisted by the host across sessions; ltpk/ltsk is the same
// long-term Ed25519 identity the caller will later present to
// NewClientPairVerify, so the receiver recognizes it across sessions.
func NewClientPairSetup(identity string, ltpk ed25519.PublicKey, ltsk ed25519.PrivateKey, pin string, transient bool) *ClientPairSetup {
	return &ClientPairSetup{
		pin:       pin,
		transient: transient,
		identity:  identity,
		ltpk:      ltpk,
		ltsk:      ltsk,
	}
}

// StartM1 builds the first pair-setup message.
func (c *ClientPairSetup) StartM1() []tlv8.Item {
	items := []tlv8.Item{
		{Type: TLVState, Value: []byte{State1}},
		{Type: TLVMethod, Value: []byte{MethodPairSetup}},
	}
	if c.transient {
		items = append(items, tlv8.Item{Type: TLVFlags, Value: uint32LE(FlagsTransient)})
	}
	return items
}

// HandleM2 consumes the server's salt and public key B and returns M3
// (the client's public key A and evidence M1).
func (c *ClientPairSetup) HandleM2(items []tlv8.Item) ([]tlv8.Item, error) {
	salt, ok := tlv8.Get(items, TLVSalt)
	if !ok {
		return nil, fmt.Errorf("pairing: M2 missing salt")
	}
	pubBBytes, ok := tlv8.Get(items, TLVPublicKey)
	if !ok {
		return nil, fmt.Errorf("pairing: M2 missing public key")
	}

	srp, err := cryptoutil.NewSRPClient(identityPairSetup, c.pin)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	c.srp = srp
	c.salt = salt
	c.pubB = new(big.Int).SetBytes(pubBBytes)

	key, m1, err := srp.ComputeKey(salt, c.pubB)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	c.key = key
	c.m1 = m1

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State3}},
		{Type: TLVPublicKey, Value: srp.PublicA().Bytes()},
		{Type: TLVProof, Value: m1},
	}, nil
}

// HandleM4 verifies the server's evidence M2 and returns the encrypted M5
// message carrying the client's long-term identity, signed over the
// pair-setup transcript.
func (c *ClientPairSetup) HandleM4(items []tlv8.Item) ([]tlv8.Item, error) {
	m2, ok := tlv8.Get(items, TLVProof)
	if !ok {
		return nil, fmt.Errorf("pairing: M4 missing proof")
	}
	if !c.srp.VerifyServerProof(c.m1, m2) {
		return nil, ErrSRPProofMismatch
	}

	encKey, err := cryptoutil.HKDFSHA512(c.key, []byte(saltPairSetupEncrypt), []byte(infoPairSetupEncrypt), 32)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	signKey, err := cryptoutil.HKDFSHA512(c.key, []byte(saltPairSetupController), []byte(infoPairSetupController), 32)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	transcript := append(append([]byte{}, signKey...), []byte(c.identity)...)
	transcript = append(transcript, c.ltpk...)
	sig := cryptoutil.Ed25519Sign(c.ltsk, transcript)

	inner := tlv8.Encode([]tlv8.Item{
		{Type: TLVIdentifier, Value: []byte(c.identity)},
		{Type: TLVPublicKey, Value: c.ltpk},
		{Type: TLVSignature, Value: sig},
	})

	ct, err := cryptoutil.ChaChaSeal(encKey, nonceM5, nil, inner)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State5}},
		{Type: TLVEncryptedData, Value: ct},
	}, nil
}

// HandleM6 decrypts and verifies the server's long-term identity proof,
// completing pair-setup. It returns the server's PeerInfo for the host to
// persist.
func (c *ClientPairSetup) HandleM6(items []tlv8.Item) (PeerInfo, error) {
	ct, ok := tlv8.Get(items, TLVEncryptedData)
	if !ok {
		return PeerInfo{}, fmt.Errorf("pairing: M6 missing encrypted data")
	}

	encKey, err := cryptoutil.HKDFSHA512(c.key, []byte(saltPairSetupEncrypt), []byte(infoPairSetupEncrypt), 32)
	if err != nil {
		return PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}

	plain, err := cryptoutil.ChaChaOpen(encKey, nonceM6, nil, ct)
	if err != nil {
		return PeerInfo{}, ErrSRPProofMismatch
	}

	inner, err := tlv8.Decode(plain)
	if err != nil {
		return PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}

	identifier, ok := tlv8.Get(inner, TLVIdentifier)
	if !ok {
		return PeerInfo{}, fmt.Errorf("pairing: M6 missing identifier")
	}
	ltpk, ok := tlv8.Get(inner, TLVPublicKey)
	if !ok {
		return PeerInfo{}, fmt.Errorf("pairing: M6 missing public key")
	}
	sig, ok := tlv8.Get(inner, TLVSignature)
	if !ok {
		return PeerInfo{}, fmt.Errorf("pairing: M6 missing signature")
	}

	signKey, err := cryptoutil.HKDFSHA512(c.key, []byte(saltPairSetupAccessory), []byte(infoPairSetupAccessory), 32)
	if err != nil {
		return PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}
	transcript := append(append([]byte{}, signKey...), identifier...)
	transcript = append(transcript, ltpk...)
	if !cryptoutil.Ed25519Verify(ed25519.PublicKey(ltpk), transcript, sig) {
		return PeerInfo{}, ErrSRPProofMismatch
	}

	return PeerInfo{Identifier: string(identifier), PublicKey: ed25519.PublicKey(ltpk)}, nil
}

// ServerPairSetup drives the receiver side of pair-setup.
type ServerPairSetup struct {
	identity string
	ltpk     ed25519.PublicKey
	ltsk     ed25519.PrivateKey
	pin      string

	srp       *cryptoutil.SRPServer
	salt      []byte
	pubA      *big.Int
	key       []byte
	transient bool
}

// NewServerPairSetup creates a server for the given accessory long-term
// identity and PIN.
func NewServerPairSetup(identity string, ltpk ed25519.PublicKey, ltsk ed25519.PrivateKey, pin string) *ServerPairSetup {
	return &ServerPairSetup{identity: identity, ltpk: ltpk, ltsk: ltsk, pin: pin}
}

// HandleM1 consumes the client's M1 and returns M2 (salt and server public
// value B).
func (s *ServerPairSetup) HandleM1(items []tlv8.Item) ([]tlv8.Item, error) {
	if flags, ok := tlv8.Get(items, TLVFlags); ok && len(flags) == 4 {
		s.transient = uint32FromLE(flags)&FlagsTransient != 0
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	s.salt = salt

	verifier := cryptoutil.SRPComputeVerifier(identityPairSetup, s.pin, salt)
	srv, err := cryptoutil.NewSRPServer(verifier)
	if err != nil {
		return nil, fmt.Errorf("pairing: %w", err)
	}
	s.srp = srv

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State2}},
		{Type: TLVPublicKey, Value: srv.PublicB().Bytes()},
		{Type: TLVSalt, Value: salt},
	}, nil
}

// HandleM3 verifies the client's evidence M1 and returns M4 (server
// evidence M2). After three consecutive AuthFailed results a caller should
// terminate the session.
func (s *ServerPairSetup) HandleM3(items []tlv8.Item) ([]tlv8.Item, error) {
	pubABytes, ok := tlv8.Get(items, TLVPublicKey)
	if !ok {
		return nil, fmt.Errorf("pairing: M3 missing public key")
	}
	m1, ok := tlv8.Get(items, TLVProof)
	if !ok {
		return nil, fmt.Errorf("pairing: M3 missing proof")
	}
	s.pubA = new(big.Int).SetBytes(pubABytes)

	key, m2, err := s.srp.ComputeKey(s.pubA, m1)
	if err != nil {
		return nil, ErrSRPProofMismatch
	}
	if !s.srp.VerifyClientProof(s.pubA, m1) {
		return nil, ErrSRPProofMismatch
	}
	s.key = key

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State4}},
		{Type: TLVProof, Value: m2},
	}, nil
}

// HandleM5 decrypts and verifies the client's long-term identity proof and
// returns M6 plus the PeerInfo the host should persist.
func (s *ServerPairSetup) HandleM5(items []tlv8.Item) ([]tlv8.Item, PeerInfo, error) {
	ct, ok := tlv8.Get(items, TLVEncryptedData)
	if !ok {
		return nil, PeerInfo{}, fmt.Errorf("pairing: M5 missing encrypted data")
	}

	encKey, err := cryptoutil.HKDFSHA512(s.key, []byte(saltPairSetupEncrypt), []byte(infoPairSetupEncrypt), 32)
	if err != nil {
		return nil, PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}

	plain, err := cryptoutil.ChaChaOpen(encKey, nonceM5, nil, ct)
	if err != nil {
		return nil, PeerInfo{}, ErrSRPProofMismatch
	}

	inner, err := tlv8.Decode(plain)
	if err != nil {
		return nil, PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}

	identifier, ok := tlv8.Get(inner, TLVIdentifier)
	if !ok {
		return nil, PeerInfo{}, fmt.Errorf("pairing: M5 missing identifier")
	}
	clientLTPK, ok := tlv8.Get(inner, TLVPublicKey)
	if !ok {
		return nil, PeerInfo{}, fmt.Errorf("pairing: M5 missing public key")
	}
	sig, ok := tlv8.Get(inner, TLVSignature)
	if !ok {
		return nil, PeerInfo{}, fmt.Errorf("pairing: M5 missing signature")
	}

	signKey, err := cryptoutil.HKDFSHA512(s.key, []byte(saltPairSetupController), []byte(infoPairSetupController), 32)
	if err != nil {
		return nil, PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}
	transcript := append(append([]byte{}, signKey...), identifier...)
	transcript = append(transcript, clientLTPK...)
	if !cryptoutil.Ed25519Verify(ed25519.PublicKey(clientLTPK), transcript, sig) {
		return nil, PeerInfo{}, ErrSRPProofMismatch
	}

	peer := PeerInfo{Identifier: string(identifier), PublicKey: ed25519.PublicKey(clientLTPK)}

	accSignKey, err := cryptoutil.HKDFSHA512(s.key, []byte(saltPairSetupAccessory), []byte(infoPairSetupAccessory), 32)
	if err != nil {
		return nil, PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}
	accTranscript := append(append([]byte{}, accSignKey...), []byte(s.identity)...)
	accTranscript = append(accTranscript, s.ltpk...)
	accSig := cryptoutil.Ed25519Sign(s.ltsk, accTranscript)

	outInner := tlv8.Encode([]tlv8.Item{
		{Type: TLVIdentifier, Value: []byte(s.identity)},
		{Type: TLVPublicKey, Value: s.ltpk},
		{Type: TLVSignature, Value: accSig},
	})

	outCt, err := cryptoutil.ChaChaSeal(encKey, nonceM6, nil, outInner)
	if err != nil {
		return nil, PeerInfo{}, fmt.Errorf("pairing: %w", err)
	}

	return []tlv8.Item{
		{Type: TLVState, Value: []byte{State6}},
		{Type: TLVEncryptedData, Value: outCt},
	}, peer, nil
}

func uint32LE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func uint32FromLE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

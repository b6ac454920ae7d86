package cryptoutil

import (
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"math/big"
)

// SRP3072Hex is the RFC 5054 3072-bit safe-prime group used by pair-setup.
const SRP3072Hex = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
	"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
	"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
	"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

// SRPGenerator is the generator paired with SRP3072Hex.
const SRPGenerator = 5

// srpGroup returns the (N, g) pair as big.Ints.
func srpGroup() (*big.Int, *big.Int) {
	n := new(big.Int)
	n.SetString(SRP3072Hex, 16)
	return n, big.NewInt(SRPGenerator)
}

// srpH hashes the concatenation of byts with SHA-512, as SRP-6a requires.
func srpH(byts ...[]byte) *big.Int {
	h := sha512.New()
	for _, b := range byts {
		h.Write(b)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func srpPad(n *big.Int, size int) []byte {
	b := n.Bytes()
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

// SRPComputeVerifier derives the password verifier v = g^x mod N from an
// identity, password and salt, where x = H(salt | H(identity:password)).
func SRPComputeVerifier(identity, password string, salt []byte) *big.Int {
	n, g := srpGroup()

	inner := srpH([]byte(identity + ":" + password))
	x := srpH(salt, srpPad(inner, 64))
	x.Mod(x, n)

	return new(big.Int).Exp(g, x, n)
}

// SRPClient runs the client (sender) half of an SRP-6a exchange.
type SRPClient struct {
	identity string
	password string
	n, g     *big.Int
	size     int
	a        *big.Int
	pubA     *big.Int
	key      []byte
}

// NewSRPClient creates a client ready to compute its ephemeral public value.
func NewSRPClient(identity, password string) (*SRPClient, error) {
	n, g := srpGroup()
	size := (n.BitLen() + 7) / 8

	a, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}

	pubA := new(big.Int).Exp(g, a, n)

	return &SRPClient{
		identity: identity,
		password: password,
		n:        n,
		g:        g,
		size:     size,
		a:        a,
		pubA:     pubA,
	}, nil
}

// PublicA returns the client's ephemeral public value A.
func (c *SRPClient) PublicA() *big.Int { return c.pubA }

// ComputeKey derives the shared session key K from the server's salt and
// public value B, and also returns the client evidence message M1.
func (c *SRPClient) ComputeKey(salt []byte, pubB *big.Int) (key, m1 []byte, err error) {
	if new(big.Int).Mod(pubB, c.n).Sign() == 0 {
		return nil, nil, fmt.Errorf("cryptoutil: srp: server sent B == 0 mod N")
	}

	k := srpH(srpPad(c.n, c.size), srpPad(c.g, c.size))
	k.Mod(k, c.n)

	u := srpH(srpPad(c.pubA, c.size), srpPad(pubB, c.size))
	u.Mod(u, c.n)
	if u.Sign() == 0 {
		return nil, nil, fmt.Errorf("cryptoutil: srp: u == 0")
	}

	inner := srpH([]byte(c.identity + ":" + c.password))
	x := srpH(salt, srpPad(inner, 64))
	x.Mod(x, c.n)

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(c.g, x, c.n)
	kgx := new(big.Int).Mul(k, gx)
	kgx.Mod(kgx, c.n)
	base := new(big.Int).Sub(pubB, kgx)
	base.Mod(base, c.n)
	if base.Sign() < 0 {
		base.Add(base, c.n)
	}

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)

	s := new(big.Int).Exp(base, exp, c.n)

	key = srpH(srpPad(s, c.size)).Bytes()
	c.key = key

	m1 = srpH(srpPad(c.pubA, c.size), srpPad(pubB, c.size), key).Bytes()
	return key, m1, nil
}

// VerifyServerProof checks the server's evidence message M2.
func (c *SRPClient) VerifyServerProof(m1, m2 []byte) bool {
	expected := srpH(srpPad(c.pubA, c.size), m1, c.key).Bytes()
	return constantTimeEqual(expected, m2)
}

// SRPServer runs the server (receiver) half of an SRP-6a exchange.
type SRPServer struct {
	n, g *big.Int
	size int
	v    *big.Int
	b    *big.Int
	pubB *big.Int
	key  []byte
}

// NewSRPServer creates a server from the stored verifier v.
func NewSRPServer(v *big.Int) (*SRPServer, error) {
	n, g := srpGroup()
	size := (n.BitLen() + 7) / 8

	b, err := rand.Int(rand.Reader, n)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}

	k := srpH(srpPad(n, size), srpPad(g, size))
	k.Mod(k, n)

	// B = k*v + g^b mod N
	kv := new(big.Int).Mul(k, v)
	gb := new(big.Int).Exp(g, b, n)
	pubB := new(big.Int).Add(kv, gb)
	pubB.Mod(pubB, n)

	return &SRPServer{n: n, g: g, size: size, v: v, b: b, pubB: pubB}, nil
}

// PublicB returns the server's ephemeral public value B.
func (s *SRPServer) PublicB() *big.Int { return s.pubB }

// ComputeKey derives the shared session key from the client's public value
// A, and returns the server evidence message M2 given the client's M1.
func (s *SRPServer) ComputeKey(pubA *big.Int, m1 []byte) (key, m2 []byte, err error) {
	if new(big.Int).Mod(pubA, s.n).Sign() == 0 {
		return nil, nil, fmt.Errorf("cryptoutil: srp: client sent A == 0 mod N")
	}

	u := srpH(srpPad(pubA, s.size), srpPad(s.pubB, s.size))
	u.Mod(u, s.n)
	if u.Sign() == 0 {
		return nil, nil, fmt.Errorf("cryptoutil: srp: u == 0")
	}

	// S = (A * v^u) ^ b mod N
	vu := new(big.Int).Exp(s.v, u, s.n)
	avu := new(big.Int).Mul(pubA, vu)
	avu.Mod(avu, s.n)

	sVal := new(big.Int).Exp(avu, s.b, s.n)

	key = srpH(srpPad(sVal, s.size)).Bytes()
	s.key = key

	m2 = srpH(srpPad(pubA, s.size), m1, key).Bytes()
	return key, m2, nil
}

// VerifyClientProof checks the client's evidence message M1 against the
// session key derived by ComputeKey.
func (s *SRPServer) VerifyClientProof(pubA *big.Int, m1 []byte) bool {
	expected := srpH(srpPad(pubA, s.size), srpPad(s.pubB, s.size), s.key).Bytes()
	return constantTimeEqual(expected, m1)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

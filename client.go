package airplay2

import (
	"bufio"
	"crypto/ed25519"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jburnhams/airplay2/internal/pacer"
	"github.com/jburnhams/airplay2/pkg/codec"
	"github.com/jburnhams/airplay2/pkg/control"
	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/liberrors"
	"github.com/jburnhams/airplay2/pkg/pairing"
	"github.com/jburnhams/airplay2/pkg/retransmit"
	"github.com/jburnhams/airplay2/pkg/rtpaudio"
	"github.com/jburnhams/airplay2/pkg/rtsp"
	"github.com/jburnhams/airplay2/pkg/sdp"
	"github.com/jburnhams/airplay2/pkg/tlv8"
	"github.com/rs/zerolog"
)

// ClientConfig bundles dial parameters and callbacks ahead of Connect.
type ClientConfig struct {
	Host string
	Port int

	// Identity is this sender's own pairing identifier, persisted by the
	// caller across sessions so a receiver can recognize it on return
	// visits.
	Identity  string
	PIN       string
	Transient bool

	// KeyStore persists this sender's long-term Ed25519 key and any
	// receiver identities it has paired with before.
	KeyStore pairing.KeyStore

	// ReceiverRSAPublicKeyBits, when set, selects the legacy dialect:
	// the receiver's RSA public key, obtained out of band (e.g. from a
	// prior session record), used to wrap the AES stream key.
	ReceiverRSAPublicKeyPEM []byte

	Encoder         codec.Encoder
	SampleRate      uint32
	FramesPerPacket int

	// Dial opens the control connection; overridable for tests.
	Dial func(network, address string) (net.Conn, error)

	OnEvent func(Event)
	OnLog   func(level zerolog.Level, msg string)
}

// Client drives one outgoing AirPlay session as the sending side: dialect
// negotiation, pairing, RTSP control, and the sender audio pipeline.
type Client struct {
	cfg ClientConfig
	log zerolog.Logger

	session *Session

	conn net.Conn
	rb   *bufio.Reader
	bw   *bufio.Writer

	controlReader io.Reader
	controlWriter io.Writer
	framedRB      *bufio.Reader

	cseq int

	audioConn net.PacketConn
	audioAddr net.Addr

	modernKeys pairing.ModernKeys
	legacyKeys pairing.LegacyKeys

	sender *rtpaudio.Sender

	mu sync.Mutex
}

// NewClient creates a Client in StateInit. Connect must be called before
// Stream.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Dial == nil {
		cfg.Dial = net.Dial
	}
	if cfg.FramesPerPacket == 0 {
		cfg.FramesPerPacket = codec.FramesPerPacket
	}

	logger := zerolog.New(hookWriter{cfg.OnLog}).With().
		Str("component", "client").Str("host", cfg.Host).Logger()

	return &Client{
		cfg:     cfg,
		log:     logger,
		session: NewSession(),
	}
}

// hookWriter adapts the optional OnLog callback into an io.Writer zerolog
// can target; when OnLog is nil, writes are dropped.
type hookWriter struct {
	onLog func(zerolog.Level, string)
}

func (w hookWriter) Write(p []byte) (int, error) {
	if w.onLog != nil {
		w.onLog(zerolog.InfoLevel, string(p))
	}
	return len(p), nil
}

// Connect dials the receiver, runs modern pair-setup and pair-verify, and
// leaves the session in StatePaired with the control connection switched to
// AEAD framing. Connect always takes the modern path; it does not negotiate
// the legacy dialect.
func (c *Client) Connect() error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	conn, err := c.cfg.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("airplay2: dial: %w", err)
	}
	c.conn = conn
	c.rb = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	c.session.Transition(StateOptionsReceived)

	if err := c.pairModern(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return nil
}

// doRequest writes req over the current control stream (plaintext until
// pair-verify completes, AEAD-framed afterward) and reads the matching
// response.
func (c *Client) doRequest(method rtsp.Method, path string, contentType string, body []byte) (*rtsp.Response, error) {
	c.cseq++
	req := rtsp.Request{
		Method: method,
		Path:   path,
		Header: rtsp.Header{},
	}
	req.Header.Set("CSeq", strconv.Itoa(c.cseq))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Content = body

	if c.controlWriter != nil {
		var buf byteAccumulator
		if err := req.Write(bufio.NewWriter(&buf)); err != nil {
			return nil, err
		}
		if err := writeFramed(c.controlWriter, buf.b); err != nil {
			return nil, err
		}
		res := &rtsp.Response{}
		if err := res.Read(c.framedRB); err != nil {
			return nil, err
		}
		return res, nil
	}

	if err := req.Write(c.bw); err != nil {
		return nil, fmt.Errorf("airplay2: write request: %w", err)
	}
	res := &rtsp.Response{}
	if err := res.Read(c.rb); err != nil {
		return nil, fmt.Errorf("airplay2: read response: %w", err)
	}
	return res, nil
}

// byteAccumulator accumulates bytes for a single framed control write.
type byteAccumulator struct{ b []byte }

func (b *byteAccumulator) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// writeFramed pushes one already-serialized RTSP message through a
// control.Writer. Kept as a free function so it can be swapped for a
// direct *control.Writer method call once one is attached.
func writeFramed(w io.Writer, msg []byte) error {
	if fw, ok := w.(*control.Writer); ok {
		return fw.WriteMessage(msg)
	}
	_, err := w.Write(msg)
	return err
}

// pairModern runs pair-setup (unless a peer key is already on file) and
// pair-verify, then upgrades the control connection to AEAD framing.
func (c *Client) pairModern() error {
	ltpk, ltsk, haveLT, err := c.loadOrGenerateIdentity()
	if err != nil {
		return err
	}
	if !haveLT {
		return fmt.Errorf("airplay2: no long-term identity available")
	}

	var peerLTPK []byte

	if c.cfg.KeyStore != nil {
		if peer, ok, err := c.cfg.KeyStore.LoadPeer(c.cfg.Host); err == nil && ok {
			peerLTPK = peer.PublicKey
		}
	}

	if peerLTPK == nil {
		client := pairing.NewClientPairSetup(c.cfg.Identity, ed25519.PublicKey(ltpk), ed25519.PrivateKey(ltsk), c.cfg.PIN, c.cfg.Transient)

		m1 := client.StartM1()
		m2, err := c.exchangeTLV8("/pair-setup", m1)
		if err != nil {
			return err
		}
		m3, err := client.HandleM2(m2)
		if err != nil {
			return fmt.Errorf("airplay2: pair-setup: %w", err)
		}
		m4, err := c.exchangeTLV8("/pair-setup", m3)
		if err != nil {
			return err
		}
		m5, err := client.HandleM4(m4)
		if err != nil {
			return fmt.Errorf("airplay2: pair-setup: %w", err)
		}
		m6, err := c.exchangeTLV8("/pair-setup", m5)
		if err != nil {
			return err
		}
		peer, err := client.HandleM6(m6)
		if err != nil {
			return fmt.Errorf("airplay2: pair-setup: %w", liberrors.ErrAuthFailed{Reason: err.Error()})
		}
		peerLTPK = peer.PublicKey

		if c.cfg.KeyStore != nil {
			_ = c.cfg.KeyStore.SavePeer(pairing.PeerInfo{Identifier: c.cfg.Host, PublicKey: peerLTPK})
		}
	}

	verify, err := pairing.NewClientPairVerify(c.cfg.Identity, ed25519.PrivateKey(ltsk), peerLTPK)
	if err != nil {
		return fmt.Errorf("airplay2: pair-verify: %w", err)
	}

	m2, err := c.exchangeTLV8("/pair-verify", verify.StartM1())
	if err != nil {
		return err
	}
	m3, err := verify.HandleM2(m2)
	if err != nil {
		return fmt.Errorf("airplay2: pair-verify: %w", err)
	}
	if _, err := c.exchangeTLV8("/pair-verify", m3); err != nil {
		return err
	}

	keys, err := verify.DeriveKeys()
	if err != nil {
		return fmt.Errorf("airplay2: pair-verify: %w", err)
	}
	c.modernKeys = keys

	c.controlWriter = control.NewWriter(c.conn, keys.ControlWriteKey)
	c.controlReader = control.NewReader(c.conn, keys.ControlReadKey)
	c.framedRB = bufio.NewReader(c.controlReader)

	c.session.LockDialect(DialectModern)
	c.session.Transition(StatePaired)
	c.emit(Event{Kind: EventPairingComplete})
	return nil
}

func (c *Client) loadOrGenerateIdentity() (pubKey, privKey []byte, ok bool, err error) {
	if c.cfg.KeyStore == nil {
		pub, priv, genErr := cryptoutil.GenerateEd25519KeyPair()
		return pub, priv, genErr == nil, genErr
	}
	pub, priv, have, loadErr := c.cfg.KeyStore.LoadLongTermKey()
	if loadErr != nil {
		return nil, nil, false, loadErr
	}
	if have {
		return pub, priv, true, nil
	}
	pub, priv, genErr := cryptoutil.GenerateEd25519KeyPair()
	if genErr != nil {
		return nil, nil, false, genErr
	}
	if saveErr := c.cfg.KeyStore.SaveLongTermKey(pub, priv); saveErr != nil {
		return nil, nil, false, saveErr
	}
	return pub, priv, true, nil
}

// exchangeTLV8 encodes items as a TLV8 body, sends it to path, and decodes
// the response body back into TLV8 items.
func (c *Client) exchangeTLV8(path string, items []tlv8.Item) ([]tlv8.Item, error) {
	res, err := c.doRequest(rtsp.Post, path, "application/octet-stream", tlv8.Encode(items))
	if err != nil {
		return nil, err
	}
	if res.StatusCode != rtsp.StatusOK {
		return nil, fmt.Errorf("airplay2: %s returned %d", path, res.StatusCode)
	}
	return tlv8.Decode(res.Content)
}

// SetupLegacy negotiates RSA-wrapped AES keys and SETUPs a legacy (RAOP)
// audio stream over UDP via an ANNOUNCE/SETUP/RECORD sequence.
func (c *Client) SetupLegacy(remoteRTPPort int) error {
	keys, err := pairing.GenerateLegacyKeys()
	if err != nil {
		return err
	}
	c.legacyKeys = keys

	desc := sdp.BuildLegacyAnnounce(sdp.LegacyAnnounceParams{
		ClientIP:   localIPOf(c.conn),
		ServerIP:   c.cfg.Host,
		SampleRate: int(c.cfg.SampleRate),
	})
	body, err := desc.Marshal()
	if err != nil {
		return err
	}

	if _, err := c.doRequest(rtsp.Announce, "rtsp://"+c.cfg.Host+"/stream", rtsp.ContentTypeSDP, body); err != nil {
		return err
	}
	c.session.Transition(StateAnnounced)

	if _, err := c.doRequest(rtsp.Setup, "rtsp://"+c.cfg.Host+"/stream", "", nil); err != nil {
		return err
	}
	c.session.Transition(StateSetup)

	audioConn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return fmt.Errorf("airplay2: audio socket: %w", err)
	}
	c.audioConn = audioConn
	c.audioAddr, err = net.ResolveUDPAddr("udp", net.JoinHostPort(c.cfg.Host, strconv.Itoa(remoteRTPPort)))
	if err != nil {
		return err
	}

	c.sender = rtpaudio.NewSender(rtpaudio.SenderConfig{
		SSRC:            uint32(time.Now().UnixNano()),
		FramesPerPacket: c.cfg.FramesPerPacket,
		Encoder:         c.cfg.Encoder,
		Encryption:      rtpaudio.EncryptionRSAAES,
		LegacyKey:       keys.AESKey[:],
		LegacyIV:        keys.AESIV[:],
		Retransmit:      retransmit.New(retransmit.DefaultCapacity),
		Pacer:           pacer.New(time.Now(), framePeriod(c.cfg.SampleRate, c.cfg.FramesPerPacket)),
		Sleep:           time.Sleep,
		Send:            c.sendAudioPacket,
	})

	if _, err := c.doRequest(rtsp.Record, "rtsp://"+c.cfg.Host+"/stream", "", nil); err != nil {
		return err
	}
	c.session.Transition(StateStreaming)
	c.emit(Event{Kind: EventStreamingStarted})
	return nil
}

func (c *Client) sendAudioPacket(payload []byte) error {
	_, err := c.audioConn.WriteTo(payload, c.audioAddr)
	return err
}

// framePeriod is the wall-clock duration one packet's worth of audio
// occupies at sampleRate, used to seed the sender's pacer.
func framePeriod(sampleRate uint32, framesPerPacket int) time.Duration {
	if sampleRate == 0 {
		sampleRate = 44100
	}
	return time.Duration(framesPerPacket) * time.Second / time.Duration(sampleRate)
}

func localIPOf(conn net.Conn) string {
	if conn == nil {
		return "0.0.0.0"
	}
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "0.0.0.0"
	}
	return host
}

// SendFrame pushes one frame's worth of PCM through the sender pipeline.
// Connect and SetupLegacy (or the modern SETUP sequence, once negotiated)
// must have completed first.
func (c *Client) SendFrame(pcm []int16) error {
	if c.sender == nil {
		return fmt.Errorf("airplay2: stream not set up")
	}
	return c.sender.SendFrame(pcm)
}

// Flush clears the retransmit cache and restarts the pacer, mirroring a
// FLUSH control request (which the caller is responsible for issuing).
func (c *Client) Flush() {
	if c.sender != nil {
		c.sender.Flush()
	}
	c.emit(Event{Kind: EventFlushRequested})
}

// Close tears down the audio socket and control connection.
func (c *Client) Close() error {
	if c.audioConn != nil {
		_ = c.audioConn.Close()
	}
	c.modernKeys.Zero()
	c.legacyKeys.Zero()
	c.session.Transition(StateTornDown)
	c.emit(Event{Kind: EventTeardown})
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) emit(ev Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}

package airplay2

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jburnhams/airplay2/pkg/bplist"
	"github.com/jburnhams/airplay2/pkg/codec"
	"github.com/jburnhams/airplay2/pkg/control"
	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/jitterbuffer"
	"github.com/jburnhams/airplay2/pkg/liberrors"
	"github.com/jburnhams/airplay2/pkg/pairing"
	"github.com/jburnhams/airplay2/pkg/rtpaudio"
	"github.com/jburnhams/airplay2/pkg/rtsp"
	"github.com/jburnhams/airplay2/pkg/sdp"
	"github.com/jburnhams/airplay2/pkg/timing"
	"github.com/jburnhams/airplay2/pkg/tlv8"
	"github.com/rs/zerolog"
)

// modernStreamTypeAudio is the stream "type" value this receiver reports for
// its audio stream in the SETUP phase 2 response. The type in the request
// body is not checked.
const modernStreamTypeAudio = 96

// ReceiverConfig bundles listener parameters and collaborators ahead of
// Serve.
type ReceiverConfig struct {
	Device    LocalDevice
	Identity  string
	PIN       string
	KeyStore  pairing.KeyStore
	LegacyKey *rsa.PrivateKey

	Decoder      codec.Decoder
	JitterBuffer jitterbuffer.Config

	Listen       func(network, address string) (net.Listener, error)
	ListenPacket func(network, address string) (net.PacketConn, error)

	OnEvent func(Event)
	OnLog   func(zerolog.Level, string)
}

// Receiver accepts AirPlay sender connections and serves both dialects'
// control-channel request sequences over them.
type Receiver struct {
	cfg ReceiverConfig
	log zerolog.Logger

	ln net.Listener

	mu    sync.Mutex
	conns map[*receiverConn]struct{}
	wg    sync.WaitGroup
}

// NewReceiver creates a Receiver from cfg. It does not listen until Serve
// is called.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	r := &Receiver{cfg: cfg, conns: make(map[*receiverConn]struct{})}
	r.log = zerolog.New(hookWriter{cfg.OnLog}).With().Timestamp().Logger()
	return r
}

// Serve starts listening on addr and accepting connections in the
// background.
func (r *Receiver) Serve(addr string) error {
	listen := r.cfg.Listen
	if listen == nil {
		listen = net.Listen
	}
	ln, err := listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("airplay2: listen: %w", err)
	}
	r.ln = ln

	go r.acceptLoop()
	return nil
}

// Addr returns the receiver's bound listener address, valid after Serve.
func (r *Receiver) Addr() net.Addr {
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

func (r *Receiver) acceptLoop() {
	for {
		nconn, err := r.ln.Accept()
		if err != nil {
			return
		}
		rc := r.newConn(nconn)
		r.trackConn(rc)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			rc.run()
			r.untrackConn(rc)
		}()
	}
}

func (r *Receiver) trackConn(rc *receiverConn) {
	r.mu.Lock()
	r.conns[rc] = struct{}{}
	r.mu.Unlock()
}

func (r *Receiver) untrackConn(rc *receiverConn) {
	r.mu.Lock()
	delete(r.conns, rc)
	r.mu.Unlock()
}

// Close stops accepting connections, closes every live connection, and
// waits for their goroutines to exit.
func (r *Receiver) Close() error {
	var err error
	if r.ln != nil {
		err = r.ln.Close()
	}

	r.mu.Lock()
	for rc := range r.conns {
		rc.close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	return err
}

// receiverConn drives one TCP control connection: request parsing, session
// state, pairing, and the audio/control/timing UDP sockets SETUP allocates.
type receiverConn struct {
	r     *Receiver
	cfg   ReceiverConfig
	nconn net.Conn
	log   zerolog.Logger
	sess  *Session

	ltpk     ed25519.PublicKey
	ltskPriv ed25519.PrivateKey

	pairSetup  *pairing.ServerPairSetup
	pairVerify *pairing.ServerPairVerify
	modernKeys pairing.ModernKeys

	controlReader io.Reader
	controlWriter io.Writer
	framedRB      *bufio.Reader

	legacyKeys  pairing.LegacyKeys
	legacyCodec string
	legacySR    int

	audioConn   net.PacketConn
	controlConn net.PacketConn
	timingConn  net.PacketConn
	remoteCtrl  net.Addr

	clock     *timing.Clock
	jitter    *jitterbuffer.Buffer
	audioRecv *rtpaudio.Receiver

	closeOnce sync.Once
}

func (r *Receiver) newConn(nconn net.Conn) *receiverConn {
	ltpk, ltsk, haveLT, err := loadOrGenerateServerIdentity(r.cfg.KeyStore)
	if err != nil || !haveLT {
		ltpk, ltsk, _ = cryptoutil.GenerateEd25519KeyPair()
	}

	return &receiverConn{
		r:        r,
		cfg:      r.cfg,
		nconn:    nconn,
		log:      r.log,
		sess:     NewSession(),
		ltpk:     ltpk,
		ltskPriv: ltsk,
	}
}

func loadOrGenerateServerIdentity(ks pairing.KeyStore) (ed25519.PublicKey, ed25519.PrivateKey, bool, error) {
	if ks == nil {
		pub, priv, err := cryptoutil.GenerateEd25519KeyPair()
		return pub, priv, err == nil, err
	}
	pub, priv, have, err := ks.LoadLongTermKey()
	if err != nil {
		return nil, nil, false, err
	}
	if have {
		return pub, priv, true, nil
	}
	pub, priv, err = cryptoutil.GenerateEd25519KeyPair()
	if err != nil {
		return nil, nil, false, err
	}
	if err := ks.SaveLongTermKey(pub, priv); err != nil {
		return nil, nil, false, err
	}
	return pub, priv, true, nil
}

func (rc *receiverConn) close() {
	rc.closeOnce.Do(func() {
		rc.nconn.Close()
		if rc.audioConn != nil {
			rc.audioConn.Close()
		}
		if rc.controlConn != nil {
			rc.controlConn.Close()
		}
		if rc.timingConn != nil {
			rc.timingConn.Close()
		}
	})
}

func (rc *receiverConn) emit(ev Event) {
	if rc.cfg.OnEvent != nil {
		rc.cfg.OnEvent(ev)
	}
}

// run reads requests serially off the connection, over plaintext until
// pair-verify completes on the modern dialect, and over AEAD framing
// afterward, until the peer disconnects or TEARDOWN closes the session.
func (rc *receiverConn) run() {
	defer rc.close()

	rb := bufio.NewReader(rc.nconn)
	bw := bufio.NewWriter(rc.nconn)

	for {
		var req rtsp.Request
		var err error
		if rc.framedRB != nil {
			err = req.Read(rc.framedRB)
		} else {
			err = req.Read(rb)
		}
		if err != nil {
			return
		}

		// Framing is decided before handle: the request that completes
		// pair-verify is still answered on the plaintext channel.
		framed := rc.controlWriter != nil
		res := rc.handle(req)

		if framed {
			var raw []byte
			bb := bufio.NewWriter(byteSink(func(p []byte) { raw = append(raw, p...) }))
			if werr := res.Write(bb); werr != nil {
				return
			}
			if werr := rc.controlWriter.(*control.Writer).WriteMessage(raw); werr != nil {
				return
			}
		} else {
			if werr := res.Write(bw); werr != nil {
				return
			}
		}

		if rc.sess.State() == StateTornDown {
			return
		}
	}
}

type byteSink func([]byte)

func (s byteSink) Write(p []byte) (int, error) {
	s(p)
	return len(p), nil
}

// handle dispatches one parsed request through the gate and the per-
// endpoint handler, producing a response. It never returns an error; any
// failure is folded into the response status.
func (rc *receiverConn) handle(req rtsp.Request) rtsp.Response {
	_, hasChallenge := req.Header.Get("Apple-Challenge")
	verb, endpoint := Classify(string(req.Method), req.Path)
	dialect := DetectDialect(string(req.Method), endpoint, req.ContentTypeOf(), hasChallenge)

	if dialect != DialectUnknown {
		if !rc.sess.LockDialect(dialect) {
			return errorResponse(req, liberrors.ErrWireFormat{Msg: "cross-dialect request rejected"})
		}
	}

	// A modern session stays authenticated once pair-verify has switched the
	// connection to framing, whatever state it has moved on to since.
	authenticated := rc.sess.Dialect() == DialectLegacy || rc.controlWriter != nil
	if err := Gate(rc.sess.State(), authenticated, verb, endpoint); err != nil {
		return errorResponse(req, err)
	}

	switch {
	case verb == VerbOptions:
		return rc.handleOptions(req)
	case endpoint == EndpointInfo:
		return rc.handleInfo(req)
	case endpoint == EndpointPairSetup:
		return rc.handlePairSetup(req)
	case endpoint == EndpointPairVerify:
		return rc.handlePairVerify(req)
	case endpoint == EndpointAuthSetup:
		return rc.handleAuthSetup(req)
	case verb == VerbAnnounce:
		return rc.handleAnnounce(req)
	case verb == VerbSetup:
		return rc.handleSetup(req)
	case verb == VerbRecord:
		return rc.handleRecord(req)
	case verb == VerbFlush:
		return rc.handleFlush(req)
	case verb == VerbPause:
		return rc.handlePause(req)
	case verb == VerbTeardown:
		return rc.handleTeardown(req)
	case verb == VerbGetParameter:
		return rc.handleGetParameter(req)
	case verb == VerbSetParameter:
		return rc.handleSetParameter(req)
	case endpoint == EndpointCommand, endpoint == EndpointFeedback, endpoint == EndpointAudioMode:
		return rc.handleBplistPing(req)
	default:
		return errorResponse(req, liberrors.ErrUnsupported{Feature: string(req.Method) + " " + req.Path})
	}
}

func errorResponse(req rtsp.Request, err error) rtsp.Response {
	status := rtsp.StatusInternalServerError
	switch err.(type) {
	case liberrors.ErrWireFormat:
		status = rtsp.StatusBadRequest
	case liberrors.ErrStateViolation:
		status = rtsp.StatusMethodNotValidInThisState
	case liberrors.ErrAuthRequired, liberrors.ErrAuthFailed:
		status = rtsp.StatusConnectionAuthRequired
	case liberrors.ErrUnsupported:
		status = rtsp.StatusNotImplemented
	}
	return rtsp.Response{StatusCode: status, Header: cseqHeader(req)}
}

func cseqHeader(req rtsp.Request) rtsp.Header {
	h := rtsp.Header{}
	if v, ok := req.Header.Get("CSeq"); ok {
		h.Set("CSeq", v)
	}
	return h
}

func (rc *receiverConn) handleOptions(req rtsp.Request) rtsp.Response {
	h := cseqHeader(req)
	h.Set("Public", "ANNOUNCE, SETUP, RECORD, PAUSE, FLUSH, TEARDOWN, OPTIONS, GET_PARAMETER, SET_PARAMETER")
	rc.sess.Transition(StateOptionsReceived)
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h}
}

func (rc *receiverConn) handleInfo(req rtsp.Request) rtsp.Response {
	body := rc.cfg.Device.InfoBody()
	byts, err := bplist.Encode(body)
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}
	h := cseqHeader(req)
	h.Set("Content-Type", "application/x-apple-binary-plist")
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: byts}
}

func unwrapBplistTLV8(content []byte) []byte {
	if v, err := bplist.Decode(content); err == nil {
		if raw, err := v.AsBytes(); err == nil {
			return raw
		}
	}
	return content
}

func (rc *receiverConn) handlePairSetup(req rtsp.Request) rtsp.Response {
	items, err := tlv8.Decode(unwrapBplistTLV8(req.Content))
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}

	if rc.pairSetup == nil {
		rc.pairSetup = pairing.NewServerPairSetup(rc.cfg.Identity, rc.ltpk, rc.ltskPriv, rc.cfg.PIN)
	}

	if state, ok := tlv8.Get(items, pairing.TLVState); ok && len(state) == 1 {
		switch state[0] {
		case pairing.State1:
			out, err := rc.pairSetup.HandleM1(items)
			if err != nil {
				return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
			}
			return rc.tlv8Response(req, out)
		case pairing.State3:
			out, err := rc.pairSetup.HandleM3(items)
			if err != nil {
				return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
			}
			return rc.tlv8Response(req, out)
		case pairing.State5:
			out, peer, err := rc.pairSetup.HandleM5(items)
			if err != nil {
				return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
			}
			if rc.cfg.KeyStore != nil {
				_ = rc.cfg.KeyStore.SavePeer(peer)
			}
			return rc.tlv8Response(req, out)
		}
	}
	return errorResponse(req, liberrors.ErrWireFormat{Msg: "pair-setup: missing state"})
}

func (rc *receiverConn) handlePairVerify(req rtsp.Request) rtsp.Response {
	items, err := tlv8.Decode(unwrapBplistTLV8(req.Content))
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}

	if rc.pairVerify == nil {
		lookup := func(id string) (ed25519.PublicKey, bool) {
			if rc.cfg.KeyStore == nil {
				return nil, false
			}
			peer, ok, err := rc.cfg.KeyStore.LoadPeer(id)
			if err != nil || !ok {
				return nil, false
			}
			return peer.PublicKey, true
		}
		verify, err := pairing.NewServerPairVerify(rc.cfg.Identity, rc.ltskPriv, lookup)
		if err != nil {
			return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
		}
		rc.pairVerify = verify
	}

	if state, ok := tlv8.Get(items, pairing.TLVState); ok && len(state) == 1 && state[0] == pairing.State1 {
		out, err := rc.pairVerify.HandleM1(items)
		if err != nil {
			return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
		}
		return rc.tlv8Response(req, out)
	}

	keys, err := rc.pairVerify.HandleM3(items)
	if err != nil {
		return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
	}
	rc.modernKeys = keys

	res := rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}

	// The response to the final step is still sent over the plaintext (or
	// still-framed) channel; only the next request switches framing, since
	// both sides derive the same keys at this point independently.
	rc.controlWriter = control.NewWriter(rc.nconn, keys.ControlWriteKey)
	rc.controlReader = control.NewReader(rc.nconn, keys.ControlReadKey)
	rc.framedRB = bufio.NewReader(rc.controlReader)

	rc.sess.Transition(StatePaired)
	rc.emit(Event{Kind: EventPairingComplete})
	return res
}

func (rc *receiverConn) handleAuthSetup(req rtsp.Request) rtsp.Response {
	// FairPlay/MFi authenticator handshake: a subset of modern devices
	// require this before /pair-setup. This core does not implement the
	// FairPlay key ladder; it returns a 0x01 byte followed by its Ed25519
	// long-term public key, with no Curve25519 key and no signature, so a
	// peer that tolerates a no-op authenticator can proceed.
	h := cseqHeader(req)
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: append([]byte{0x01}, rc.ltpk...)}
}

func (rc *receiverConn) tlv8Response(req rtsp.Request, items []tlv8.Item) rtsp.Response {
	h := cseqHeader(req)
	h.Set("Content-Type", "application/octet-stream")
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: tlv8.Encode(items)}
}

func (rc *receiverConn) handleAnnounce(req rtsp.Request) rtsp.Response {
	desc, err := sdp.Unmarshal(req.Content)
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}
	media, ok := desc.AudioMedia()
	if !ok {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: "announce: no audio media"})
	}

	if _, codecName, err := sdp.RTPMap(media); err == nil {
		rc.legacyCodec = codecName
	}
	rc.legacySR = 44100
	if fmtp, ok := sdp.FMTP(media); ok && len(fmtp) > 10 {
		if sr, err := strconv.Atoi(fmtp[10]); err == nil {
			rc.legacySR = sr
		}
	}

	if wrapped, ok := sdp.RSAAESKey(media); ok && rc.cfg.LegacyKey != nil {
		key, err := cryptoutil.RSAOAEPUnwrap(rc.cfg.LegacyKey, wrapped)
		if err != nil {
			return errorResponse(req, liberrors.ErrAuthFailed{Reason: err.Error()})
		}
		copy(rc.legacyKeys.AESKey[:], key)
	}
	if iv, ok := sdp.AESIV(media); ok {
		copy(rc.legacyKeys.AESIV[:], iv)
	}

	rc.sess.Transition(StateAnnounced)
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
}

func (rc *receiverConn) listenPacket(network string) (net.PacketConn, error) {
	listen := rc.cfg.ListenPacket
	if listen == nil {
		listen = net.ListenPacket
	}
	return listen(network, rc.localHost()+":0")
}

func (rc *receiverConn) localHost() string {
	host, _, err := net.SplitHostPort(rc.nconn.LocalAddr().String())
	if err != nil {
		return "0.0.0.0"
	}
	return host
}

func udpPort(pc net.PacketConn) int {
	if a, ok := pc.LocalAddr().(*net.UDPAddr); ok {
		return a.Port
	}
	return 0
}

func (rc *receiverConn) handleSetup(req rtsp.Request) rtsp.Response {
	if rc.sess.Dialect() == DialectModern {
		return rc.handleModernSetup(req)
	}
	return rc.handleLegacySetup(req)
}

func (rc *receiverConn) handleLegacySetup(req rtsp.Request) rtsp.Response {
	audioConn, err := rc.listenPacket("udp")
	if err != nil {
		return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "audio udp port"})
	}
	controlConn, err := rc.listenPacket("udp")
	if err != nil {
		audioConn.Close()
		return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "control udp port"})
	}
	timingConn, err := rc.listenPacket("udp")
	if err != nil {
		audioConn.Close()
		controlConn.Close()
		return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "timing udp port"})
	}

	rc.audioConn, rc.controlConn, rc.timingConn = audioConn, controlConn, timingConn
	rc.clock = timing.NewClock(uint32(rc.legacySR))

	if transport, ok := req.Header.Get("Transport"); ok {
		if p, ok := transportField(transport, "control_port"); ok {
			if host, _, err := net.SplitHostPort(rc.nconn.RemoteAddr().String()); err == nil {
				if addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, p)); err == nil {
					rc.remoteCtrl = addr
				}
			}
		}
	}

	decoder := rc.cfg.Decoder
	if decoder == nil {
		decoder = codec.PCMCodec{Channels: 2}
	}
	rc.jitter = jitterbuffer.New(rc.cfg.JitterBuffer)
	rc.audioRecv = rtpaudio.NewReceiver(rtpaudio.ReceiverConfig{
		Decoder:    decoder,
		Encryption: legacyEncryptionType(rc.legacyKeys),
		LegacyKey:  rc.legacyKeys.AESKey[:],
		LegacyIV:   rc.legacyKeys.AESIV[:],
		JitterBuffer: rc.jitter,
		ReceiveInstant: func() int64 { return time.Now().UnixNano() },
		OnRetransmitRequest: rc.sendRetransmitRequest,
	})

	go rc.readAudioLoop(audioConn)
	go rc.readControlLoop(controlConn)

	rc.sess.Transition(StateSetup)

	h := cseqHeader(req)
	h.Set("Transport", fmt.Sprintf(
		"RTP/AVP/UDP;unicast;mode=record;server_port=%d;control_port=%d;timing_port=%d",
		udpPort(audioConn), udpPort(controlConn), udpPort(timingConn)))
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h}
}

func legacyEncryptionType(k pairing.LegacyKeys) rtpaudio.EncryptionType {
	var zero pairing.LegacyKeys
	if k == zero {
		return rtpaudio.EncryptionNone
	}
	return rtpaudio.EncryptionRSAAES
}

func transportField(transport, key string) (string, bool) {
	for _, part := range strings.Split(transport, ";") {
		if kv := strings.SplitN(part, "=", 2); len(kv) == 2 && kv[0] == key {
			return kv[1], true
		}
	}
	return "", false
}

func (rc *receiverConn) handleModernSetup(req rtsp.Request) rtsp.Response {
	body, err := bplist.Decode(req.Content)
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}

	if rc.sess.State() == StatePaired {
		// Phase 1: event/timing negotiation. This receiver always runs the
		// NTP-style fallback timing exchange rather than PTP.
		timingConn, err := rc.listenPacket("udp")
		if err != nil {
			return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "timing udp port"})
		}
		rc.timingConn = timingConn
		rc.clock = timing.NewClock(44100)
		go rc.readControlLoop(timingConn)

		rc.sess.Transition(StateSetupPhase1)
		resp := bplist.NewDict(map[string]bplist.Value{
			"timingPort": bplist.NewInt(int64(udpPort(timingConn))),
		})
		byts, err := bplist.Encode(resp)
		if err != nil {
			return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
		}
		h := cseqHeader(req)
		h.Set("Content-Type", "application/x-apple-binary-plist")
		return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: byts}
	}

	// Phase 2: per-stream audio port allocation.
	streams, ok := body.Get("streams")
	if !ok || len(streams.Array) == 0 {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: "setup phase 2: missing streams"})
	}

	audioConn, err := rc.listenPacket("udp")
	if err != nil {
		return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "audio udp port"})
	}
	controlConn, err := rc.listenPacket("udp")
	if err != nil {
		audioConn.Close()
		return errorResponse(req, liberrors.ErrResourceExhaustion{Resource: "control udp port"})
	}
	rc.audioConn, rc.controlConn = audioConn, controlConn

	audioKey := rc.modernKeys.AudioKey
	if stream := streams.Array[0]; true {
		if shk, ok := stream.Get("shk"); ok {
			if raw, err := shk.AsBytes(); err == nil && len(raw) == 32 {
				copy(audioKey[:], raw)
			}
		}
	}

	decoder := rc.cfg.Decoder
	if decoder == nil {
		decoder = codec.PCMCodec{Channels: 2}
	}
	rc.jitter = jitterbuffer.New(rc.cfg.JitterBuffer)
	rc.audioRecv = rtpaudio.NewReceiver(rtpaudio.ReceiverConfig{
		Decoder:        decoder,
		Encryption:     rtpaudio.EncryptionChaCha20Poly1305,
		ModernAudioKey: audioKey,
		JitterBuffer:   rc.jitter,
		ReceiveInstant: func() int64 { return time.Now().UnixNano() },
		OnRetransmitRequest: rc.sendRetransmitRequest,
	})
	go rc.readAudioLoop(audioConn)

	rc.sess.Transition(StateSetup)

	resp := bplist.NewDict(map[string]bplist.Value{
		"streams": bplist.NewArray(bplist.NewDict(map[string]bplist.Value{
			"type":        bplist.NewInt(modernStreamTypeAudio),
			"dataPort":    bplist.NewInt(int64(udpPort(audioConn))),
			"controlPort": bplist.NewInt(int64(udpPort(controlConn))),
		})),
	})
	byts, err := bplist.Encode(resp)
	if err != nil {
		return errorResponse(req, liberrors.ErrWireFormat{Msg: err.Error()})
	}
	h := cseqHeader(req)
	h.Set("Content-Type", "application/x-apple-binary-plist")
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: byts}
}

func (rc *receiverConn) readAudioLoop(pc net.PacketConn) {
	buf := make([]byte, 65536)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		if err := rc.audioRecv.HandleDatagram(buf[:n]); err != nil {
			rc.log.Debug().Err(err).Msg("audio datagram dropped")
		}
	}
}

// readControlLoop answers legacy timing requests on the control or timing
// socket and anchors rc.clock from each sync packet.
func (rc *receiverConn) readControlLoop(pc net.PacketConn) {
	buf := make([]byte, 256)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		rc.remoteCtrl = addr
		payload := buf[:n]
		if len(payload) < 2 {
			continue
		}
		switch payload[1] &^ 0x80 {
		case timing.PayloadTypeSync:
			if sync, err := timing.DecodeSyncPacket(payload); err == nil {
				rc.clock.SetAnchor(sync.CurrentRTP, timing.DecodeNTP(sync.NTPNow))
			}
		case timing.PayloadTypeTimingRequest:
			if tr, err := timing.DecodeTimingPacket(payload); err == nil {
				resp := timing.TimingPacket{
					Response:  true,
					Originate: tr.Originate,
					Receive:   timing.EncodeNTP(time.Now()),
					Transmit:  timing.EncodeNTP(time.Now()),
				}
				_, _ = pc.WriteTo(resp.Encode(), addr)
			}
		}
	}
}

// sendRetransmitRequest is wired as rtpaudio.ReceiverConfig.OnRetransmitRequest:
// it asks the sender to resend a dropped sequence range over the control
// socket, and surfaces the accumulated loss as an event.
func (rc *receiverConn) sendRetransmitRequest(first, count uint16) error {
	rc.emit(Event{Kind: EventQualityDegraded, Loss: rc.audioRecv.LossReport()})

	if rc.controlConn == nil || rc.remoteCtrl == nil {
		return nil
	}
	pkt := make([]byte, 8)
	pkt[0] = 0x80
	pkt[1] = 0x80 | timing.PayloadTypeRetransmitAsk
	pkt[2] = byte(0)
	pkt[3] = byte(1)
	pkt[4] = byte(first >> 8)
	pkt[5] = byte(first)
	pkt[6] = byte(count >> 8)
	pkt[7] = byte(count)
	_, err := rc.controlConn.WriteTo(pkt, rc.remoteCtrl)
	return err
}

func (rc *receiverConn) handleRecord(req rtsp.Request) rtsp.Response {
	rc.sess.Transition(StateStreaming)
	rc.emit(Event{Kind: EventStreamingStarted})

	h := cseqHeader(req)
	if rc.sess.Dialect() == DialectLegacy {
		h.Set("Audio-Latency", "11025")
	}
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h}
}

func (rc *receiverConn) handleFlush(req rtsp.Request) rtsp.Response {
	if rc.jitter != nil {
		if rtpInfo, ok := req.Header.Get("RTP-Info"); ok {
			if ts, ok := rtpInfoField(rtpInfo, "rtptime"); ok {
				if v, err := strconv.ParseUint(ts, 10, 32); err == nil {
					rc.jitter.FlushBefore(uint32(v))
					rc.emit(Event{Kind: EventFlushRequested})
					return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
				}
			}
		}
		rc.jitter.Flush()
	}
	rc.emit(Event{Kind: EventFlushRequested})
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
}

func rtpInfoField(rtpInfo, key string) (string, bool) {
	for _, part := range strings.Split(rtpInfo, ";") {
		if kv := strings.SplitN(part, "=", 2); len(kv) == 2 && kv[0] == key {
			return kv[1], true
		}
	}
	return "", false
}

func (rc *receiverConn) handlePause(req rtsp.Request) rtsp.Response {
	rc.sess.Transition(StatePaused)
	rc.emit(Event{Kind: EventPaused})
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
}

func (rc *receiverConn) handleTeardown(req rtsp.Request) rtsp.Response {
	rc.legacyKeys.Zero()
	rc.modernKeys.Zero()
	if rc.audioConn != nil {
		rc.audioConn.Close()
	}
	if rc.controlConn != nil {
		rc.controlConn.Close()
	}
	if rc.timingConn != nil {
		rc.timingConn.Close()
	}
	rc.sess.Transition(StateTornDown)
	rc.emit(Event{Kind: EventTeardown})
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
}

func (rc *receiverConn) handleGetParameter(req rtsp.Request) rtsp.Response {
	h := cseqHeader(req)
	h.Set("Content-Type", "text/parameters")
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: []byte("volume: 0.000000\r\n")}
}

func (rc *receiverConn) handleSetParameter(req rtsp.Request) rtsp.Response {
	switch req.ContentTypeOf() {
	case "text/parameters":
		for _, line := range strings.Split(string(req.Content), "\r\n") {
			kv := strings.SplitN(line, ":", 2)
			if len(kv) != 2 {
				continue
			}
			key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
			if key == "volume" {
				if v, err := strconv.ParseFloat(val, 64); err == nil {
					rc.emit(Event{Kind: EventVolumeChanged, Volume: v})
				}
			}
		}
	case "application/x-dmap-tagged", "image/jpeg", "image/png":
		rc.emit(Event{Kind: EventMetadataUpdated})
	}
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: cseqHeader(req)}
}

func (rc *receiverConn) handleBplistPing(req rtsp.Request) rtsp.Response {
	h := cseqHeader(req)
	if len(req.Content) > 0 {
		h.Set("Content-Type", "application/x-apple-binary-plist")
		byts, _ := bplist.Encode(bplist.NewDict(nil))
		return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h, Content: byts}
	}
	return rtsp.Response{StatusCode: rtsp.StatusOK, Header: h}
}

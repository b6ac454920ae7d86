package airplay2

import (
	"bufio"
	"net"
	"testing"

	"github.com/jburnhams/airplay2/pkg/cryptoutil"
	"github.com/jburnhams/airplay2/pkg/pairing"
	"github.com/jburnhams/airplay2/pkg/rtsp"
	"github.com/jburnhams/airplay2/pkg/sdp"
	"github.com/jburnhams/airplay2/pkg/tlv8"
	"github.com/stretchr/testify/require"
)

// receiverHarness drives one receiverConn over a net.Pipe, playing the
// sender side of the plaintext control channel.
type receiverHarness struct {
	t  *testing.T
	rb *bufio.Reader
	bw *bufio.Writer
}

func newReceiverHarness(t *testing.T, cfg ReceiverConfig) (*receiverHarness, *Receiver) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	r := NewReceiver(cfg)
	rc := r.newConn(serverConn)
	r.trackConn(rc)
	go func() {
		rc.run()
		r.untrackConn(rc)
	}()

	return &receiverHarness{t: t, rb: bufio.NewReader(clientConn), bw: bufio.NewWriter(clientConn)}, r
}

func (h *receiverHarness) send(method rtsp.Method, path string, header rtsp.Header, content []byte) rtsp.Response {
	h.t.Helper()
	if header == nil {
		header = rtsp.Header{}
	}
	req := rtsp.Request{Method: method, Path: path, Header: header, Content: content}
	require.NoError(h.t, req.Write(h.bw))

	var res rtsp.Response
	require.NoError(h.t, res.Read(h.rb))
	return res
}

func testDevice() LocalDevice {
	return LocalDevice{Name: "Test Receiver"}
}

func TestReceiverLegacySessionLifecycle(t *testing.T) {
	var events []Event
	h, _ := newReceiverHarness(t, ReceiverConfig{
		Device: testDevice(),
		OnEvent: func(ev Event) { events = append(events, ev) },
	})

	res := h.send(rtsp.Options, "*", rtsp.Header{"Apple-Challenge": {"abc"}}, nil)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	desc := sdp.BuildLegacyAnnounce(sdp.LegacyAnnounceParams{
		ClientIP:   "127.0.0.1",
		ServerIP:   "127.0.0.1",
		SampleRate: 44100,
		Channels:   2,
	})
	body, err := desc.Marshal()
	require.NoError(t, err)
	res = h.send(rtsp.Announce, "rtsp://127.0.0.1/stream", rtsp.Header{"Content-Type": {"application/sdp"}}, body)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	res = h.send(rtsp.Setup, "rtsp://127.0.0.1/stream", rtsp.Header{
		"Transport": {"RTP/AVP/UDP;unicast;mode=record;control_port=6001;timing_port=6002"},
	}, nil)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)
	transport, ok := res.Header.Get("Transport")
	require.True(t, ok)
	require.Contains(t, transport, "server_port=")

	res = h.send(rtsp.Record, "rtsp://127.0.0.1/stream", nil, nil)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	res = h.send(rtsp.Teardown, "rtsp://127.0.0.1/stream", nil, nil)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	require.Len(t, events, 2)
	require.Equal(t, EventStreamingStarted, events[0].Kind)
	require.Equal(t, EventTeardown, events[1].Kind)
}

func TestReceiverRejectsOutOfOrderLegacyRequest(t *testing.T) {
	h, _ := newReceiverHarness(t, ReceiverConfig{Device: testDevice()})

	res := h.send(rtsp.Options, "*", rtsp.Header{"Apple-Challenge": {"abc"}}, nil)
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	// RECORD before ANNOUNCE/SETUP is a state violation.
	res = h.send(rtsp.Record, "rtsp://127.0.0.1/stream", nil, nil)
	require.Equal(t, rtsp.StatusMethodNotValidInThisState, res.StatusCode)
}

func TestReceiverModernPairSetupAndVerify(t *testing.T) {
	var events []Event
	ks := pairing.NewMemoryKeyStore()
	h, r := newReceiverHarness(t, ReceiverConfig{
		Device:   testDevice(),
		Identity: "receiver-1",
		PIN:      "3939",
		KeyStore: ks,
		OnEvent:  func(ev Event) { events = append(events, ev) },
	})
	defer r.Close()

	cltLTPK, cltLTSK, err := cryptoutil.GenerateEd25519KeyPair()
	require.NoError(t, err)

	setup := pairing.NewClientPairSetup("sender-1", cltLTPK, cltLTSK, "3939", true)

	m1 := setup.StartM1()
	res := h.send(rtsp.Post, "/pair-setup", rtsp.Header{"Content-Type": {"application/octet-stream"}}, tlv8.Encode(m1))
	require.Equal(t, rtsp.StatusOK, res.StatusCode)
	m2, err := tlv8.Decode(res.Content)
	require.NoError(t, err)

	m3, err := setup.HandleM2(m2)
	require.NoError(t, err)
	res = h.send(rtsp.Post, "/pair-setup", rtsp.Header{"Content-Type": {"application/octet-stream"}}, tlv8.Encode(m3))
	require.Equal(t, rtsp.StatusOK, res.StatusCode)
	m4, err := tlv8.Decode(res.Content)
	require.NoError(t, err)

	m5, err := setup.HandleM4(m4)
	require.NoError(t, err)
	res = h.send(rtsp.Post, "/pair-setup", rtsp.Header{"Content-Type": {"application/octet-stream"}}, tlv8.Encode(m5))
	require.Equal(t, rtsp.StatusOK, res.StatusCode)
	m6, err := tlv8.Decode(res.Content)
	require.NoError(t, err)

	serverPeer, err := setup.HandleM6(m6)
	require.NoError(t, err)
	require.Equal(t, "receiver-1", serverPeer.Identifier)

	verify, err := pairing.NewClientPairVerify("sender-1", cltLTSK, serverPeer.PublicKey)
	require.NoError(t, err)

	vm1 := verify.StartM1()
	res = h.send(rtsp.Post, "/pair-verify", rtsp.Header{"Content-Type": {"application/octet-stream"}}, tlv8.Encode(vm1))
	require.Equal(t, rtsp.StatusOK, res.StatusCode)
	vm2, err := tlv8.Decode(res.Content)
	require.NoError(t, err)

	vm3, err := verify.HandleM2(vm2)
	require.NoError(t, err)
	res = h.send(rtsp.Post, "/pair-verify", rtsp.Header{"Content-Type": {"application/octet-stream"}}, tlv8.Encode(vm3))
	require.Equal(t, rtsp.StatusOK, res.StatusCode)

	require.Len(t, events, 1)
	require.Equal(t, EventPairingComplete, events[0].Kind)

	_, err = verify.DeriveKeys()
	require.NoError(t, err)

	peer, ok, err := ks.LoadPeer("sender-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cltLTPK, peer.PublicKey)
}

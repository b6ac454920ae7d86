package rtsp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestWriteRead(t *testing.T) {
	req := Request{
		Method: Setup,
		Path:   "rtsp://192.168.1.1/stream",
		Header: Header{
			"CSeq":         {"1"},
			"Client-Instance": {"0123456789ABCDEF"},
		},
		Content: []byte("a=fake-sdp\r\n"),
	}

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	err := req.Write(bw)
	require.NoError(t, err)

	var req2 Request
	rb := bufio.NewReader(&buf)
	err = req2.Read(rb)
	require.NoError(t, err)

	require.Equal(t, req.Method, req2.Method)
	require.Equal(t, req.Path, req2.Path)
	require.Equal(t, req.Content, req2.Content)
	require.Equal(t, "1", req2.Header["CSeq"][0])
}

func TestMethodIsRTSPVerb(t *testing.T) {
	require.True(t, Setup.IsRTSPVerb())
	require.True(t, Flush.IsRTSPVerb())
	require.False(t, Get.IsRTSPVerb())
	require.False(t, Post.IsRTSPVerb())
}

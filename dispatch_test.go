package airplay2

import (
	"testing"

	"github.com/jburnhams/airplay2/pkg/liberrors"
	"github.com/stretchr/testify/require"
)

func TestClassifyRTSPVerbs(t *testing.T) {
	verb, endpoint := Classify("SETUP", "rtsp://1.2.3.4/stream")
	require.Equal(t, VerbSetup, verb)
	require.Equal(t, EndpointNone, endpoint)
}

func TestClassifyEndpointsWithSchemePrefix(t *testing.T) {
	verb, endpoint := Classify("POST", "http://1.2.3.4/pair-setup")
	require.Equal(t, VerbNone, verb)
	require.Equal(t, EndpointPairSetup, endpoint)
}

func TestClassifyUnknownEndpoint(t *testing.T) {
	_, endpoint := Classify("GET", "/something-else")
	require.Equal(t, EndpointUnknown, endpoint)
}

func TestRequiresAuthExemptsPairingEndpoints(t *testing.T) {
	require.False(t, RequiresAuth(VerbNone, EndpointInfo))
	require.False(t, RequiresAuth(VerbNone, EndpointPairSetup))
	require.True(t, RequiresAuth(VerbNone, EndpointCommand))
	require.False(t, RequiresAuth(VerbOptions, EndpointNone))
	require.True(t, RequiresAuth(VerbSetup, EndpointNone))
}

func TestGateRejectsDisallowedState(t *testing.T) {
	err := Gate(StateInit, false, VerbAnnounce, EndpointNone)
	require.ErrorIs(t, err, liberrors.ErrStateViolation{State: "init", Request: "verb"})
}

func TestGateRejectsUnauthenticated(t *testing.T) {
	err := Gate(StateSetup, false, VerbNone, EndpointCommand)
	require.ErrorIs(t, err, liberrors.ErrAuthRequired{})
}

func TestGateAllowsValidAuthenticatedRequest(t *testing.T) {
	err := Gate(StatePaired, true, VerbNone, EndpointCommand)
	require.NoError(t, err)
}

func TestGateOptionsAllowedInAnyState(t *testing.T) {
	require.NoError(t, Gate(StateInit, false, VerbOptions, EndpointNone))
	require.NoError(t, Gate(StateStreaming, true, VerbOptions, EndpointNone))
}

func TestDetectDialectLegacyFromAppleChallenge(t *testing.T) {
	d := DetectDialect("OPTIONS", EndpointNone, "", true)
	require.Equal(t, DialectLegacy, d)
}

func TestDetectDialectLegacyFromAnnounceSDP(t *testing.T) {
	d := DetectDialect("ANNOUNCE", EndpointNone, "application/sdp", false)
	require.Equal(t, DialectLegacy, d)
}

func TestDetectDialectModernFromInfo(t *testing.T) {
	d := DetectDialect("GET", EndpointInfo, "", false)
	require.Equal(t, DialectModern, d)
}

func TestDetectDialectModernFromBplistContentType(t *testing.T) {
	d := DetectDialect("POST", EndpointCommand, "application/x-apple-binary-plist", false)
	require.Equal(t, DialectModern, d)
}

func TestDetectDialectUnknownOtherwise(t *testing.T) {
	d := DetectDialect("GET_PARAMETER", EndpointNone, "text/parameters", false)
	require.Equal(t, DialectUnknown, d)
}

package airplay2

import (
	"net/url"
	"strings"

	"github.com/jburnhams/airplay2/pkg/liberrors"
)

// Verb identifies an RTSP-verb request.
type Verb int

const (
	VerbNone Verb = iota
	VerbOptions
	VerbAnnounce
	VerbSetup
	VerbRecord
	VerbPause
	VerbFlush
	VerbTeardown
	VerbGetParameter
	VerbSetParameter
)

// Endpoint identifies a GET/POST endpoint request.
type Endpoint int

const (
	EndpointNone Endpoint = iota
	EndpointInfo
	EndpointPairSetup
	EndpointPairVerify
	EndpointFPSetup
	EndpointAuthSetup
	EndpointCommand
	EndpointFeedback
	EndpointAudioMode
	EndpointUnknown
)

var endpointByPath = map[string]Endpoint{
	"/info":        EndpointInfo,
	"/pair-setup":  EndpointPairSetup,
	"/pair-verify": EndpointPairVerify,
	"/fp-setup":    EndpointFPSetup,
	"/auth-setup":  EndpointAuthSetup,
	"/command":     EndpointCommand,
	"/feedback":    EndpointFeedback,
	"/audioMode":   EndpointAudioMode,
}

// endpointsWithoutAuth are reachable before pairing completes: everything
// except /info, /pair-setup, /pair-verify, and /auth-setup requires auth.
var endpointsWithoutAuth = map[Endpoint]bool{
	EndpointInfo:       true,
	EndpointPairSetup:  true,
	EndpointPairVerify: true,
	EndpointAuthSetup:  true,
}

// Classify implements the classification rule: RTSP verbs dispatch on method,
// GET/POST dispatch on URI path (after stripping an optional scheme://host
// prefix).
func Classify(method, uri string) (Verb, Endpoint) {
	switch strings.ToUpper(method) {
	case "OPTIONS":
		return VerbOptions, EndpointNone
	case "ANNOUNCE":
		return VerbAnnounce, EndpointNone
	case "SETUP":
		return VerbSetup, EndpointNone
	case "RECORD":
		return VerbRecord, EndpointNone
	case "PAUSE":
		return VerbPause, EndpointNone
	case "FLUSH":
		return VerbFlush, EndpointNone
	case "TEARDOWN":
		return VerbTeardown, EndpointNone
	case "GET_PARAMETER":
		return VerbGetParameter, EndpointNone
	case "SET_PARAMETER":
		return VerbSetParameter, EndpointNone
	case "GET", "POST":
		return VerbNone, classifyPath(uri)
	default:
		return VerbNone, EndpointUnknown
	}
}

func classifyPath(uri string) Endpoint {
	path := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		path = u.Path
	}
	if e, ok := endpointByPath[path]; ok {
		return e
	}
	return EndpointUnknown
}

// RequiresAuth reports whether endpoint demands a Paired-or-later session.
// RTSP verbs other than OPTIONS also require auth; OPTIONS is reachable in
// any state.
func RequiresAuth(verb Verb, endpoint Endpoint) bool {
	if endpoint != EndpointNone {
		return !endpointsWithoutAuth[endpoint]
	}
	return verb != VerbOptions && verb != VerbNone
}

// verbAllowedStates is the compile-time per-verb allow-list.
var verbAllowedStates = map[Verb][]SessionState{
	VerbOptions:      {StateInit, StateOptionsReceived, StateAnnounced, StateSetup, StateSetupPhase1, StatePaired, StateStreaming, StatePaused},
	VerbAnnounce:     {StateOptionsReceived},
	VerbSetup:        {StateAnnounced, StatePaired, StateSetupPhase1},
	VerbRecord:       {StateSetup},
	VerbFlush:        {StateStreaming, StatePaused},
	VerbPause:        {StateStreaming},
	VerbTeardown:     {StateOptionsReceived, StateAnnounced, StateSetup, StateSetupPhase1, StatePaired, StateStreaming, StatePaused},
	VerbGetParameter: {StateSetup, StateStreaming, StatePaused},
	VerbSetParameter: {StateSetup, StateStreaming, StatePaused},
}

var endpointAllowedStates = map[Endpoint][]SessionState{
	EndpointInfo:       nil, // any state
	EndpointPairSetup:  {StateInit, StateOptionsReceived},
	EndpointPairVerify: {StateInit, StateOptionsReceived},
	EndpointAuthSetup:  nil, // any state
	EndpointFPSetup:    nil,
	EndpointCommand:    {StatePaired, StateSetup, StateSetupPhase1, StateStreaming, StatePaused},
	EndpointFeedback:   {StatePaired, StateSetup, StateSetupPhase1, StateStreaming, StatePaused},
	EndpointAudioMode:  {StatePaired, StateSetup, StateSetupPhase1, StateStreaming, StatePaused},
}

func stateAllowed(state SessionState, allowed []SessionState) bool {
	if allowed == nil {
		return true
	}
	for _, s := range allowed {
		if s == state {
			return true
		}
	}
	return false
}

// Gate reports whether request (verb, endpoint) is reachable from state,
// and whether the session's auth level satisfies it. A disallowed
// combination yields liberrors.ErrStateViolation; a combination that needs
// pairing on an unpaired session yields liberrors.ErrAuthRequired.
func Gate(state SessionState, authenticated bool, verb Verb, endpoint Endpoint) error {
	var allowed []SessionState
	var label string
	if endpoint != EndpointNone {
		allowed = endpointAllowedStates[endpoint]
		label = "endpoint"
	} else {
		allowed = verbAllowedStates[verb]
		label = "verb"
	}

	if !stateAllowed(state, allowed) {
		return liberrors.ErrStateViolation{State: state.String(), Request: label}
	}

	if RequiresAuth(verb, endpoint) && !authenticated {
		return liberrors.ErrAuthRequired{}
	}

	return nil
}

// DetectDialect implements the dialect-detection rule from one request's
// method, endpoint, content type, and headers.
func DetectDialect(method string, endpoint Endpoint, contentType string, hasAppleChallenge bool) Dialect {
	switch endpoint {
	case EndpointInfo, EndpointPairSetup, EndpointPairVerify:
		return DialectModern
	}
	if contentType == "application/x-apple-binary-plist" {
		return DialectModern
	}
	if strings.ToUpper(method) == "OPTIONS" && hasAppleChallenge {
		return DialectLegacy
	}
	if strings.ToUpper(method) == "ANNOUNCE" && contentType == "application/sdp" {
		return DialectLegacy
	}
	return DialectUnknown
}

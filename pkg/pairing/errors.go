package pairing

import "errors"

// Sentinel errors surfaced as liberrors.ErrAuthFailed by the caller.
var (
	// ErrSRPProofMismatch is returned when a SRP evidence message (M1/M2)
	// fails to verify.
	ErrSRPProofMismatch = errors.New("pairing: SRP proof mismatch")

	// ErrSignatureMismatch is returned when an Ed25519 signature over a
	// pair-setup or pair-verify transcript fails to verify.
	ErrSignatureMismatch = errors.New("pairing: signature mismatch")

	// ErrUnknownPeer is returned when pair-verify is attempted by an
	// identity absent from the host's KeyStore.
	ErrUnknownPeer = errors.New("pairing: unknown peer identity")
)

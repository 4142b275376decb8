package simulation

import "errors"

// Sentinel errors reported by a round.
var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrVerification     = errors.New("verification failed")
)

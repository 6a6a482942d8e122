package contract

import "errors"

// Signing flow failures exposed to transport. Services translate aggregate
// and repo errors into these; handlers map them onto HTTP status codes.
var (
	ErrContractNotFound       = errors.New("contract not found")
	ErrSessionNotFound        = errors.New("signing session not found")
	ErrSessionExpired         = errors.New("signing session expired")
	ErrSessionConsumed        = errors.New("signing session already consumed")
	ErrMaxAttemptsExceeded    = errors.New("verification attempts exhausted")
	ErrInvalidCode            = errors.New("verification code does not match")
	ErrAlreadySigned          = errors.New("signature slot already filled")
	ErrNotAParty              = errors.New("signer is not a party to the contract")
	ErrInvalidStateTransition = errors.New("contract status transition not allowed")
	ErrConcurrencyConflict    = errors.New("concurrent update conflict")

	ErrRenderTimeout = errors.New("document render deadline exceeded")
	ErrRenderFailure = errors.New("document render failed")

	ErrArtifactNotFound     = errors.New("artifact not found")
	ErrIntegrityMismatch    = errors.New("artifact bytes do not match recorded hash")
	ErrEncryptionKeyMissing = errors.New("artifact encryption key not configured")
)

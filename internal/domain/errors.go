package domain

import "errors"

var (
	ErrTransientNetwork    = errors.New("transient network error")
	ErrAuthRejected        = errors.New("credential rejected")
	ErrTerminalSyncFailure = errors.New("sync retries exhausted")
	ErrGateViolation       = errors.New("daily ad cap reached")

	ErrHandshakeFailed  = errors.New("tunnel handshake failed")
	ErrGateBusy         = errors.New("another ad sequence is in flight")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenNotFound    = errors.New("auth token not found")
	ErrAlreadyClaimed   = errors.New("daily bonus already claimed")
)

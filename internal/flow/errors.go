package flow

import "errors"

// Sentinel errors returned by the flow controller. The API layer maps each
// to an HTTP status and a user-facing message; upstream detail is logged
// server-side and never surfaced to the client.
var (
	// ErrBadRequest means required input was missing or invalid.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized means the session has no verified identity.
	ErrUnauthorized = errors.New("session not verified")
	// ErrNotFound means the email or OTP record is absent or expired.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode means the supplied OTP did not match the stored code.
	ErrInvalidCode = errors.New("invalid otp code")
	// ErrInvalidState means the call violated the flow order.
	ErrInvalidState = errors.New("invalid flow state")
	// ErrUpstream means the store, mailer, or completion service failed.
	ErrUpstream = errors.New("upstream failure")
)

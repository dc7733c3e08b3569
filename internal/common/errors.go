// Package common defines shared sentinel errors and small helpers used across
// the server packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Credential verification errors. Both are surfaced to clients the same way
	// so that a response never tells whether an email is registered.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	// ErrTokenInvalid covers every bearer token failure: missing, malformed,
	// bad signature, wrong algorithm, expired.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrSessionStoreUnavailable means the session backend could not be reached.
	// Nobody can be authenticated safely without it.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")

	// Strategy registry errors.
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrStrategyInput   = errors.New("malformed strategy input")
	ErrOAuthState      = errors.New("oauth state mismatch")
)

// IsLoginFailure reports whether err is one of the credential failures that a
// login endpoint reports to the client as a plain failed attempt.
func IsLoginFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrOAuthState)
}

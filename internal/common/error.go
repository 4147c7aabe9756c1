// Package common defines shared constants and sentinel errors used across
// the identity server and its CLI client. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Identity errors.
	ErrDuplicateIdentity = errors.New("identity already taken")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountDisabled   = errors.New("account disabled")
	ErrBadCredentials    = errors.New("bad credentials")

	// Email verification errors.
	ErrVerificationRequired = errors.New("email verification required")
	ErrVerificationExpired  = errors.New("verification expired")
	ErrVerificationInvalid  = errors.New("verification invalid")
	ErrAlreadyVerified      = errors.New("email already verified")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")

	// Federated login errors.
	ErrProviderMismatch    = errors.New("account bound to a different provider")
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrAlreadyCompleted    = errors.New("signup already completed")
	ErrNotOAuthAccount     = errors.New("not an oauth2 account")

	// Mail dispatch could not accept a message in time.
	ErrMailUnavailable = errors.New("mail dispatch unavailable")
)

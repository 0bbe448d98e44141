package auth

import "errors"

// Sentinel errors for token validation.
var (
	// ErrTokenInvalid indicates the token failed signature, expiry, or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: token invalid")

	// ErrSecretTooShort indicates the signing secret does not meet the
	// minimum length requirement.
	ErrSecretTooShort = errors.New("auth: signing secret too short")
)

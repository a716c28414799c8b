package domain

import "errors"

var (
	// ErrInvalidInput marks missing or malformed caller input. It is wrapped
	// with a detail message that is surfaced verbatim.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidAccessCode  = errors.New("invalid or expired access code")
	ErrAccessCodeExpired  = errors.New("access code has expired")
	ErrAccessCodeNotFound = errors.New("code not found or already expired")
	ErrActiveCodeExists   = errors.New("role already has an active access code")
	ErrTooManyAttempts    = errors.New("too many access code attempts")
	ErrInvalidTransition  = errors.New("invalid access code status transition")

	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
)

// IsAuthenticationError reports whether err rejects a presented access code.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrInvalidAccessCode) || errors.Is(err, ErrAccessCodeExpired)
}

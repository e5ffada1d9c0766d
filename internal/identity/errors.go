package identity

import "errors"

// Error values surfaced by the user directory.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account suspended or banned")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidConfig      = errors.New("invalid identity config")
)

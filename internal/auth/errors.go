package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown username, wrong password, and
	// password login against a password-less account, indistinguishably.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers malformed, forged and expired tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidPassword is returned when a password re-entry gate
	// (change password, MFA enable/disable) fails.
	ErrInvalidPassword = errors.New("invalid password")

	ErrWeakPassword    = errors.New("password must be at least 6 characters")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrSessionNotFound = errors.New("session not found")
	ErrExchangeFailed  = errors.New("identity exchange failed")
)

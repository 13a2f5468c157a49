package store

import "errors"

var (
	// ErrCodeInvalid covers every one-time-code failure that must stay
	// indistinguishable: no code on file, wrong value, already consumed.
	ErrCodeInvalid = errors.New("invalid code")
	// ErrCodeExpired is returned for a correct but expired code. Only the
	// code services surface this distinction; login never does.
	ErrCodeExpired = errors.New("code expired")
)

package model

import "time"

// MFACode is a short-lived emailed challenge code. At most one unconsumed,
// unexpired code exists per user; issuing a new one retires the old.
type MFACode struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Code       string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ResetCode authorizes a password reset without the current password. Wider
// and longer-lived than an MFA code, same single-use rules.
type ResetCode struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Code       string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

package model

import "time"

// Session is the server-side record backing one issued token. ExpiresAt is
// fixed at creation; only LastActivity advances on use.
type Session struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Token        string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
}

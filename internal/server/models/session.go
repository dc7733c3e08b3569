package models

import "time"

// Session is a server-side session record keyed by an opaque id.
// Identity is nil for a session that exists but carries no login.
type Session struct {
	ID        string
	Identity  *Identity
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

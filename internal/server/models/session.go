package models

import "time"

// Session is one outstanding refresh-token grant. Only the SHA-256 digest
// of the refresh token is kept; the token itself is a bearer secret.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// IsValid reports whether the session can still be exchanged at now.
func (s *Session) IsValid(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}

package models

import "time"

// LoginSession is the durable record of a login event. Sessions are never
// hard-deleted; revocation sets RevokedAt.
type LoginSession struct {
	ID         string
	UserID     string
	Provider   AuthProvider
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// Active reports whether the session is unrevoked and unexpired at now.
func (s *LoginSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

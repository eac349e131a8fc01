package domain

import "time"

// State is the derived lifecycle state of a session.
type State string

const (
	StateActive  State = "ACTIVE"
	StateRevoked State = "REVOKED"
	StateExpired State = "EXPIRED"
)

// Session is one signed-in device. Rotation swaps fingerprints in place; the
// row is never re-created and never reactivated once revoked.
type Session struct {
	ID                 string
	AccountID          string
	AccessFingerprint  string // SHA-256 of the current access token
	RefreshFingerprint string // SHA-256 of the current refresh token
	ExpiresAt          time.Time
	CreatedAt          time.Time
	IP                 string
	UserAgent          string
	IsActive           bool
}

// StateAt returns the session state at now. Revocation wins over expiry.
func (s *Session) StateAt(now time.Time) State {
	switch {
	case !s.IsActive:
		return StateRevoked
	case !now.Before(s.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// Usable reports whether the session can still be refreshed at now.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.StateAt(now) == StateActive
}

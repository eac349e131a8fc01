package domain

import "time"

// APIKey is a long-lived machine credential. Only the fingerprint of the raw
// key is stored; Prefix keeps enough of it for the owner to recognise the key.
type APIKey struct {
	ID             string
	AccountID      string
	Name           string
	Prefix         string
	KeyFingerprint string
	LastUsed       *time.Time
	ExpiresAt      *time.Time // nil means the key never expires
	IsActive       bool
	CreatedAt      time.Time
}

// ExpiredAt reports whether the key has an expiry at or before now.
func (k *APIKey) ExpiredAt(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

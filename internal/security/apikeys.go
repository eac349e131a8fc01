package security

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	// APIKeyScheme prefixes every raw API key.
	APIKeyScheme = "sk_"
	// APIKeyPrefixLen is how many leading characters are stored for display.
	APIKeyPrefixLen = len(APIKeyScheme) + 8
)

// GenerateAPIKey returns a raw key (sk_ + 32 random bytes, base64url) and its
// display prefix. Only the fingerprint of raw may be persisted.
func GenerateAPIKey() (raw, prefix string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = APIKeyScheme + base64.RawURLEncoding.EncodeToString(b)
	return raw, raw[:APIKeyPrefixLen], nil
}

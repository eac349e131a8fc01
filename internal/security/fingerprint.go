package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns the hex SHA-256 of a token. Sessions and API keys store
// fingerprints, never raw tokens.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual reports in constant time whether token hashes to stored.
func FingerprintEqual(token, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(Fingerprint(token)), []byte(stored)) == 1
}

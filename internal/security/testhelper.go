package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	TestAccessSecret  = "test-access-secret-do-not-use-in-prod-0001"
	TestRefreshSecret = "test-refresh-secret-do-not-use-in-prod-002"
	TestIssuer        = "siteauth-test"
)

// NewTestTokenIssuer returns an issuer with fixed test secrets, a 15m access TTL
// and a 24h refresh TTL. now may be nil. For unit tests only.
func NewTestTokenIssuer(now func() time.Time) *TokenIssuer {
	i, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  TestAccessSecret,
		RefreshSecret: TestRefreshSecret,
		Issuer:        TestIssuer,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Now:           now,
	})
	if err != nil {
		panic(err)
	}
	return i
}

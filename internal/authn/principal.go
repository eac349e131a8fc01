// Package authn turns a bearer token or API key into a Principal built from the
// live account record, and carries that Principal through request contexts.
package authn

import (
	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/ratelimit"
)

// Method is how a principal authenticated.
type Method string

const (
	MethodBearer Method = "bearer"
	MethodAPIKey Method = "api_key"
)

// Principal is the verified caller. Role, Plan and Status come from the
// account row at verification time, never from token claims.
type Principal struct {
	AccountID string
	Email     string
	Role      accountdomain.Role
	Plan      accountdomain.Plan
	Status    accountdomain.Status
	Method    Method
	SessionID string // bearer only
	APIKeyID  string // api key only
}

func newPrincipal(acc *accountdomain.Account, method Method) *Principal {
	return &Principal{
		AccountID: acc.ID,
		Email:     acc.Email,
		Role:      acc.Role,
		Plan:      acc.Plan,
		Status:    acc.Status,
		Method:    method,
	}
}

// FromBearer builds a principal for an access-token caller.
func FromBearer(acc *accountdomain.Account, sessionID string) *Principal {
	p := newPrincipal(acc, MethodBearer)
	p.SessionID = sessionID
	return p
}

// FromAPIKey builds a principal for a machine caller.
func FromAPIKey(acc *accountdomain.Account, keyID string) *Principal {
	p := newPrincipal(acc, MethodAPIKey)
	p.APIKeyID = keyID
	return p
}

// Allows reports whether the principal's role and plan grant perm.
func (p *Principal) Allows(perm accountdomain.Permission) bool {
	if p == nil {
		return false
	}
	return accountdomain.Allows(p.Role, p.Plan, perm)
}

// RateLimitKey is the limiter identity: the key id for machine callers, the account otherwise.
func (p *Principal) RateLimitKey() string {
	if p.Method == MethodAPIKey {
		return ratelimit.APIKeyKey(p.APIKeyID)
	}
	return ratelimit.AccountKey(p.AccountID)
}

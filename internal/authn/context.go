package authn

import "context"

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying p. Handlers read it with PrincipalFromContext.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal and true if one was set; otherwise nil, false.
// Anonymous callers on optional-auth routes have none.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// AccountID returns the principal's account id, or "" when anonymous.
func AccountID(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.AccountID
	}
	return ""
}

// SessionID returns the bearer principal's session id, or "".
func SessionID(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.SessionID
	}
	return ""
}

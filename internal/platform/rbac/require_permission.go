// Package rbac gates operations on the verified principal's role and plan.
package rbac

import (
	"context"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/authn"
)

// RequirePrincipal returns the authenticated principal in ctx, or MissingToken
// when the caller is anonymous.
func RequirePrincipal(ctx context.Context) (*authn.Principal, error) {
	p, ok := authn.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperr.ErrMissingToken
	}
	return p, nil
}

// RequirePermission ensures the caller is authenticated and that its live role
// and plan grant perm. Denials are recorded as permission_denied events.
func RequirePermission(ctx context.Context, events audit.Recorder, perm accountdomain.Permission) (*authn.Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.Allows(perm) {
		if events != nil {
			events.Record(ctx, auditdomain.EventPermissionDenied, p.AccountID, map[string]string{
				"permission": perm.String(),
				"role":       string(p.Role),
				"plan":       string(p.Plan),
			})
		}
		return nil, apperr.ErrPermissionDenied
	}
	return p, nil
}

package rbac

import (
	"context"
	"errors"
	"testing"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit/audittest"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/authn"
)

func ctxWith(role accountdomain.Role, plan accountdomain.Plan) context.Context {
	acc := &accountdomain.Account{ID: "acc-1", Role: role, Plan: plan, Status: accountdomain.StatusActive}
	return authn.WithPrincipal(context.Background(), authn.FromBearer(acc, "sess-1"))
}

func TestRequirePermission_Anonymous(t *testing.T) {
	events := &audittest.Recorder{}
	_, err := RequirePermission(context.Background(), events, accountdomain.PermViewCatalog)
	if !errors.Is(err, apperr.ErrMissingToken) {
		t.Fatalf("err = %v, want MissingToken", err)
	}
	if len(events.Names()) != 0 {
		t.Errorf("anonymous call recorded %v", events.Names())
	}
}

func TestRequirePermission(t *testing.T) {
	testCases := []struct {
		name    string
		role    accountdomain.Role
		plan    accountdomain.Plan
		perm    accountdomain.Permission
		allowed bool
	}{
		{"basic user views catalog", accountdomain.RoleUser, accountdomain.PlanBasic, accountdomain.PermViewCatalog, true},
		{"basic user api keys", accountdomain.RoleUser, accountdomain.PlanBasic, accountdomain.PermManageAPIKeys, false},
		{"premium user api keys", accountdomain.RoleUser, accountdomain.PlanPremium, accountdomain.PermManageAPIKeys, true},
		{"enterprise user premium content", accountdomain.RoleUser, accountdomain.PlanEnterprise, accountdomain.PermPremiumContent, true},
		{"admin on basic plan api keys", accountdomain.RoleAdmin, accountdomain.PlanBasic, accountdomain.PermManageAPIKeys, true},
		{"admin manages accounts", accountdomain.RoleAdmin, accountdomain.PlanBasic, accountdomain.PermManageAccounts, true},
		{"admin platform", accountdomain.RoleAdmin, accountdomain.PlanEnterprise, accountdomain.PermManagePlatform, false},
		{"super admin platform", accountdomain.RoleSuperAdmin, accountdomain.PlanBasic, accountdomain.PermManagePlatform, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events := &audittest.Recorder{}
			p, err := RequirePermission(ctxWith(tc.role, tc.plan), events, tc.perm)
			if tc.allowed {
				if err != nil || p == nil || p.AccountID != "acc-1" {
					t.Fatalf("RequirePermission = %v, %v", p, err)
				}
				if len(events.Names()) != 0 {
					t.Errorf("allowed call recorded %v", events.Names())
				}
				return
			}
			if !errors.Is(err, apperr.ErrPermissionDenied) {
				t.Fatalf("err = %v, want PermissionDenied", err)
			}
			if apperr.HTTPStatus(err) != 403 {
				t.Errorf("status = %d", apperr.HTTPStatus(err))
			}
			ev := events.Last()
			if ev.Name != auditdomain.EventPermissionDenied || ev.Metadata["permission"] != tc.perm.String() {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestRequirePermission_NilRecorder(t *testing.T) {
	if _, err := RequirePermission(ctxWith(accountdomain.RoleUser, accountdomain.PlanBasic), nil, accountdomain.PermManagePlatform); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("err = %v", err)
	}
}

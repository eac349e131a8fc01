package domain

// Permission is a capability checked against an account's role and plan.
type Permission int

const (
	// PermViewCatalog: browse the catalog. Every active account.
	PermViewCatalog Permission = iota + 1
	// PermPremiumContent: premium templates and personalised catalog.
	PermPremiumContent
	// PermManageAPIKeys: create machine credentials.
	PermManageAPIKeys
	// PermManageAccounts: change other accounts' status or plan.
	PermManageAccounts
	// PermManagePlatform: platform-wide settings.
	PermManagePlatform
)

func (p Permission) String() string {
	switch p {
	case PermViewCatalog:
		return "view_catalog"
	case PermPremiumContent:
		return "premium_content"
	case PermManageAPIKeys:
		return "manage_api_keys"
	case PermManageAccounts:
		return "manage_accounts"
	case PermManagePlatform:
		return "manage_platform"
	default:
		return "unknown"
	}
}

func roleRank(r Role) int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

func planRank(p Plan) int {
	switch p {
	case PlanBasic:
		return 1
	case PlanPremium:
		return 2
	case PlanEnterprise:
		return 3
	default:
		return 0
	}
}

// Allows is the single authorization predicate. Unknown roles, plans or
// permissions are denied.
func Allows(role Role, plan Plan, p Permission) bool {
	r, pl := roleRank(role), planRank(plan)
	if r == 0 || pl == 0 {
		return false
	}
	switch p {
	case PermViewCatalog:
		return true
	case PermPremiumContent, PermManageAPIKeys:
		return pl >= planRank(PlanPremium) || r >= roleRank(RoleAdmin)
	case PermManageAccounts:
		return r >= roleRank(RoleAdmin)
	case PermManagePlatform:
		return r == roleRank(RoleSuperAdmin)
	default:
		return false
	}
}

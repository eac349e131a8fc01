package domain

import "time"

// Severity is the triage tier of a security event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// EventName identifies an authentication decision.
type EventName string

const (
	EventRegisterSuccess       EventName = "register_success"
	EventRegisterConflict      EventName = "register_conflict"
	EventLoginSuccess          EventName = "login_success"
	EventLoginFailure          EventName = "login_failure"
	EventLoginInactive         EventName = "login_inactive"
	EventLoginRateLimited      EventName = "login_rate_limited"
	EventTokenRefreshed        EventName = "token_refreshed"
	EventRefreshFailure        EventName = "refresh_failure"
	EventRefreshReuse          EventName = "refresh_reuse"
	EventLogout                EventName = "logout"
	EventLogoutAll             EventName = "logout_all"
	EventPasswordChanged       EventName = "password_changed"
	EventPasswordChangeFailure EventName = "password_change_failure"
	EventTokenMissing          EventName = "token_missing"
	EventTokenVerified         EventName = "token_verified"
	EventTokenInvalid          EventName = "token_invalid"
	EventTokenExpired          EventName = "token_expired"
	EventAccountInactive       EventName = "account_inactive"
	EventAccountNotFound       EventName = "account_not_found"
	EventRateLimited           EventName = "rate_limited"
	EventAPIKeyCreated         EventName = "api_key_created"
	EventAPIKeyRevoked         EventName = "api_key_revoked"
	EventAPIKeySuccess         EventName = "api_key_success"
	EventAPIKeyInvalid         EventName = "api_key_invalid"
	EventAPIKeyExpired         EventName = "api_key_expired"
	EventPermissionDenied      EventName = "permission_denied"
)

var severities = map[EventName]Severity{
	EventRegisterSuccess:       SeverityLow,
	EventRegisterConflict:      SeverityLow,
	EventLoginSuccess:          SeverityLow,
	EventLoginFailure:          SeverityMedium,
	EventLoginInactive:         SeverityMedium,
	EventLoginRateLimited:      SeverityHigh,
	EventTokenRefreshed:        SeverityLow,
	EventRefreshFailure:        SeverityMedium,
	EventRefreshReuse:          SeverityHigh,
	EventLogout:                SeverityLow,
	EventLogoutAll:             SeverityMedium,
	EventPasswordChanged:       SeverityMedium,
	EventPasswordChangeFailure: SeverityMedium,
	EventTokenMissing:          SeverityLow,
	EventTokenVerified:         SeverityLow,
	EventTokenInvalid:          SeverityMedium,
	EventTokenExpired:          SeverityLow,
	EventAccountInactive:       SeverityMedium,
	EventAccountNotFound:       SeverityMedium,
	EventRateLimited:           SeverityHigh,
	EventAPIKeyCreated:         SeverityLow,
	EventAPIKeyRevoked:         SeverityLow,
	EventAPIKeySuccess:         SeverityLow,
	EventAPIKeyInvalid:         SeverityHigh,
	EventAPIKeyExpired:         SeverityMedium,
	EventPermissionDenied:      SeverityMedium,
}

// SeverityOf returns the catalogued severity of name. Uncatalogued names are medium.
func SeverityOf(name EventName) Severity {
	if s, ok := severities[name]; ok {
		return s
	}
	return SeverityMedium
}

// SecurityEvent is one write-only record of an authentication decision.
type SecurityEvent struct {
	Name      EventName
	Severity  Severity
	AccountID string // empty when the caller is unknown
	ClientIP  string
	Metadata  map[string]string
	Timestamp time.Time
}

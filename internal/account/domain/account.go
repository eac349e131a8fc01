package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the account's administrative role.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole parses a stored or claimed role; unknown values are an error.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Plan is the subscription tier.
type Plan string

const (
	PlanBasic      Plan = "BASIC"
	PlanPremium    Plan = "PREMIUM"
	PlanEnterprise Plan = "ENTERPRISE"
)

// ParsePlan parses a stored or claimed plan; unknown values are an error.
func ParsePlan(s string) (Plan, error) {
	switch p := Plan(strings.ToUpper(strings.TrimSpace(s))); p {
	case PlanBasic, PlanPremium, PlanEnterprise:
		return p, nil
	default:
		return "", fmt.Errorf("unknown plan %q", s)
	}
}

// Status is the account lifecycle state. Only ACTIVE accounts may authenticate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus parses a stored status; unknown values are an error.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive, StatusSuspended, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Account is a credential-bearing identity.
type Account struct {
	ID           string
	Email        string // lower-cased
	PasswordHash string
	Role         Role
	Plan         Plan
	Status       Status
	LastLogin    *time.Time // nil until first verified request
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

// Validate validates the account for persistence and fills enum defaults.
// Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.Plan == "" {
		a.Plan = PlanBasic
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	if _, err := ParsePlan(string(a.Plan)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(a.Status)); err != nil {
		return err
	}
	return nil
}

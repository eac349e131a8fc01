package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/db/dbtest"
)

func newAccount(email string) *domain.Account {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "$2a$04$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(dbtest.Open(t))

	a := newAccount("a@x.io")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "a@x.io")
	if err != nil || got == nil {
		t.Fatalf("GetByEmail = %v, %v", got, err)
	}
	if got.ID != a.ID || got.Role != domain.RoleUser || got.Plan != domain.PlanBasic || got.Status != domain.StatusActive {
		t.Errorf("account = %+v", got)
	}
	if got.LastLogin != nil {
		t.Error("LastLogin should be nil for a new account")
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}

	byID, err := repo.GetByID(ctx, a.ID)
	if err != nil || byID == nil || byID.Email != "a@x.io" {
		t.Fatalf("GetByID = %v, %v", byID, err)
	}
}

func TestSQLRepository_NotFoundIsNil(t *testing.T) {
	repo := NewSQLRepository(dbtest.Open(t))
	got, err := repo.GetByEmail(context.Background(), "missing@x.io")
	if err != nil || got != nil {
		t.Errorf("GetByEmail missing = %v, %v; want nil, nil", got, err)
	}
	if err := repo.UpdateLastLogin(context.Background(), "nope", time.Now()); !errors.Is(err, apperr.ErrAccountNotFound) {
		t.Errorf("UpdateLastLogin missing = %v", err)
	}
}

func TestSQLRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(dbtest.Open(t))
	if err := repo.Create(ctx, newAccount("dup@x.io")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, newAccount("dup@x.io"))
	if !errors.Is(err, apperr.ErrEmailTaken) {
		t.Errorf("second Create = %v, want ErrEmailTaken", err)
	}
}

func TestSQLRepository_Updates(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(dbtest.Open(t))
	a := newAccount("u@x.io")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := repo.UpdatePassword(ctx, a.ID, "$2a$04$new", at); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if err := repo.UpdateLastLogin(ctx, a.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	if err := repo.UpdateStatus(ctx, a.ID, domain.StatusSuspended, at); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdatePlan(ctx, a.ID, domain.PlanPremium, at); err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if err := repo.UpdateStatus(ctx, a.ID, "FROZEN", at); err == nil {
		t.Error("UpdateStatus with unknown status should fail")
	}

	got, _ := repo.GetByID(ctx, a.ID)
	if got.PasswordHash != "$2a$04$new" || got.Status != domain.StatusSuspended || got.Plan != domain.PlanPremium {
		t.Errorf("after updates = %+v", got)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("LastLogin = %v, want %v", got.LastLogin, at)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}
}

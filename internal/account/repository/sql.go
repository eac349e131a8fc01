package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/db"
)

const accountColumns = `id, email, password_hash, role, plan, status, last_login, created_at, updated_at`

// SQLRepository stores accounts in Postgres or SQLite.
type SQLRepository struct {
	db *db.DB
}

// NewSQLRepository returns an account repository that uses the given db for persistence.
func NewSQLRepository(d *db.DB) *SQLRepository {
	return &SQLRepository{db: d}
}

// GetByID returns the account for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	return scanAccount(row)
}

// GetByEmail returns the account with the given email, or nil if not found.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), email)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set; it is not assigned by this method.
func (r *SQLRepository) Create(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
INSERT INTO accounts (`+accountColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Email, a.PasswordHash, string(a.Role), string(a.Plan), string(a.Status),
		nullTime(a.LastLogin), a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Wrap(apperr.ErrEmailTaken, err)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *SQLRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.exec(ctx, "update password", `UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`, passwordHash, at.UTC(), id)
}

// UpdateLastLogin records the last verified request time.
func (r *SQLRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "update last login", `UPDATE accounts SET last_login = ? WHERE id = ?`, at.UTC(), id)
}

// UpdateStatus changes the lifecycle status.
func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) error {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return r.exec(ctx, "update status", `UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`, string(status), at.UTC(), id)
}

// UpdatePlan changes the subscription plan.
func (r *SQLRepository) UpdatePlan(ctx context.Context, id string, plan domain.Plan, at time.Time) error {
	if _, err := domain.ParsePlan(string(plan)); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return r.exec(ctx, "update plan", `UPDATE accounts SET plan = ?, updated_at = ? WHERE id = ?`, string(plan), at.UTC(), id)
}

func (r *SQLRepository) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return apperr.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a                  domain.Account
		role, plan, status string
		lastLogin          sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &plan, &status, &lastLogin, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	if a.Role, err = domain.ParseRole(role); err != nil {
		return nil, err
	}
	if a.Plan, err = domain.ParsePlan(plan); err != nil {
		return nil, err
	}
	if a.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		a.LastLogin = &t
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

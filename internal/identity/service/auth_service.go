// Package service implements the account-facing auth flows: register, login,
// refresh rotation, logout, password change and session management.
package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/ratelimit"
	"siteauth/backend/internal/security"
	sessiondomain "siteauth/backend/internal/session/domain"
	sessionrepo "siteauth/backend/internal/session/repository"
)

const maxUserAgentLen = 512

// AccountRepo is the account persistence needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

// SessionRepo is the session persistence needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	FindActiveByRefreshFingerprint(ctx context.Context, fp string, now time.Time) (*sessiondomain.Session, error)
	Rotate(ctx context.Context, p sessionrepo.RotateParams) error
	Revoke(ctx context.Context, id string) error
	RevokeAll(ctx context.Context, accountID, exceptID string) (int64, error)
	ListActiveByAccount(ctx context.Context, accountID string, now time.Time) ([]*sessiondomain.Session, error)
}

// Limiter throttles login attempts.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// DeviceMeta describes the client a session is created for.
type DeviceMeta struct {
	IP        string
	UserAgent string
}

// AuthResult is returned by Register, Login and Refresh.
type AuthResult struct {
	Account   *accountdomain.Account
	SessionID string
	Tokens    security.TokenPair
}

// AuthService implements password register, login, refresh rotation and revocation.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRepo
	hasher   *security.Hasher
	tokens   *security.TokenIssuer
	events   audit.Recorder
	log      zerolog.Logger
	limiter  Limiter // nil disables login throttling
	now      func() time.Time
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithLoginLimiter throttles login attempts per e-mail address.
func WithLoginLimiter(l Limiter) Option {
	return func(s *AuthService) { s.limiter = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService returns an AuthService with the given dependencies. A nil
// events recorder discards events.
func NewAuthService(
	accounts AccountRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenIssuer,
	events audit.Recorder,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	if events == nil {
		events = audit.Nop{}
	}
	s := &AuthService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		events:   events,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an ACTIVE USER/BASIC account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, password string, meta DeviceMeta) (*AuthResult, error) {
	email = accountdomain.NormalizeEmail(email)
	if err := accountdomain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := accountdomain.ValidatePassword(password); err != nil {
		return nil, err
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(err, "lookup account by email")
	}
	if existing != nil {
		s.events.Record(ctx, auditdomain.EventRegisterConflict, existing.ID, nil)
		return nil, apperr.ErrEmailTaken
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, s.internal(err, "hash password")
	}
	now := s.now().UTC()
	acc := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         accountdomain.RoleUser,
		Plan:         accountdomain.PlanBasic,
		Status:       accountdomain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		// lost a race with a concurrent registration of the same address
		if errors.Is(err, apperr.ErrEmailTaken) {
			s.events.Record(ctx, auditdomain.EventRegisterConflict, "", nil)
			return nil, apperr.ErrEmailTaken
		}
		return nil, s.internal(err, "create account")
	}

	res, err := s.startSession(ctx, acc, meta)
	if err != nil {
		return nil, err
	}
	s.events.Record(ctx, auditdomain.EventRegisterSuccess, acc.ID, map[string]string{"session_id": res.SessionID})
	return res, nil
}

// Login checks email and password and opens a new session. Unknown e-mail and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string, meta DeviceMeta) (*AuthResult, error) {
	email = accountdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	if s.limiter != nil {
		if _, err := s.limiter.Allow(ctx, ratelimit.LoginKey(email)); err != nil {
			if errors.Is(err, apperr.ErrRateLimited) {
				s.events.Record(ctx, auditdomain.EventLoginRateLimited, "", map[string]string{"email": email})
				return nil, err
			}
			s.log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		}
	}

	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(err, "lookup account by email")
	}
	if acc == nil {
		s.hasher.CompareDummy([]byte(password))
		s.events.Record(ctx, auditdomain.EventLoginFailure, "", map[string]string{"reason": "unknown_email"})
		return nil, apperr.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(acc.PasswordHash, []byte(password)); err != nil {
		s.events.Record(ctx, auditdomain.EventLoginFailure, acc.ID, map[string]string{"reason": "wrong_password"})
		return nil, apperr.ErrInvalidCredentials
	}
	if !acc.IsActive() {
		s.events.Record(ctx, auditdomain.EventLoginInactive, acc.ID, map[string]string{"status": string(acc.Status)})
		return nil, apperr.ErrAccountInactive
	}

	res, err := s.startSession(ctx, acc, meta)
	if err != nil {
		return nil, err
	}
	s.events.Record(ctx, auditdomain.EventLoginSuccess, acc.ID, map[string]string{"session_id": res.SessionID})
	return res, nil
}

// Refresh rotates the session behind refreshToken and returns a new pair. A
// refresh token is single-use: once rotated, presenting it again fails with
// SessionNotFound and is reported as reuse.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		s.events.Record(ctx, auditdomain.EventRefreshFailure, "", map[string]string{"reason": string(apperr.From(err).Code)})
		if errors.Is(err, apperr.ErrExpiredToken) || errors.Is(err, apperr.ErrInvalidSignature) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ErrInvalidRefreshToken, err)
	}

	now := s.now().UTC()
	fp := security.Fingerprint(refreshToken)
	sess, err := s.sessions.FindActiveByRefreshFingerprint(ctx, fp, now)
	if err != nil {
		return nil, s.internal(err, "find session")
	}
	if sess == nil {
		s.reportStaleRefresh(ctx, claims, fp, now)
		return nil, apperr.ErrSessionNotFound
	}
	if sess.ID != claims.SessionID || sess.AccountID != claims.Subject || !security.FingerprintEqual(refreshToken, sess.RefreshFingerprint) {
		s.events.Record(ctx, auditdomain.EventRefreshFailure, claims.Subject, map[string]string{"reason": "session_mismatch"})
		return nil, apperr.ErrSessionNotFound
	}

	acc, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return nil, s.internal(err, "lookup account")
	}
	if acc == nil {
		s.events.Record(ctx, auditdomain.EventRefreshFailure, sess.AccountID, map[string]string{"reason": "account_not_found"})
		return nil, apperr.ErrSessionNotFound
	}
	if !acc.IsActive() {
		s.events.Record(ctx, auditdomain.EventRefreshFailure, acc.ID, map[string]string{"reason": "account_inactive"})
		return nil, apperr.ErrAccountInactive
	}

	pair, err := s.tokens.Issue(subjectOf(acc), sess.ID)
	if err != nil {
		return nil, s.internal(err, "issue tokens")
	}
	err = s.sessions.Rotate(ctx, sessionrepo.RotateParams{
		SessionID:             sess.ID,
		OldRefreshFingerprint: sess.RefreshFingerprint,
		NewAccessFingerprint:  security.Fingerprint(pair.AccessToken),
		NewRefreshFingerprint: security.Fingerprint(pair.RefreshToken),
		NewExpiresAt:          pair.RefreshExpiresAt,
		Now:                   now,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrSessionNotFound) {
			s.events.Record(ctx, auditdomain.EventRefreshFailure, acc.ID, map[string]string{"reason": "concurrent_rotation", "session_id": sess.ID})
			return nil, apperr.ErrSessionNotFound
		}
		return nil, s.internal(err, "rotate session")
	}

	s.events.Record(ctx, auditdomain.EventTokenRefreshed, acc.ID, map[string]string{"session_id": sess.ID})
	return &AuthResult{Account: acc, SessionID: sess.ID, Tokens: pair}, nil
}

// reportStaleRefresh records why a signed, unexpired refresh token matched no
// active session. A token whose session is still live under a newer
// fingerprint was already rotated: that is reuse.
func (s *AuthService) reportStaleRefresh(ctx context.Context, claims *security.RefreshClaims, fp string, now time.Time) {
	prior, err := s.sessions.GetByID(ctx, claims.SessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", claims.SessionID).Msg("session lookup for refresh failure")
	}
	if prior != nil && prior.AccountID == claims.Subject && prior.Usable(now) && prior.RefreshFingerprint != fp {
		s.events.Record(ctx, auditdomain.EventRefreshReuse, claims.Subject, map[string]string{"session_id": prior.ID})
		return
	}
	reason := "session_not_found"
	if prior != nil {
		reason = "session_" + strings.ToLower(string(prior.StateAt(now)))
	}
	s.events.Record(ctx, auditdomain.EventRefreshFailure, claims.Subject, map[string]string{"reason": reason, "session_id": claims.SessionID})
}

// Logout revokes the caller's current session. Access tokens already issued
// stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, accountID, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return s.internal(err, "revoke session")
	}
	s.events.Record(ctx, auditdomain.EventLogout, accountID, map[string]string{"session_id": sessionID})
	return nil
}

// LogoutAll revokes every session of the account, the current one included.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, accountID, "")
	if err != nil {
		return 0, s.internal(err, "revoke all sessions")
	}
	s.events.Record(ctx, auditdomain.EventLogoutAll, accountID, map[string]string{"revoked": strconv.FormatInt(n, 10)})
	return n, nil
}

// ChangePassword replaces the password after checking the current one and
// revokes every other session. currentSessionID survives.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentSessionID, currentPassword, newPassword string) error {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return s.internal(err, "lookup account")
	}
	if acc == nil {
		return apperr.ErrAccountNotFound
	}
	if err := s.hasher.Compare(acc.PasswordHash, []byte(currentPassword)); err != nil {
		s.events.Record(ctx, auditdomain.EventPasswordChangeFailure, accountID, map[string]string{"reason": "wrong_password"})
		return apperr.ErrInvalidCredentials
	}
	if err := accountdomain.ValidatePassword(newPassword); err != nil {
		s.events.Record(ctx, auditdomain.EventPasswordChangeFailure, accountID, map[string]string{"reason": "weak_password"})
		return err
	}
	if newPassword == currentPassword {
		s.events.Record(ctx, auditdomain.EventPasswordChangeFailure, accountID, map[string]string{"reason": "unchanged"})
		return apperr.Validation("new password must differ from the current one")
	}

	hash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return s.internal(err, "hash password")
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash, s.now().UTC()); err != nil {
		return s.internal(err, "update password")
	}
	n, err := s.sessions.RevokeAll(ctx, accountID, currentSessionID)
	if err != nil {
		return s.internal(err, "revoke other sessions")
	}
	s.events.Record(ctx, auditdomain.EventPasswordChanged, accountID, map[string]string{"revoked": strconv.FormatInt(n, 10)})
	return nil
}

// Account returns the live account record.
func (s *AuthService) Account(ctx context.Context, accountID string) (*accountdomain.Account, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, s.internal(err, "lookup account")
	}
	if acc == nil {
		return nil, apperr.ErrAccountNotFound
	}
	return acc, nil
}

// ListSessions returns the account's usable sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListActiveByAccount(ctx, accountID, s.now().UTC())
	if err != nil {
		return nil, s.internal(err, "list sessions")
	}
	return list, nil
}

// RevokeSession revokes one of the account's own sessions. Revoking an already
// revoked session succeeds; another account's session is NotFound.
func (s *AuthService) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return s.internal(err, "lookup session")
	}
	if sess == nil || sess.AccountID != accountID {
		return apperr.ErrNotFound
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return s.internal(err, "revoke session")
	}
	s.events.Record(ctx, auditdomain.EventLogout, accountID, map[string]string{"session_id": sessionID, "via": "session_list"})
	return nil
}

func (s *AuthService) startSession(ctx context.Context, acc *accountdomain.Account, meta DeviceMeta) (*AuthResult, error) {
	sessionID := uuid.New().String()
	pair, err := s.tokens.Issue(subjectOf(acc), sessionID)
	if err != nil {
		return nil, s.internal(err, "issue tokens")
	}
	ua := meta.UserAgent
	if len(ua) > maxUserAgentLen {
		ua = strings.ToValidUTF8(ua[:maxUserAgentLen], "")
	}
	sess := &sessiondomain.Session{
		ID:                 sessionID,
		AccountID:          acc.ID,
		AccessFingerprint:  security.Fingerprint(pair.AccessToken),
		RefreshFingerprint: security.Fingerprint(pair.RefreshToken),
		ExpiresAt:          pair.RefreshExpiresAt,
		CreatedAt:          s.now().UTC(),
		IP:                 meta.IP,
		UserAgent:          ua,
		IsActive:           true,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, s.internal(err, "create session")
	}
	return &AuthResult{Account: acc, SessionID: sessionID, Tokens: pair}, nil
}

// internal logs a storage or crypto failure with context and classifies it.
// Errors that already carry a taxonomy kind pass through unchanged.
func (s *AuthService) internal(err error, op string) error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		s.log.Error().Err(err).Str("op", op).Msg("auth service failure")
	}
	return e
}

func subjectOf(acc *accountdomain.Account) security.Subject {
	return security.Subject{
		AccountID: acc.ID,
		Email:     acc.Email,
		Role:      string(acc.Role),
		Plan:      string(acc.Plan),
		Status:    string(acc.Status),
	}
}

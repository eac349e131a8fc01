package authn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/security"
	sessiondomain "siteauth/backend/internal/session/domain"
)

const lastLoginTimeout = 5 * time.Second

// AccountRepo is the account access needed by the verifier.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionLookup resolves the session named by an access token's sid claim.
type SessionLookup interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// Verifier validates access tokens and resolves the live account behind them.
type Verifier struct {
	tokens   *security.TokenIssuer
	accounts AccountRepo
	sessions SessionLookup // nil: access tokens stay valid until exp
	events   audit.Recorder
	log      zerolog.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithSessionCheck makes every verification also require the token's session
// to be active, so logout and revoke-all take effect before access tokens expire.
func WithSessionCheck(sessions SessionLookup) VerifierOption {
	return func(v *Verifier) { v.sessions = sessions }
}

// WithVerifierClock overrides time.Now, for tests.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier returns a Verifier. A nil events recorder discards events.
func NewVerifier(tokens *security.TokenIssuer, accounts AccountRepo, events audit.Recorder, log zerolog.Logger, opts ...VerifierOption) *Verifier {
	if events == nil {
		events = audit.Nop{}
	}
	v := &Verifier{tokens: tokens, accounts: accounts, events: events, log: log, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns the principal for token or one of MissingToken, MalformedToken,
// InvalidSignature, ExpiredToken, SessionNotFound, AccountNotFound, AccountInactive.
func (v *Verifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		v.events.Record(ctx, auditdomain.EventTokenMissing, "", nil)
		return nil, apperr.ErrMissingToken
	}

	claims, err := v.tokens.ParseAccess(token)
	if err != nil {
		if errors.Is(err, apperr.ErrExpiredToken) {
			v.events.Record(ctx, auditdomain.EventTokenExpired, "", nil)
		} else {
			v.events.Record(ctx, auditdomain.EventTokenInvalid, "", map[string]string{"reason": string(apperr.From(err).Code)})
		}
		return nil, err
	}

	if v.sessions != nil {
		sess, err := v.sessions.GetByID(ctx, claims.SessionID)
		if err != nil {
			return nil, v.internal(err, "get session")
		}
		if !sess.Usable(v.now()) || sess.AccountID != claims.Subject {
			v.events.Record(ctx, auditdomain.EventTokenInvalid, claims.Subject, map[string]string{"reason": "session_inactive", "session_id": claims.SessionID})
			return nil, apperr.ErrSessionNotFound
		}
	}

	acc, err := v.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, v.internal(err, "get account")
	}
	if acc == nil {
		v.events.Record(ctx, auditdomain.EventAccountNotFound, claims.Subject, nil)
		return nil, apperr.ErrAccountNotFound
	}
	if !acc.IsActive() {
		v.events.Record(ctx, auditdomain.EventAccountInactive, acc.ID, map[string]string{"status": string(acc.Status)})
		return nil, apperr.ErrAccountInactive
	}

	v.touchLastLogin(acc.ID)
	v.events.Record(ctx, auditdomain.EventTokenVerified, acc.ID, map[string]string{"session_id": claims.SessionID})
	return FromBearer(acc, claims.SessionID), nil
}

// VerifyOptional is Verify for routes that also serve anonymous callers: an
// empty token yields (nil, nil). A token that is present but bad still fails.
func (v *Verifier) VerifyOptional(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}
	return v.Verify(ctx, token)
}

// VerifyHeader verifies the credential in an Authorization header value.
// A header that is not "Bearer <token>" is MalformedToken.
func (v *Verifier) VerifyHeader(ctx context.Context, header string) (*Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		v.events.Record(ctx, auditdomain.EventTokenInvalid, "", map[string]string{"reason": "malformed_header"})
		return nil, err
	}
	return v.Verify(ctx, token)
}

// VerifyHeaderOptional is VerifyHeader for optional-auth routes: no header
// means anonymous, a bad header still fails.
func (v *Verifier) VerifyHeaderOptional(ctx context.Context, header string) (*Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		v.events.Record(ctx, auditdomain.EventTokenInvalid, "", map[string]string{"reason": "malformed_header"})
		return nil, err
	}
	return v.VerifyOptional(ctx, token)
}

func (v *Verifier) internal(err error, op string) error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		v.log.Error().Err(err).Str("op", op).Msg("token verification failure")
	}
	return e
}

// Wait blocks until pending last_login updates finish.
func (v *Verifier) Wait() {
	v.inflight.Wait()
}

// touchLastLogin records the verified request time without holding up the request.
func (v *Verifier) touchLastLogin(accountID string) {
	at := v.now().UTC()
	v.inflight.Add(1)
	go func() {
		defer v.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), lastLoginTimeout)
		defer cancel()
		if err := v.accounts.UpdateLastLogin(ctx, accountID, at); err != nil {
			v.log.Warn().Err(err).Str("account_id", accountID).Msg("last_login update failed")
		}
	}()
}

package authn

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit/audittest"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/security"
	sessiondomain "siteauth/backend/internal/session/domain"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memAccountRepo struct {
	mu        sync.Mutex
	m         map[string]*accountdomain.Account
	lastLogin map[string]time.Time
	updateErr error
	getErr    error
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	a, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	a2 := *a
	return &a2, nil
}

func (r *memAccountRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.lastLogin[id] = at
	return nil
}

func (r *memAccountRepo) set(fn func(a *accountdomain.Account)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.m["acc-1"])
}

type memSessions struct {
	mu  sync.Mutex
	m   map[string]*sessiondomain.Session
	err error
}

func (r *memSessions) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.m[id]
	if !ok {
		return nil, nil
	}
	s2 := *s
	return &s2, nil
}

type fixture struct {
	clock    *clock
	tokens   *security.TokenIssuer
	accounts *memAccountRepo
	events   *audittest.Recorder
	verifier *Verifier
}

func newFixture(t *testing.T, opts ...VerifierOption) *fixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:  c,
		tokens: security.NewTestTokenIssuer(c.Now),
		accounts: &memAccountRepo{
			m: map[string]*accountdomain.Account{
				"acc-1": {ID: "acc-1", Email: "a@x.io", Role: accountdomain.RoleUser, Plan: accountdomain.PlanBasic, Status: accountdomain.StatusActive},
			},
			lastLogin: make(map[string]time.Time),
		},
		events: &audittest.Recorder{},
	}
	opts = append([]VerifierOption{WithVerifierClock(c.Now)}, opts...)
	f.verifier = NewVerifier(f.tokens, f.accounts, f.events, zerolog.Nop(), opts...)
	return f
}

func (f *fixture) issue(accountID, sessionID string) string {
	pair, err := f.tokens.Issue(security.Subject{AccountID: accountID, Email: "a@x.io", Role: "USER", Plan: "BASIC", Status: "ACTIVE"}, sessionID)
	if err != nil {
		panic(err)
	}
	return pair.AccessToken
}

func TestVerify_ValidTokenUsesLiveAccount(t *testing.T) {
	f := newFixture(t)
	token := f.issue("acc-1", "sess-1")

	// role and plan changed after the token was minted
	f.accounts.set(func(a *accountdomain.Account) {
		a.Role = accountdomain.RoleAdmin
		a.Plan = accountdomain.PlanPremium
	})

	p, err := f.verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	f.verifier.Wait()

	if p.AccountID != "acc-1" || p.SessionID != "sess-1" || p.Method != MethodBearer {
		t.Errorf("principal = %+v", p)
	}
	if p.Role != accountdomain.RoleAdmin || p.Plan != accountdomain.PlanPremium {
		t.Errorf("role/plan = %s/%s, want live ADMIN/PREMIUM", p.Role, p.Plan)
	}
	if got := f.accounts.lastLogin["acc-1"]; !got.Equal(f.clock.Now()) {
		t.Errorf("last_login = %v, want %v", got, f.clock.Now())
	}
	if names := f.events.Names(); len(names) != 1 || names[0] != auditdomain.EventTokenVerified {
		t.Errorf("events = %v", names)
	}
}

func TestVerify_InactiveAccountFailsWithValidToken(t *testing.T) {
	for _, status := range []accountdomain.Status{accountdomain.StatusInactive, accountdomain.StatusSuspended, accountdomain.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			token := f.issue("acc-1", "sess-1")
			f.accounts.set(func(a *accountdomain.Account) { a.Status = status })

			p, err := f.verifier.Verify(context.Background(), token)
			if !errors.Is(err, apperr.ErrAccountInactive) || p != nil {
				t.Fatalf("Verify = %v, %v; want AccountInactive", p, err)
			}
			if apperr.HTTPStatus(err) != 403 {
				t.Errorf("status = %d, want 403", apperr.HTTPStatus(err))
			}
			if f.events.Last().Name != auditdomain.EventAccountInactive {
				t.Errorf("event = %s", f.events.Last().Name)
			}
		})
	}
}

func TestVerify_Failures(t *testing.T) {
	testCases := []struct {
		name      string
		token     func(f *fixture) string
		wantErr   error
		wantEvent auditdomain.EventName
	}{
		{
			name:      "missing",
			token:     func(f *fixture) string { return "" },
			wantErr:   apperr.ErrMissingToken,
			wantEvent: auditdomain.EventTokenMissing,
		},
		{
			name:      "garbage",
			token:     func(f *fixture) string { return "not.a.jwt" },
			wantErr:   apperr.ErrMalformedToken,
			wantEvent: auditdomain.EventTokenInvalid,
		},
		{
			name: "expired",
			token: func(f *fixture) string {
				tok := f.issue("acc-1", "sess-1")
				f.clock.Advance(16 * time.Minute)
				return tok
			},
			wantErr:   apperr.ErrExpiredToken,
			wantEvent: auditdomain.EventTokenExpired,
		},
		{
			name: "refresh token presented as access",
			token: func(f *fixture) string {
				pair, _ := f.tokens.Issue(security.Subject{AccountID: "acc-1"}, "sess-1")
				return pair.RefreshToken
			},
			wantErr:   apperr.ErrInvalidSignature,
			wantEvent: auditdomain.EventTokenInvalid,
		},
		{
			name:      "unknown account",
			token:     func(f *fixture) string { return f.issue("ghost", "sess-1") },
			wantErr:   apperr.ErrAccountNotFound,
			wantEvent: auditdomain.EventAccountNotFound,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			p, err := f.verifier.Verify(context.Background(), tc.token(f))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if p != nil {
				t.Error("failed verification returned a principal")
			}
			if apperr.HTTPStatus(err) != 401 {
				t.Errorf("status = %d, want 401", apperr.HTTPStatus(err))
			}
			if names := f.events.Names(); len(names) != 1 || names[0] != tc.wantEvent {
				t.Errorf("events = %v, want [%s]", names, tc.wantEvent)
			}
		})
	}
}

func TestVerifyOptional(t *testing.T) {
	f := newFixture(t)

	p, err := f.verifier.VerifyOptional(context.Background(), "")
	if err != nil || p != nil {
		t.Fatalf("anonymous = %v, %v; want nil, nil", p, err)
	}
	if len(f.events.Names()) != 0 {
		t.Errorf("anonymous call recorded %v", f.events.Names())
	}

	if _, err := f.verifier.VerifyOptional(context.Background(), "bad-token"); !errors.Is(err, apperr.ErrMalformedToken) {
		t.Errorf("present but invalid = %v, want MalformedToken", err)
	}

	p, err = f.verifier.VerifyOptional(context.Background(), f.issue("acc-1", "sess-1"))
	if err != nil || p == nil || p.AccountID != "acc-1" {
		t.Errorf("valid = %v, %v", p, err)
	}
	f.verifier.Wait()
}

func TestVerify_LastLoginFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.accounts.updateErr = errors.New("database is locked")

	if _, err := f.verifier.Verify(context.Background(), f.issue("acc-1", "sess-1")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	f.verifier.Wait()
}

func TestVerify_StorageFailureIsLogged(t *testing.T) {
	testCases := []struct {
		name   string
		wantOp string
		setup  func(f *fixture, sessions *memSessions)
	}{
		{
			name:   "account lookup",
			wantOp: "get account",
			setup: func(f *fixture, _ *memSessions) {
				f.accounts.getErr = errors.New("db: connection refused")
			},
		},
		{
			name:   "session lookup",
			wantOp: "get session",
			setup: func(_ *fixture, sessions *memSessions) {
				sessions.err = errors.New("db: connection refused")
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			sessions := &memSessions{m: map[string]*sessiondomain.Session{}}
			f := newFixture(t, WithSessionCheck(sessions))
			f.verifier.log = zerolog.New(&buf)
			sessions.m["sess-1"] = &sessiondomain.Session{ID: "sess-1", AccountID: "acc-1", ExpiresAt: f.clock.Now().Add(time.Hour), IsActive: true}
			tc.setup(f, sessions)

			_, err := f.verifier.Verify(context.Background(), f.issue("acc-1", "sess-1"))
			if apperr.From(err).Kind != apperr.KindInternal {
				t.Fatalf("err = %v, want internal error", err)
			}
			out := buf.String()
			if !strings.Contains(out, "db: connection refused") || !strings.Contains(out, `"op":"`+tc.wantOp+`"`) {
				t.Errorf("log = %q, want cause and op %q", out, tc.wantOp)
			}
		})
	}
}

func TestVerify_SessionCheck(t *testing.T) {
	sessions := &memSessions{m: map[string]*sessiondomain.Session{}}
	f := newFixture(t, WithSessionCheck(sessions))
	now := f.clock.Now()
	sessions.m["sess-live"] = &sessiondomain.Session{ID: "sess-live", AccountID: "acc-1", ExpiresAt: now.Add(time.Hour), IsActive: true}
	sessions.m["sess-revoked"] = &sessiondomain.Session{ID: "sess-revoked", AccountID: "acc-1", ExpiresAt: now.Add(time.Hour), IsActive: false}
	sessions.m["sess-other"] = &sessiondomain.Session{ID: "sess-other", AccountID: "acc-2", ExpiresAt: now.Add(time.Hour), IsActive: true}

	if _, err := f.verifier.Verify(context.Background(), f.issue("acc-1", "sess-live")); err != nil {
		t.Fatalf("live session: %v", err)
	}
	for _, sid := range []string{"sess-revoked", "sess-other", "sess-missing"} {
		if _, err := f.verifier.Verify(context.Background(), f.issue("acc-1", sid)); !errors.Is(err, apperr.ErrSessionNotFound) {
			t.Errorf("%s: err = %v, want SessionNotFound", sid, err)
		}
	}
	f.verifier.Wait()
}

func TestVerifyHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.verifier.VerifyHeader(ctx, "Bearer "+f.issue("acc-1", "sess-1"))
	if err != nil || p.AccountID != "acc-1" {
		t.Fatalf("VerifyHeader = %v, %v", p, err)
	}
	if _, err := f.verifier.VerifyHeader(ctx, ""); !errors.Is(err, apperr.ErrMissingToken) {
		t.Errorf("no header = %v, want MissingToken", err)
	}

	f.events.Reset()
	if _, err := f.verifier.VerifyHeader(ctx, "Basic abc"); !errors.Is(err, apperr.ErrMalformedToken) {
		t.Errorf("basic scheme = %v, want MalformedToken", err)
	}
	if f.events.Last().Name != auditdomain.EventTokenInvalid {
		t.Errorf("event = %s", f.events.Last().Name)
	}

	if p, err := f.verifier.VerifyHeaderOptional(ctx, ""); p != nil || err != nil {
		t.Errorf("optional without header = %v, %v", p, err)
	}
	if _, err := f.verifier.VerifyHeaderOptional(ctx, "Token xyz"); !errors.Is(err, apperr.ErrMalformedToken) {
		t.Errorf("optional with bad header = %v", err)
	}
	f.verifier.Wait()
}

package interceptors

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	accountdomain "siteauth/backend/internal/account/domain"
	apikeydomain "siteauth/backend/internal/apikey/domain"
	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/audit/audittest"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/authn"
	"siteauth/backend/internal/ratelimit"
)

var testAccount = &accountdomain.Account{
	ID:     "acc-1",
	Email:  "a@example.com",
	Role:   accountdomain.RoleUser,
	Plan:   accountdomain.PlanPremium,
	Status: accountdomain.StatusActive,
}

type fakeVerifier struct{}

func (fakeVerifier) VerifyHeader(ctx context.Context, header string) (*authn.Principal, error) {
	switch header {
	case "":
		return nil, apperr.ErrMissingToken
	case "Bearer good":
		return authn.FromBearer(testAccount, "sess-1"), nil
	case "Bearer expired":
		return nil, apperr.ErrExpiredToken
	default:
		return nil, apperr.ErrMalformedToken
	}
}

type fakeKeys struct{}

func (fakeKeys) Authenticate(ctx context.Context, raw string) (*accountdomain.Account, *apikeydomain.APIKey, error) {
	if raw == "sk_good" {
		return testAccount, &apikeydomain.APIKey{ID: "key-1", AccountID: testAccount.ID}, nil
	}
	return nil, nil, apperr.ErrInvalidKey
}

func incoming(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

func principalHandler(ctx context.Context, req interface{}) (interface{}, error) {
	p, ok := authn.PrincipalFromContext(ctx)
	if !ok {
		return "anonymous", nil
	}
	return string(p.Method) + ":" + p.AccountID, nil
}

func TestAuthUnary(t *testing.T) {
	interceptor := AuthUnary(fakeVerifier{}, fakeKeys{}, map[string]bool{"/grpc.health.v1.Health/Check": true}, true)

	testCases := []struct {
		name     string
		method   string
		ctx      context.Context
		wantResp string
		wantCode codes.Code
	}{
		{"public method without credentials", "/grpc.health.v1.Health/Check", context.Background(), "anonymous", codes.OK},
		{"public method ignores bad token", "/grpc.health.v1.Health/Check", incoming("authorization", "Bearer nope"), "anonymous", codes.OK},
		{"missing credentials", "/catalog.v1.Catalog/List", context.Background(), "", codes.Unauthenticated},
		{"valid bearer", "/catalog.v1.Catalog/List", incoming("authorization", "Bearer good"), "bearer:acc-1", codes.OK},
		{"expired bearer", "/catalog.v1.Catalog/List", incoming("authorization", "Bearer expired"), "", codes.Unauthenticated},
		{"valid api key", "/catalog.v1.Catalog/List", incoming("x-api-key", "sk_good"), "api_key:acc-1", codes.OK},
		{"invalid api key", "/catalog.v1.Catalog/List", incoming("x-api-key", "sk_bad"), "", codes.Unauthenticated},
		{"bearer wins over key", "/catalog.v1.Catalog/List", incoming("authorization", "Bearer good", "x-api-key", "sk_bad"), "bearer:acc-1", codes.OK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := interceptor(tc.ctx, "req", &grpc.UnaryServerInfo{FullMethod: tc.method}, principalHandler)
			if got := status.Code(err); got != tc.wantCode {
				t.Fatalf("code = %v, want %v (err %v)", got, tc.wantCode, err)
			}
			if err == nil && resp != tc.wantResp {
				t.Errorf("resp = %v, want %q", resp, tc.wantResp)
			}
		})
	}
}

func TestAuthUnary_NilKeysFallsBackToBearer(t *testing.T) {
	interceptor := AuthUnary(fakeVerifier{}, nil, nil, true)
	_, err := interceptor(incoming("x-api-key", "sk_good"), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, principalHandler)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestToStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", apperr.Validation("bad"), codes.InvalidArgument},
		{"not found", apperr.ErrNotFound, codes.NotFound},
		{"authentication", apperr.ErrSessionNotFound, codes.Unauthenticated},
		{"authorization", apperr.ErrPermissionDenied, codes.PermissionDenied},
		{"conflict", apperr.ErrEmailTaken, codes.AlreadyExists},
		{"rate limited", apperr.RateLimited(time.Second), codes.ResourceExhausted},
		{"unclassified", errors.New("boom"), codes.Internal},
		{"existing status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.Code(ToStatus(tc.err, true)); got != tc.want {
				t.Errorf("code = %v, want %v", got, tc.want)
			}
		})
	}
	if ToStatus(nil, true) != nil {
		t.Error("ToStatus(nil) should be nil")
	}
}

func TestToStatus_RetryInfoAndRedaction(t *testing.T) {
	st := status.Convert(ToStatus(apperr.RateLimited(2500*time.Millisecond), true))
	var info *errdetails.RetryInfo
	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok {
			info = ri
		}
	}
	if info == nil {
		t.Fatal("RetryInfo detail missing")
	}
	if got := info.GetRetryDelay().AsDuration(); got != 2500*time.Millisecond {
		t.Errorf("retry delay = %v", got)
	}

	internal := apperr.Internal(errors.New("pq: connection refused"))
	if msg := status.Convert(ToStatus(internal, true)).Message(); msg != "internal error" {
		t.Errorf("production message = %q", msg)
	}
	if msg := status.Convert(ToStatus(internal, false)).Message(); msg == "internal error" {
		t.Errorf("development message should carry the cause, got %q", msg)
	}
}

func TestErrorUnary(t *testing.T) {
	interceptor := ErrorUnary(true)
	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, apperr.ErrAccountInactive
	})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("code = %v", status.Code(err))
	}
}

func TestClientIP(t *testing.T) {
	peerCtx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("198.51.100.7"), Port: 5050}})
	forwarded := metadata.NewIncomingContext(peerCtx, metadata.Pairs("x-forwarded-for", "203.0.113.1, 10.0.0.1"))
	realIP := metadata.NewIncomingContext(peerCtx, metadata.Pairs("x-real-ip", "203.0.113.9"))

	testCases := []struct {
		name    string
		ctx     context.Context
		trusted bool
		want    string
	}{
		{"no peer", context.Background(), false, "unknown"},
		{"peer address", peerCtx, false, "198.51.100.7"},
		{"forwarded ignored when untrusted", forwarded, false, "198.51.100.7"},
		{"forwarded first hop when trusted", forwarded, true, "203.0.113.1"},
		{"x-real-ip when trusted", realIP, true, "203.0.113.9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.ctx, tc.trusted); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPUnary(t *testing.T) {
	peerCtx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("198.51.100.7"), Port: 5050}})
	resp, err := ClientIPUnary(false)(peerCtx, "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return audit.ClientIPFromContext(ctx), nil
	})
	if err != nil || resp != "198.51.100.7" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, errors.New("redis down")
}

func okHandler(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

func TestRateLimitUnary(t *testing.T) {
	limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{Max: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	events := &audittest.Recorder{}
	skip := map[string]bool{"/grpc.health.v1.Health/Check": true}
	interceptor := RateLimitUnary(limiter, events, zerolog.Nop(), skip, true)
	info := &grpc.UnaryServerInfo{FullMethod: "/catalog.v1.Catalog/List"}

	anon := audit.WithClientIP(context.Background(), "203.0.113.5")
	if _, err := interceptor(anon, "req", info, okHandler); err != nil {
		t.Fatalf("first anonymous call: %v", err)
	}
	_, err = interceptor(anon, "req", info, okHandler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("second anonymous call code = %v", status.Code(err))
	}
	if last := events.Last(); last.Name != auditdomain.EventRateLimited || last.Metadata["key"] != "ip:203.0.113.5" {
		t.Errorf("event = %+v", last)
	}

	authed := authn.WithPrincipal(anon, authn.FromBearer(testAccount, "sess-1"))
	if _, err := interceptor(authed, "req", info, okHandler); err != nil {
		t.Fatalf("principal has its own bucket: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := interceptor(anon, "req", &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, okHandler); err != nil {
			t.Fatalf("skipped method limited: %v", err)
		}
	}
}

func TestRateLimitUnary_FailsOpen(t *testing.T) {
	interceptor := RateLimitUnary(failingLimiter{}, nil, zerolog.Nop(), nil, true)
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, okHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
}

func TestLoggingUnary_PassesThrough(t *testing.T) {
	interceptor := LoggingUnary(zerolog.Nop(), nil)
	want := status.Error(codes.NotFound, "nope")
	_, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	})
	if err != want {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIs_MatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", Wrap(ErrExpiredToken, errors.New("exp in the past")))
	if !errors.Is(wrapped, ErrExpiredToken) {
		t.Fatal("wrapped expired token should match ErrExpiredToken")
	}
	if errors.Is(wrapped, ErrMalformedToken) {
		t.Fatal("expired token must not match ErrMalformedToken")
	}
	if !errors.Is(RateLimited(3*time.Second), ErrRateLimited) {
		t.Fatal("RateLimited should match ErrRateLimited")
	}
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"missing token", ErrMissingToken, http.StatusUnauthorized},
		{"malformed token", ErrMalformedToken, http.StatusUnauthorized},
		{"expired token", ErrExpiredToken, http.StatusUnauthorized},
		{"invalid refresh", ErrInvalidRefreshToken, http.StatusUnauthorized},
		{"inactive", ErrAccountInactive, http.StatusForbidden},
		{"permission", ErrPermissionDenied, http.StatusForbidden},
		{"conflict", ErrEmailTaken, http.StatusConflict},
		{"validation", Validation("bad %s", "email"), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"rate limited", RateLimited(time.Second), http.StatusTooManyRequests},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Errorf("HTTPStatus = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPublicMessage_RedactsInternalInProduction(t *testing.T) {
	e := Internal(errors.New("pq: connection refused"))
	if got := e.PublicMessage(true); got != "internal error" {
		t.Errorf("production message = %q", got)
	}
	if got := e.PublicMessage(false); got == "internal error" {
		t.Errorf("development message should include cause, got %q", got)
	}
	if got := ErrAccountInactive.PublicMessage(true); got != ErrAccountInactive.Message {
		t.Errorf("non-internal message = %q", got)
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	if got := RateLimited(1500 * time.Millisecond).RetryAfterSeconds(); got != 2 {
		t.Errorf("RetryAfterSeconds = %d, want 2", got)
	}
	if got := ErrMissingToken.RetryAfterSeconds(); got != 0 {
		t.Errorf("RetryAfterSeconds = %d, want 0", got)
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}
	if got := From(errors.New("x")); got.Kind != KindInternal {
		t.Errorf("kind = %v, want internal", got.Kind)
	}
	if got := From(fmt.Errorf("ctx: %w", ErrEmailTaken)); got.Code != CodeEmailTaken {
		t.Errorf("code = %v, want %v", got.Code, CodeEmailTaken)
	}
}

package domain

import (
	"testing"
	"time"
)

func TestSession_StateAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		s    Session
		want State
	}{
		{"active", Session{IsActive: true, ExpiresAt: now.Add(time.Minute)}, StateActive},
		{"expired at boundary", Session{IsActive: true, ExpiresAt: now}, StateExpired},
		{"expired", Session{IsActive: true, ExpiresAt: now.Add(-time.Second)}, StateExpired},
		{"revoked", Session{IsActive: false, ExpiresAt: now.Add(time.Hour)}, StateRevoked},
		{"revoked and expired", Session{IsActive: false, ExpiresAt: now.Add(-time.Hour)}, StateRevoked},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.StateAt(now); got != tc.want {
				t.Errorf("StateAt = %s, want %s", got, tc.want)
			}
			if got := tc.s.Usable(now); got != (tc.want == StateActive) {
				t.Errorf("Usable = %v", got)
			}
		})
	}
	var nilSession *Session
	if nilSession.Usable(now) {
		t.Error("nil session should not be usable")
	}
}

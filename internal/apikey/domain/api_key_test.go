package domain

import (
	"testing"
	"time"
)

func TestAPIKey_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	testCases := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"never expires", nil, false},
		{"expired", &past, true},
		{"exactly now", &now, true},
		{"not yet", &future, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k := &APIKey{ExpiresAt: tc.expiresAt}
			if got := k.ExpiredAt(now); got != tc.want {
				t.Errorf("ExpiredAt = %v, want %v", got, tc.want)
			}
		})
	}
}

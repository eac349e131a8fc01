package security

import (
	"strings"
	"testing"
)

func TestGenerateAPIKey(t *testing.T) {
	raw, prefix, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(raw, APIKeyScheme) {
		t.Errorf("raw key %q missing scheme", raw)
	}
	// 32 bytes base64url without padding is 43 chars
	if len(raw) != len(APIKeyScheme)+43 {
		t.Errorf("raw key length = %d", len(raw))
	}
	if prefix != raw[:APIKeyPrefixLen] {
		t.Errorf("prefix = %q, want %q", prefix, raw[:APIKeyPrefixLen])
	}

	other, _, _ := GenerateAPIKey()
	if other == raw {
		t.Error("two generated keys are equal")
	}
}

package onboarding

import (
	"testing"
	"time"
)

func TestChallengeHash_consistency(t *testing.T) {
	secret := []byte("test-secret")
	h1 := ChallengeHash(secret, "9876543210", "20260115103045", 8)
	h2 := ChallengeHash(secret, "9876543210", "20260115103045", 8)
	if h1 != h2 {
		t.Errorf("hash should be deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 8 {
		t.Errorf("hash should be truncated to 8 characters, got %d", len(h1))
	}
	if !ValidHashFormat(h1, 8) {
		t.Errorf("hash %q should match its own format rules", h1)
	}
}

func TestChallengeHash_differentInputsDifferentHash(t *testing.T) {
	secret := []byte("test-secret")
	h1 := ChallengeHash(secret, "9876543210", "20260115103045", 8)
	h2 := ChallengeHash(secret, "9876543211", "20260115103045", 8)
	h3 := ChallengeHash(secret, "9876543210", "20260115103046", 8)
	h4 := ChallengeHash([]byte("other-secret"), "9876543210", "20260115103045", 8)
	if h1 == h2 || h1 == h3 || h1 == h4 {
		t.Error("different inputs should produce different hashes")
	}
}

func TestSaltFor(t *testing.T) {
	at := time.Date(2026, 1, 15, 10, 30, 45, 123456789, time.UTC)
	if got := SaltFor(at); got != "20260115103045" {
		t.Errorf("SaltFor = %q, want 20260115103045", got)
	}
	// Same second, different sub-second: same salt.
	later := at.Add(500 * time.Millisecond)
	if SaltFor(at) != SaltFor(later) {
		t.Error("salt should only depend on whole seconds")
	}
}

func TestValidHashFormat(t *testing.T) {
	cases := []struct {
		hash  string
		valid bool
	}{
		{"ABCD2345", true},
		{"ZZZZ7777", true},
		{"abcd2345", false}, // lowercase
		{"ABCD0145", false}, // 0 and 1 are outside the Base32 alphabet
		{"ABCD234", false},  // too short
		{"ABCD23456", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidHashFormat(c.hash, 8); got != c.valid {
			t.Errorf("ValidHashFormat(%q) = %v, want %v", c.hash, got, c.valid)
		}
	}
}

package onboarding

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"strings"
	"time"
)

// Challenge hashes are Base32(HMAC-SHA256(secret, number+salt)) truncated to
// the configured length, uppercase without padding. The salt is derived from
// the request time (date plus time-of-day to the second) so re-registration
// in a different second yields a fresh challenge.

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// SaltFor derives the challenge salt from the request time.
func SaltFor(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

// ChallengeHash computes the keyed challenge hash for a number and salt.
func ChallengeHash(secret []byte, number, salt string, length int) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(number + salt))
	encoded := b32.EncodeToString(mac.Sum(nil))
	if length > 0 && length < len(encoded) {
		encoded = encoded[:length]
	}
	return strings.ToUpper(encoded)
}

// ValidHashFormat reports whether a hash candidate has the expected length
// and alphabet (Base32: A-Z and 2-7).
func ValidHashFormat(hash string, length int) bool {
	if len(hash) != length {
		return false
	}
	for _, r := range hash {
		valid := (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7')
		if !valid {
			return false
		}
	}
	return true
}

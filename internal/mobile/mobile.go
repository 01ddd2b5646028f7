// Package mobile normalizes phone numbers into country code + 10-digit
// local subscriber number. The local number is the canonical identity for
// challenges, counters and the validated set, so a registration without a
// country prefix still matches the E.164 sender the gateway reports.
package mobile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNumber marks a number that is neither a 10-digit local
// subscriber number nor an E.164-like number ending in 10 digits.
var ErrInvalidNumber = errors.New("invalid mobile number")

// Normalize splits a number into its country code (with leading +, empty
// when absent) and 10-digit local part. Accepted forms: "9876543210",
// "+919876543210", "919876543210" is rejected (ambiguous without +).
func Normalize(number string) (countryCode, local string, err error) {
	n := strings.TrimSpace(number)
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, "-", "")
	if n == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidNumber)
	}

	if strings.HasPrefix(n, "+") {
		digits := n[1:]
		if !isDigits(digits) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
		if len(digits) <= 10 || len(digits) > 13 {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
		cc := digits[:len(digits)-10]
		return "+" + cc, digits[len(digits)-10:], nil
	}

	if len(n) == 10 && isDigits(n) {
		return "", n, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

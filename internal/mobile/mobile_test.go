package mobile

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		cc      string
		local   string
		wantErr bool
	}{
		{"9876543210", "", "9876543210", false},
		{"+919876543210", "+91", "9876543210", false},
		{"+19876543210", "+1", "9876543210", false},
		{"  +91 98765 43210 ", "+91", "9876543210", false},
		{"+91-98765-43210", "+91", "9876543210", false},
		{"919876543210", "", "", true}, // no +, ambiguous
		{"+9876543210", "", "", true},  // + but only 10 digits
		{"987654321", "", "", true},    // too short
		{"98765432100", "", "", true},  // 11 digits without +
		{"+91987654321a", "", "", true},
		{"", "", "", true},
	}
	for _, c := range cases {
		cc, local, err := Normalize(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q) should fail", c.in)
			} else if !errors.Is(err, ErrInvalidNumber) {
				t.Errorf("Normalize(%q) error should wrap ErrInvalidNumber, got %v", c.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q) failed: %v", c.in, err)
			continue
		}
		if cc != c.cc || local != c.local {
			t.Errorf("Normalize(%q) = (%q, %q), want (%q, %q)", c.in, cc, local, c.cc, c.local)
		}
	}
}

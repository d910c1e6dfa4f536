package domain

import (
	"strings"
	"testing"
)

func TestParseSubscriberEmail_Valid(t *testing.T) {
	for _, raw := range []string{
		"user@example.com",
		"first.last+tag@sub.example.co.uk",
		"x@y.io",
	} {
		e, err := ParseSubscriberEmail(raw)
		if err != nil {
			t.Fatalf("address %q: unexpected error %v", raw, err)
		}
		if e.String() != raw {
			t.Fatalf("address %q: got %q", raw, e.String())
		}
	}
}

func TestParseSubscriberEmail_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no at", "userexample.com"},
		{"two ats", "user@@example.com"},
		{"missing local", "@example.com"},
		{"missing domain", "user@"},
		{"domain without dot", "user@localhost"},
		{"whitespace", "user name@example.com"},
		{"newline", "user@example.com\n"},
		{"too long", strings.Repeat("a", 310) + "@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSubscriberEmail(tc.raw); err == nil {
				t.Fatalf("address %q: expected error", tc.raw)
			}
		})
	}
}

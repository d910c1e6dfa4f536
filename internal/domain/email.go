// Package domain defines the persistence models for the application. This
// file provides structural validation for subscriber email addresses.
//
// Stored addresses are re-validated every time they are read because rows may
// predate stricter signup validation. Validity is modeled as a tagged result
// (a valid address or a reason), not as an exception flow: callers decide
// whether an invalid address is skipped, warned about, or dead-lettered.
package domain

import (
	"fmt"
	"strings"
)

// SubscriberEmail is a structurally valid email address. Construct it with
// ParseSubscriberEmail; the zero value is not valid.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail checks the minimal structure every deliverable address
// has: one '@' separating a non-empty local part from a non-empty domain, no
// whitespace, and a total length within the 320-byte limit. It deliberately
// stops short of full RFC 5322 parsing; the email gateway is the final judge
// and its verdicts are handled by the delivery worker.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	if raw == "" {
		return SubscriberEmail{}, fmt.Errorf("email address is empty")
	}
	if len(raw) > 320 {
		return SubscriberEmail{}, fmt.Errorf("email address exceeds 320 characters")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return SubscriberEmail{}, fmt.Errorf("email address %q contains whitespace", raw)
	}
	at := strings.Count(raw, "@")
	if at != 1 {
		return SubscriberEmail{}, fmt.Errorf("email address %q must contain exactly one '@'", raw)
	}
	parts := strings.SplitN(raw, "@", 2)
	if parts[0] == "" {
		return SubscriberEmail{}, fmt.Errorf("email address %q is missing the local part", raw)
	}
	if parts[1] == "" || !strings.Contains(parts[1], ".") {
		return SubscriberEmail{}, fmt.Errorf("email address %q has an invalid domain", raw)
	}
	return SubscriberEmail{value: raw}, nil
}

// String returns the validated address.
func (e SubscriberEmail) String() string { return e.value }

// ConfirmedSubscriber is one row of the confirmed-recipient listing,
// evaluated once at read time. Exactly one of Email/Err is meaningful:
// Err != nil marks a stored address that failed validation, which callers
// report and skip rather than abort on.
type ConfirmedSubscriber struct {
	Email SubscriberEmail
	Err   error
}

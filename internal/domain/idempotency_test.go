package domain

import (
	"strings"
	"testing"
	"time"
)

func TestParseIdempotencyKey_Bounds(t *testing.T) {
	// Minimum length: a single character is valid.
	k, err := ParseIdempotencyKey("a")
	if err != nil {
		t.Fatalf("1-char key: unexpected error %v", err)
	}
	if k.String() != "a" {
		t.Fatalf("1-char key: got %q", k.String())
	}

	// Maximum length: exactly 50 bytes is valid.
	max := strings.Repeat("x", MaxIdempotencyKeyLen)
	k, err = ParseIdempotencyKey(max)
	if err != nil {
		t.Fatalf("50-char key: unexpected error %v", err)
	}
	if k.String() != max {
		t.Fatalf("50-char key: round trip mismatch")
	}
}

func TestParseIdempotencyKey_Empty(t *testing.T) {
	_, err := ParseIdempotencyKey("")
	if err != ErrIdempotencyKeyEmpty {
		t.Fatalf("expected ErrIdempotencyKeyEmpty, got %v", err)
	}
	if err.Error() != "the idempotency key cannot be empty" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestParseIdempotencyKey_TooLong(t *testing.T) {
	_, err := ParseIdempotencyKey(strings.Repeat("x", MaxIdempotencyKeyLen+1))
	if err != ErrIdempotencyKeyTooLong {
		t.Fatalf("expected ErrIdempotencyKeyTooLong, got %v", err)
	}
	if err.Error() != "the idempotency key must be shorter than 50 characters" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestParseIdempotencyKey_Opaque(t *testing.T) {
	// Keys are opaque: whitespace, unicode, and symbols all pass through
	// untouched as long as the length fits.
	for _, raw := range []string{" spaced key ", "ключ", "a/b:c?d", "UPPER-lower"} {
		k, err := ParseIdempotencyKey(raw)
		if err != nil {
			t.Fatalf("key %q: unexpected error %v", raw, err)
		}
		if k.String() != raw {
			t.Fatalf("key %q: got %q", raw, k.String())
		}
	}
}

func TestIdempotency_CompletedAndEnvelope(t *testing.T) {
	rec := Idempotency{
		UserID:         "u1",
		IdempotencyKey: "k1",
		CreatedAt:      time.Now().UTC(),
	}
	if rec.Completed() {
		t.Fatalf("empty reservation must not report completed")
	}

	status := 202
	rec.ResponseStatusCode = &status
	rec.ResponseHeaders = ResponseHeaders{{Name: "Content-Type", Value: "application/json; charset=utf-8"}}
	rec.ResponseBody = []byte(`{"status":"accepted"}`)

	if !rec.Completed() {
		t.Fatalf("record with status must report completed")
	}

	env := rec.Envelope()
	if env.StatusCode != 202 {
		t.Fatalf("envelope status = %d", env.StatusCode)
	}
	if len(env.Headers) != 1 || env.Headers[0].Name != "Content-Type" {
		t.Fatalf("envelope headers = %+v", env.Headers)
	}
	if string(env.Body) != `{"status":"accepted"}` {
		t.Fatalf("envelope body = %q", env.Body)
	}
}

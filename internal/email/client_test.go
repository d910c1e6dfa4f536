package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSend_Success(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/email" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Server-Token") != "secret" {
			t.Errorf("missing server token header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "newsletter@example.com", time.Second)
	err := c.Send(context.Background(), "user@example.com", "Subject", "<p>html</p>", "text")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.From != "newsletter@example.com" || got.To != "user@example.com" || got.Subject != "Subject" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.HTMLBody != "<p>html</p>" || got.TextBody != "text" {
		t.Fatalf("unexpected bodies: %+v", got)
	}
}

func TestSend_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid recipient"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", "s@example.com", time.Second)
	err := c.Send(context.Background(), "bad@example.com", "s", "h", "t")
	if err == nil {
		t.Fatalf("expected error for 422")
	}
	if !IsPermanent(err) {
		t.Fatalf("4xx must classify as permanent: %v", err)
	}

	var se *SendError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected error detail: %v", err)
	}
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t", "s@example.com", time.Second)
	err := c.Send(context.Background(), "u@example.com", "s", "h", "t")
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if IsPermanent(err) {
		t.Fatalf("5xx must classify as transient: %v", err)
	}
}

func TestSend_TransportErrorIsTransient(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "t", "s@example.com", time.Second)
	err := c.Send(context.Background(), "u@example.com", "s", "h", "t")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if IsPermanent(err) {
		t.Fatalf("transport failures must classify as transient: %v", err)
	}
}

func TestSendError_Message(t *testing.T) {
	e := &SendError{StatusCode: 500, Detail: "boom"}
	if msg := e.Error(); msg != "email gateway: transient failure (status 500): boom" {
		t.Fatalf("unexpected message: %q", msg)
	}
	e = &SendError{Permanent: true, Detail: "nope"}
	if msg := e.Error(); msg != "email gateway: permanent failure: nope" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestIsPermanent_WrappedAndUnrelated(t *testing.T) {
	wrapped := fmt.Errorf("send to user: %w", &SendError{Permanent: true, Detail: "d"})
	if !IsPermanent(wrapped) {
		t.Fatalf("wrapped permanent error not detected")
	}
	if IsPermanent(errors.New("plain")) {
		t.Fatalf("plain error must not classify as permanent")
	}
	if IsPermanent(nil) {
		t.Fatalf("nil must not classify as permanent")
	}
}

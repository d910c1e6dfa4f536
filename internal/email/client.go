// Package email contains the outbound email gateway client. The gateway is a
// Postmark-style HTTP JSON API: one request per message, authenticated with a
// server token header.
//
// Failures are classified for the delivery worker:
//   - permanent: the gateway rejected the message itself (4xx) - retrying the
//     same payload can never succeed;
//   - transient: the gateway or network misbehaved (5xx, timeouts, transport
//     errors) - a later retry may succeed.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// serverTokenHeader authenticates requests to the gateway.
const serverTokenHeader = "X-Server-Token"

// SendError describes a failed gateway call. Permanent errors must not be
// retried; transient ones may be.
type SendError struct {
	// StatusCode is the gateway's HTTP status, or 0 for transport failures.
	StatusCode int
	// Permanent reports whether a retry of the identical send is futile.
	Permanent bool
	// Detail is a short human-readable explanation (body excerpt or cause).
	Detail string
}

// Error implements the error interface.
func (e *SendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("email gateway: %s failure (status %d): %s", kind, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("email gateway: %s failure: %s", kind, e.Detail)
}

// IsPermanent reports whether err (or anything it wraps) is a SendError
// classified as permanent.
func IsPermanent(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Permanent
}

// Client sends individual emails through the HTTP gateway. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	token   string
	sender  string
	http    *http.Client
}

// NewClient constructs a gateway client.
//
//   - baseURL: gateway root, e.g. "https://api.postmarkapp.com".
//   - token: server token placed in the auth header.
//   - sender: the From address stamped on every outgoing message.
//   - timeout: per-request deadline; values <= 0 default to 10s.
func NewClient(baseURL, token, sender string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		sender:  sender,
		http:    &http.Client{Timeout: timeout},
	}
}

// sendRequest is the gateway's wire format for one message.
type sendRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

// Send delivers one email to recipient. A nil return means the gateway
// accepted the message; any error is a *SendError carrying the
// transient/permanent classification.
func (c *Client) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	payload, err := json.Marshal(sendRequest{
		From:     c.sender,
		To:       recipient,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return &SendError{Permanent: true, Detail: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return &SendError{Permanent: true, Detail: "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(serverTokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		// DNS failures, refused connections, timeouts: all worth retrying.
		return &SendError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return &SendError{
		StatusCode: resp.StatusCode,
		Permanent:  resp.StatusCode >= 400 && resp.StatusCode < 500,
		Detail:     readBodyExcerpt(resp.Body),
	}
}

// readBodyExcerpt returns up to 512 bytes of the response body for error
// messages, collapsed to a single line.
func readBodyExcerpt(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(b) == 0 {
		return "no response body"
	}
	return strings.Join(strings.Fields(string(b)), " ")
}

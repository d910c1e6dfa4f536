// Package domain defines the persistence models for the application. This
// file contains the idempotency types used by the publish pipeline: the
// validated client-supplied key and the record that stores a completed
// response for replay.
package domain

import (
	"errors"
	"time"
)

// MaxIdempotencyKeyLen is the maximum accepted key length in bytes. Keys are
// opaque tokens; the cap only bounds storage, it implies no structure.
const MaxIdempotencyKeyLen = 50

// Idempotency key validation errors. These are user-facing: the HTTP layer
// returns them verbatim in 400 responses.
var (
	ErrIdempotencyKeyEmpty   = errors.New("the idempotency key cannot be empty")
	ErrIdempotencyKeyTooLong = errors.New("the idempotency key must be shorter than 50 characters")
)

// IdempotencyKey is a validated, opaque, case-sensitive token identifying one
// logical publish attempt. Construct it with ParseIdempotencyKey; the zero
// value is not valid.
type IdempotencyKey struct {
	value string
}

// ParseIdempotencyKey validates a raw client-supplied key. It rejects the
// empty string and anything longer than MaxIdempotencyKeyLen bytes; no other
// transformation or normalization is applied.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	if raw == "" {
		return IdempotencyKey{}, ErrIdempotencyKeyEmpty
	}
	if len(raw) > MaxIdempotencyKeyLen {
		return IdempotencyKey{}, ErrIdempotencyKeyTooLong
	}
	return IdempotencyKey{value: raw}, nil
}

// String returns the raw key value.
func (k IdempotencyKey) String() string { return k.value }

// HeaderPair is one (name, value) response header. Order is preserved so a
// replayed response is byte-for-byte identical to the original.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResponseHeaders is the ordered header list captured in a response envelope.
// It is stored JSON-serialized in a single column.
type ResponseHeaders []HeaderPair

// ResponseEnvelope is a serializable capture of an HTTP outcome: status code,
// ordered headers, and raw body bytes. It is produced once per successful
// publish and replayed verbatim for every duplicate request.
type ResponseEnvelope struct {
	StatusCode int
	Headers    ResponseHeaders
	Body       []byte
}

// Idempotency is the stored record for one (user, key) publish attempt.
//
// Lifecycle: the row is inserted empty ("reservation") when a request is
// first admitted, and completed exactly once - in the same transaction as the
// business writes - by attaching the response envelope. A completed record is
// immutable and never deleted by this subsystem.
//
// The composite primary key doubles as the uniqueness constraint that makes
// the reservation a mutual-exclusion primitive: a second request for the same
// (user, key) either conflicts on insert or blocks on the row lock.
type Idempotency struct {
	UserID             string          `gorm:"type:varchar(64);primaryKey"`
	IdempotencyKey     string          `gorm:"type:varchar(50);primaryKey"`
	ResponseStatusCode *int            `gorm:"column:response_status_code"`
	ResponseHeaders    ResponseHeaders `gorm:"column:response_headers;serializer:json"`
	ResponseBody       []byte          `gorm:"column:response_body"`
	CreatedAt          time.Time       `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Completed reports whether a response envelope has been attached.
func (i *Idempotency) Completed() bool { return i.ResponseStatusCode != nil }

// Envelope reconstructs the stored response envelope. It must only be called
// on a completed record.
func (i *Idempotency) Envelope() ResponseEnvelope {
	return ResponseEnvelope{
		StatusCode: *i.ResponseStatusCode,
		Headers:    i.ResponseHeaders,
		Body:       i.ResponseBody,
	}
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the idempotency store used by the
// publish pipeline: a per-(user, key) record that either marks a reservation
// in progress or holds a completed response envelope for replay.
//
// Mutual exclusion is enforced entirely by the database - the composite
// primary key plus a row-level lock on the conflict path - never by
// application-level coordination. All functions expect to be called with an
// open transaction and do not commit or roll back themselves.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

// ErrReservationHeld is returned when another request holds a live (not yet
// expired) reservation for the same key and has neither committed a response
// nor rolled back. The caller surfaces it as a conflict; retrying after the
// reservation TTL will take the key over.
var ErrReservationHeld = errors.New("another request holds a reservation for this idempotency key")

// ErrIdempotencyCompleted is returned by SaveIdempotencyResponse when the
// record already carries a response envelope. Completed records are immutable.
var ErrIdempotencyCompleted = errors.New("idempotency record already holds a response")

// ReserveIdempotency is the deduplication gate's storage primitive. Within
// the caller's open transaction it attempts to insert an empty reservation
// for (userID, key):
//
//   - Insert succeeded: the caller is admitted (admitted=true) and must later
//     attach the response via SaveIdempotencyResponse before committing.
//   - Insert conflicted: the existing row is read under a row lock, blocking
//     until any concurrent holder commits or rolls back. A completed row is
//     returned for replay (admitted=false, saved != nil). An uncompleted row
//     older than ttl is taken over (admitted=true); a fresh one yields
//     ErrReservationHeld.
//
// On PostgreSQL the conflicting insert itself waits on an uncommitted
// concurrent reservation, so the loser of a race always observes the winner's
// committed outcome rather than racing it.
func ReserveIdempotency(ctx context.Context, tx *gorm.DB, userID, key string, now time.Time, ttl time.Duration) (admitted bool, saved *domain.Idempotency, err error) {
	rec := &domain.Idempotency{
		UserID:         userID,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil, nil
	}

	// Conflict: a record exists. Lock it so a concurrent completer cannot
	// change it underneath us while we decide.
	q := tx.WithContext(ctx)
	if supportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var existing domain.Idempotency
	if err := q.
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&existing).Error; err != nil {
		return false, nil, err
	}

	if existing.Completed() {
		return false, &existing, nil
	}

	// Empty reservation. The happy path completes reservations in the same
	// transaction that created them, so a committed-empty row means a crashed
	// or wedged holder; reclaim it once the TTL has passed.
	if ttl > 0 && now.Sub(existing.CreatedAt) >= ttl {
		if err := tx.WithContext(ctx).
			Model(&domain.Idempotency{}).
			Where("user_id = ? AND idempotency_key = ? AND response_status_code IS NULL", userID, key).
			Update("created_at", now).Error; err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}

	return false, nil, ErrReservationHeld
}

// SaveIdempotencyResponse attaches the response envelope to the reservation
// for (userID, key). It must run in the same transaction that was admitted by
// ReserveIdempotency so the envelope commits atomically with the business
// writes. A record that already holds a response is never overwritten;
// attempting to do so returns ErrIdempotencyCompleted.
func SaveIdempotencyResponse(ctx context.Context, tx *gorm.DB, userID, key string, env domain.ResponseEnvelope) error {
	status := env.StatusCode
	res := tx.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where("user_id = ? AND idempotency_key = ? AND response_status_code IS NULL", userID, key).
		Updates(domain.Idempotency{
			ResponseStatusCode: &status,
			ResponseHeaders:    env.Headers,
			ResponseBody:       env.Body,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrIdempotencyCompleted
	}
	return nil
}

// GetIdempotency fetches a record by (userID, key), or ErrNotFound.
// Read-only; used by tests and admin tooling, not by the gate itself.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, key string) (*domain.Idempotency, error) {
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

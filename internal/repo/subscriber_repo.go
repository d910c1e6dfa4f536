// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read access to the subscriber directory.
//
// Signup and confirmation are owned by a different service; this application
// only lists confirmed recipients when a newsletter is published (and inserts
// rows from seed tooling and tests). Stored addresses are validated at read
// time and surfaced as tagged results rather than errors, so one bad row can
// never abort a publish.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

// ListConfirmedSubscribers returns one entry per confirmed subscriber, in
// subscription order. Each entry carries either a validated address or the
// validation failure for that stored row; callers are expected to skip and
// report invalid entries.
func ListConfirmedSubscribers(ctx context.Context, db *gorm.DB) ([]domain.ConfirmedSubscriber, error) {
	var rows []domain.Subscriber
	err := db.WithContext(ctx).
		Where("status = ?", domain.SubscriberStatusConfirmed).
		Order("subscribed_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConfirmedSubscriber, 0, len(rows))
	for _, r := range rows {
		email, perr := domain.ParseSubscriberEmail(r.Email)
		if perr != nil {
			out = append(out, domain.ConfirmedSubscriber{Err: perr})
			continue
		}
		out = append(out, domain.ConfirmedSubscriber{Email: email})
	}
	return out, nil
}

// CountConfirmedSubscribers returns the number of confirmed subscribers,
// including rows whose stored address would fail validation.
func CountConfirmedSubscribers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("status = ?", domain.SubscriberStatusConfirmed).
		Count(&total).Error
	return total, err
}

// CreateSubscriber inserts a subscriber row with the given status. The email
// is stored as provided - validation happens at read time - so seed tooling
// and tests can reproduce historical rows with malformed addresses.
func CreateSubscriber(ctx context.Context, db *gorm.DB, email, name, status string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Status:       status,
		SubscribedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

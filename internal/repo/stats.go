// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the admin stats endpoint. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

// IssueStats returns aggregate metadata for published issues: the total
// number of rows and the most recent publication timestamp.
//
// When no issues exist, the returned count is 0 and lastPublishedAt is nil.
func IssueStats(ctx context.Context, db *gorm.DB) (count int64, lastPublishedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.NewsletterIssue{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest published_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		PublishedAt time.Time
	}
	if err = q.Select("published_at").Order("published_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.PublishedAt, nil
}

// DeliveryStats returns the backlog of the outbox across all issues: pending
// task rows and accumulated dead letters.
func DeliveryStats(ctx context.Context, db *gorm.DB) (pending int64, deadLettered int64, err error) {
	if err = db.WithContext(ctx).Model(&domain.DeliveryTask{}).Count(&pending).Error; err != nil {
		return 0, 0, err
	}
	if err = db.WithContext(ctx).Model(&domain.DeliveryDeadLetter{}).Count(&deadLettered).Error; err != nil {
		return 0, 0, err
	}
	return pending, deadLettered, nil
}

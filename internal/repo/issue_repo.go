// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// NewsletterIssue model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an issue is not found, functions return ErrNotFound (an alias of
//     gorm.ErrRecordNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Issues are insert-only: there is deliberately no update or delete function
// because a published newsletter is immutable.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateIssue inserts a new immutable NewsletterIssue row with a freshly
// generated UUID and a UTC publication timestamp, and returns it. Storage
// errors are propagated, not retried.
func CreateIssue(ctx context.Context, db *gorm.DB, title, textContent, htmlContent string) (*domain.NewsletterIssue, error) {
	issue := &domain.NewsletterIssue{
		ID:          uuid.NewString(),
		Title:       title,
		TextContent: textContent,
		HTMLContent: htmlContent,
		PublishedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue fetches a single issue by ID, or ErrNotFound if missing.
func GetIssue(ctx context.Context, db *gorm.DB, id string) (*domain.NewsletterIssue, error) {
	var issue domain.NewsletterIssue
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&issue).Error
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// CountIssues returns the total number of published issues.
func CountIssues(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.NewsletterIssue{}).
		Count(&total).Error
	return total, err
}

// ListIssuesPage returns a paginated slice of issues ordered by publication
// time descending (most recent first). Use CountIssues to obtain the total
// for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListIssuesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.NewsletterIssue, error) {
	var out []domain.NewsletterIssue
	err := db.WithContext(ctx).
		Order("published_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

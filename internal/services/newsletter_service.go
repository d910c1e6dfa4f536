// Package services – NewsletterService
//
// This file implements the read side of the newsletter API: listing published
// issues with pagination, fetching a single issue, and reporting delivery
// progress. Delivery progress is defined by the outbox: an issue is fully
// delivered when no pending task rows remain for it (plus however many
// recipients were dead-lettered along the way).
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
	"github.com/tbourn/go-newsletter-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewsletterService provides read operations over published issues and their
// delivery state.
type NewsletterService struct {
	DB *gorm.DB
}

// NewNewsletterService constructs a NewsletterService.
func NewNewsletterService(db *gorm.DB) *NewsletterService {
	return &NewsletterService{DB: db}
}

// DeliveryStatus summarizes the outbox state of one issue.
type DeliveryStatus struct {
	IssueID      string `json:"issue_id"`
	Pending      int64  `json:"pending"`
	DeadLettered int64  `json:"dead_lettered"`
	// Done is true once the outbox holds no tasks for the issue. Completion
	// is observable only through this flag flipping; there is no event.
	Done bool `json:"done"`
}

// Stats aggregates operator-facing counters for the admin dashboard.
type Stats struct {
	Issues               int64      `json:"issues"`
	LastPublishedAt      *time.Time `json:"last_published_at,omitempty"`
	ConfirmedSubscribers int64      `json:"confirmed_subscribers"`
	PendingDeliveries    int64      `json:"pending_deliveries"`
	DeadLetters          int64      `json:"dead_letters"`
}

// ListPage returns a page of published issues (most recent first) and the
// total count. It applies defaults for invalid page/pageSize.
func (s *NewsletterService) ListPage(ctx context.Context, page, pageSize int) ([]domain.NewsletterIssue, int64, error) {
	tr := otel.Tracer("services/NewsletterService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountIssues(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.NewsletterIssue{}, 0, nil
	}

	items, err := repo.ListIssuesPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Get fetches one issue by ID, or ErrIssueNotFound.
func (s *NewsletterService) Get(ctx context.Context, issueID string) (*domain.NewsletterIssue, error) {
	issue, err := repo.GetIssue(ctx, s.DB, issueID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// Delivery reports the outbox state for one issue, or ErrIssueNotFound when
// the issue does not exist.
func (s *NewsletterService) Delivery(ctx context.Context, issueID string) (*DeliveryStatus, error) {
	tr := otel.Tracer("services/NewsletterService")
	ctx, span := tr.Start(ctx, "Delivery",
		trace.WithAttributes(attribute.String("issue.id", issueID)),
	)
	defer span.End()

	if _, err := s.Get(ctx, issueID); err != nil {
		return nil, err
	}

	pending, err := repo.PendingDeliveryCount(ctx, s.DB, issueID)
	if err != nil {
		return nil, err
	}
	dead, err := repo.CountDeadLetters(ctx, s.DB, issueID)
	if err != nil {
		return nil, err
	}

	return &DeliveryStatus{
		IssueID:      issueID,
		Pending:      pending,
		DeadLettered: dead,
		Done:         pending == 0,
	}, nil
}

// Stats returns aggregate counters across issues, subscribers, and the
// delivery queue.
func (s *NewsletterService) Stats(ctx context.Context) (*Stats, error) {
	issues, last, err := repo.IssueStats(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	confirmed, err := repo.CountConfirmedSubscribers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	pending, dead, err := repo.DeliveryStats(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Issues:               issues,
		LastPublishedAt:      last,
		ConfirmedSubscribers: confirmed,
		PendingDeliveries:    pending,
		DeadLetters:          dead,
	}, nil
}

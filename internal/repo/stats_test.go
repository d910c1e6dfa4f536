package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

func TestIssueStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.NewsletterIssue{})

	count, last, err := IssueStats(context.Background(), db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 0 || last != nil {
		t.Fatalf("empty stats = (%d, %v), want (0, nil)", count, last)
	}
}

func TestIssueStats_LatestTimestamp(t *testing.T) {
	db := newTestDB(t, &domain.NewsletterIssue{})
	ctx := context.Background()

	if _, err := CreateIssue(ctx, db, "first", "t", "h"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := CreateIssue(ctx, db, "second", "t", "h"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, last, err := IssueStats(ctx, db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 2 || last == nil {
		t.Fatalf("stats = (%d, %v)", count, last)
	}
	if time.Since(*last) > time.Minute {
		t.Fatalf("last published timestamp too old: %v", *last)
	}
}

func TestDeliveryStats(t *testing.T) {
	db := newTestDB(t, &domain.DeliveryTask{}, &domain.DeliveryDeadLetter{})
	ctx := context.Background()
	now := time.Now().UTC()

	tasks := []domain.DeliveryTask{
		{NewsletterIssueID: "i1", SubscriberEmail: "a@example.com", NextAttemptAt: now, EnqueuedAt: now},
		{NewsletterIssueID: "i2", SubscriberEmail: "b@example.com", NextAttemptAt: now, EnqueuedAt: now},
	}
	if err := db.Create(&tasks).Error; err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
	dl := domain.DeliveryDeadLetter{ID: "dl1", NewsletterIssueID: "i1", SubscriberEmail: "c@example.com", Reason: "r", FailedAt: now}
	if err := db.Create(&dl).Error; err != nil {
		t.Fatalf("seed dead letter: %v", err)
	}

	pending, dead, err := DeliveryStats(ctx, db)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if pending != 2 || dead != 1 {
		t.Fatalf("stats = (%d, %d), want (2, 1)", pending, dead)
	}
}

package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

func TestListConfirmedSubscribers_FiltersAndTags(t *testing.T) {
	db := newTestDB(t, &domain.Subscriber{})
	ctx := context.Background()

	if _, err := CreateSubscriber(ctx, db, "good@example.com", "Good", domain.SubscriberStatusConfirmed); err != nil {
		t.Fatalf("seed good: %v", err)
	}
	// Historical row with a malformed stored address.
	if _, err := CreateSubscriber(ctx, db, "not-an-email", "Bad", domain.SubscriberStatusConfirmed); err != nil {
		t.Fatalf("seed bad: %v", err)
	}
	// Pending rows are invisible to the publish pipeline.
	if _, err := CreateSubscriber(ctx, db, "pending@example.com", "Pending", domain.SubscriberStatusPending); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	subs, err := ListConfirmedSubscribers(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("confirmed entries = %d, want 2 (pending excluded)", len(subs))
	}

	var valid, invalid int
	for _, s := range subs {
		if s.Err != nil {
			invalid++
			continue
		}
		valid++
		if s.Email.String() != "good@example.com" {
			t.Fatalf("unexpected valid address %q", s.Email.String())
		}
	}
	if valid != 1 || invalid != 1 {
		t.Fatalf("valid=%d invalid=%d, want 1/1", valid, invalid)
	}
}

func TestCountConfirmedSubscribers(t *testing.T) {
	db := newTestDB(t, &domain.Subscriber{})
	ctx := context.Background()

	seeds := []struct {
		email  string
		status string
	}{
		{"one@example.com", domain.SubscriberStatusConfirmed},
		{"two@example.com", domain.SubscriberStatusConfirmed},
		{"three@example.com", domain.SubscriberStatusPending},
	}
	for _, s := range seeds {
		if _, err := CreateSubscriber(ctx, db, s.email, "n", s.status); err != nil {
			t.Fatalf("seed %s: %v", s.email, err)
		}
	}

	total, err := CountConfirmedSubscribers(ctx, db)
	if err != nil || total != 2 {
		t.Fatalf("count = (%d, %v), want 2", total, err)
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
	"github.com/tbourn/go-newsletter-backend/internal/repo"
)

// newTestDB opens a unique in-memory database per test with the full schema.
// The pool is capped at one connection so concurrent transactions serialize
// the way SQLite's database lock would in a file deployment, which keeps the
// concurrency tests deterministic.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedConfirmed(t *testing.T, db *gorm.DB, emails ...string) {
	t.Helper()
	for _, e := range emails {
		if _, err := repo.CreateSubscriber(context.Background(), db, e, "n", domain.SubscriberStatusConfirmed); err != nil {
			t.Fatalf("seed subscriber %s: %v", e, err)
		}
	}
}

func validInput(key string) PublishInput {
	return PublishInput{
		Title:          "Issue title",
		TextContent:    "plain text body",
		HTMLContent:    "<p>html body</p>",
		IdempotencyKey: key,
	}
}

func TestPublish_HappyPath(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "a@example.com", "b@example.com")
	svc := NewPublishService(db, time.Hour)

	res, err := svc.Publish(context.Background(), "admin", validInput("k1"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Replayed {
		t.Fatalf("first publish must not be a replay")
	}
	if res.IssueID == "" || res.Enqueued != 2 {
		t.Fatalf("result = %+v, want issue id and 2 enqueued", res)
	}
	if res.Envelope.StatusCode != 202 {
		t.Fatalf("envelope status = %d, want 202", res.Envelope.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		IssueID string `json:"issue_id"`
	}
	if err := json.Unmarshal(res.Envelope.Body, &body); err != nil {
		t.Fatalf("envelope body: %v", err)
	}
	if body.Status != "accepted" || body.IssueID != res.IssueID {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Message != "The newsletter issue has been published!" {
		t.Fatalf("unexpected message: %q", body.Message)
	}

	// Committed atomically: issue, outbox tasks, and completed idempotency row.
	issue, err := repo.GetIssue(context.Background(), db, res.IssueID)
	if err != nil {
		t.Fatalf("issue missing: %v", err)
	}
	if issue.Title != "Issue title" {
		t.Fatalf("issue = %+v", issue)
	}
	pending, err := repo.PendingDeliveryCount(context.Background(), db, res.IssueID)
	if err != nil || pending != 2 {
		t.Fatalf("pending = (%d, %v), want 2", pending, err)
	}
	rec, err := repo.GetIdempotency(context.Background(), db, "admin", "k1")
	if err != nil || !rec.Completed() {
		t.Fatalf("idempotency record not completed: (%+v, %v)", rec, err)
	}
}

func TestPublish_DuplicateReplaysByteIdentical(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "a@example.com")
	svc := NewPublishService(db, time.Hour)
	ctx := context.Background()

	first, err := svc.Publish(ctx, "admin", validInput("abc123"))
	if err != nil {
		t.Fatalf("first publish: %v", err)
	}

	// Subscribers confirmed after the publish must not change the replay.
	seedConfirmed(t, db, "late@example.com")

	second, err := svc.Publish(ctx, "admin", validInput("abc123"))
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("duplicate must be a replay")
	}
	if second.Envelope.StatusCode != first.Envelope.StatusCode {
		t.Fatalf("replay status = %d, want %d", second.Envelope.StatusCode, first.Envelope.StatusCode)
	}
	if string(second.Envelope.Body) != string(first.Envelope.Body) {
		t.Fatalf("replay body differs:\nfirst:  %s\nsecond: %s", first.Envelope.Body, second.Envelope.Body)
	}

	// No second issue, no new outbox rows.
	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 1 {
		t.Fatalf("issues = (%d, %v), want 1", total, err)
	}
	pending, err := repo.PendingDeliveryCount(ctx, db, first.IssueID)
	if err != nil || pending != 1 {
		t.Fatalf("pending = (%d, %v), want 1", pending, err)
	}
}

func TestPublish_ConcurrentSameKey(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "a@example.com")
	svc := NewPublishService(db, time.Hour)

	const n = 4
	results := make([]*PublishResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Publish(context.Background(), "admin", validInput("race-key"))
		}(i)
	}
	wg.Wait()

	var fresh, replayed int
	var firstBody string
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("publish %d: %v", i, errs[i])
		}
		if results[i].Replayed {
			replayed++
		} else {
			fresh++
		}
		if firstBody == "" {
			firstBody = string(results[i].Envelope.Body)
		} else if string(results[i].Envelope.Body) != firstBody {
			t.Fatalf("publish %d returned a different envelope body", i)
		}
	}
	if fresh != 1 || replayed != n-1 {
		t.Fatalf("fresh=%d replayed=%d, want exactly one execution", fresh, replayed)
	}

	total, err := repo.CountIssues(context.Background(), db)
	if err != nil || total != 1 {
		t.Fatalf("issues = (%d, %v), want 1", total, err)
	}
}

func TestPublish_DifferentKeysPublishTwice(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "a@example.com")
	svc := NewPublishService(db, time.Hour)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, "admin", validInput("k1")); err != nil {
		t.Fatalf("publish k1: %v", err)
	}
	if _, err := svc.Publish(ctx, "admin", validInput("k2")); err != nil {
		t.Fatalf("publish k2: %v", err)
	}

	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 2 {
		t.Fatalf("issues = (%d, %v), want 2", total, err)
	}
}

func TestPublish_ValidationErrors(t *testing.T) {
	db := newTestDB(t)
	svc := NewPublishService(db, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name string
		in   PublishInput
		want error
	}{
		{"empty title", PublishInput{TextContent: "t", HTMLContent: "h", IdempotencyKey: "k"}, ErrTitleEmpty},
		{"empty text", PublishInput{Title: "t", HTMLContent: "h", IdempotencyKey: "k"}, ErrTextContentEmpty},
		{"empty html", PublishInput{Title: "t", TextContent: "t", IdempotencyKey: "k"}, ErrHTMLContentEmpty},
		{"empty key", PublishInput{Title: "t", TextContent: "t", HTMLContent: "h"}, domain.ErrIdempotencyKeyEmpty},
		{"long key", PublishInput{Title: "t", TextContent: "t", HTMLContent: "h", IdempotencyKey: strings.Repeat("x", 51)}, domain.ErrIdempotencyKeyTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Publish(ctx, "admin", tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// Nothing was published or reserved.
	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 0 {
		t.Fatalf("issues = (%d, %v), want 0", total, err)
	}
}

func TestPublish_SkipsInvalidStoredAddress(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "good@example.com", "not-an-address")
	svc := NewPublishService(db, time.Hour)

	res, err := svc.Publish(context.Background(), "admin", validInput("k1"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if res.Enqueued != 1 {
		t.Fatalf("enqueued = %d, want 1 (invalid row skipped, not fatal)", res.Enqueued)
	}
}

func TestPublish_HeldReservationConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewPublishService(db, time.Hour)
	ctx := context.Background()

	// A crashed holder left an empty reservation inside the TTL window.
	admitted, _, err := repo.ReserveIdempotency(ctx, db, "admin", "wedged", time.Now().UTC(), time.Hour)
	if err != nil || !admitted {
		t.Fatalf("seed reservation: (%v, %v)", admitted, err)
	}

	_, err = svc.Publish(ctx, "admin", validInput("wedged"))
	if !errors.Is(err, repo.ErrReservationHeld) {
		t.Fatalf("expected ErrReservationHeld, got %v", err)
	}
}

func TestPublish_TakesOverExpiredReservation(t *testing.T) {
	db := newTestDB(t)
	seedConfirmed(t, db, "a@example.com")
	svc := NewPublishService(db, time.Hour)
	ctx := context.Background()

	if admitted, _, err := repo.ReserveIdempotency(ctx, db, "admin", "stale", time.Now().UTC().Add(-2*time.Hour), time.Hour); err != nil || !admitted {
		t.Fatalf("seed stale reservation: (%v, %v)", admitted, err)
	}

	res, err := svc.Publish(ctx, "admin", validInput("stale"))
	if err != nil {
		t.Fatalf("publish over stale reservation: %v", err)
	}
	if res.Replayed || res.IssueID == "" {
		t.Fatalf("takeover must execute the pipeline, got %+v", res)
	}
}

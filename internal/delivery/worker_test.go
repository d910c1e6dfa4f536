package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
	"github.com/tbourn/go-newsletter-backend/internal/email"
	"github.com/tbourn/go-newsletter-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeGateway records sends and returns scripted errors per recipient.
type fakeGateway struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]error
	count map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{fail: map[string]error{}, count: map[string]int{}}
}

func (g *fakeGateway) Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count[recipient]++
	if err, ok := g.fail[recipient]; ok {
		return err
	}
	g.sent = append(g.sent, recipient)
	return nil
}

func (g *fakeGateway) sends(recipient string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count[recipient]
}

func seedIssueWithTasks(t *testing.T, db *gorm.DB, emails ...string) *domain.NewsletterIssue {
	t.Helper()
	issue, err := repo.CreateIssue(context.Background(), db, "subject", "text", "<p>html</p>")
	if err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	now := time.Now().UTC()
	for _, e := range emails {
		task := domain.DeliveryTask{
			NewsletterIssueID: issue.ID,
			SubscriberEmail:   e,
			NextAttemptAt:     now.Add(-time.Second),
			EnqueuedAt:        now,
		}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("seed task %s: %v", e, err)
		}
	}
	return issue
}

func TestDrain_SuccessDeletesTasks(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	issue := seedIssueWithTasks(t, db, "a@example.com", "b@example.com")

	w := NewWorker(db, gw, email.IsPermanent, Options{})
	handled := w.Drain(context.Background())
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}

	pending, err := repo.PendingDeliveryCount(context.Background(), db, issue.ID)
	if err != nil || pending != 0 {
		t.Fatalf("pending = (%d, %v), want 0", pending, err)
	}
	if gw.sends("a@example.com") != 1 || gw.sends("b@example.com") != 1 {
		t.Fatalf("each recipient must be sent exactly once")
	}
}

func TestDrain_PermanentFailureDeadLettersWithoutRetry(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	gw.fail["bad@example.com"] = &email.SendError{StatusCode: 422, Permanent: true, Detail: "rejected"}
	issue := seedIssueWithTasks(t, db, "bad@example.com")

	w := NewWorker(db, gw, email.IsPermanent, Options{})
	w.Drain(context.Background())

	pending, _ := repo.PendingDeliveryCount(context.Background(), db, issue.ID)
	dead, _ := repo.CountDeadLetters(context.Background(), db, issue.ID)
	if pending != 0 || dead != 1 {
		t.Fatalf("pending=%d dead=%d, want 0/1", pending, dead)
	}
	if gw.sends("bad@example.com") != 1 {
		t.Fatalf("permanent failure must not be retried, sends=%d", gw.sends("bad@example.com"))
	}
}

func TestDrain_TransientFailureReschedules(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	gw.fail["flaky@example.com"] = &email.SendError{StatusCode: 503, Detail: "try later"}
	issue := seedIssueWithTasks(t, db, "flaky@example.com")

	w := NewWorker(db, gw, email.IsPermanent, Options{RetryBase: time.Minute})
	w.Drain(context.Background())

	// The task stays in the queue with a bumped attempt counter and a future
	// next_attempt_at; a second drain right away must not touch it.
	var task domain.DeliveryTask
	if err := db.Where("newsletter_issue_id = ?", issue.ID).First(&task).Error; err != nil {
		t.Fatalf("task missing after transient failure: %v", err)
	}
	if task.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", task.Attempts)
	}
	if !task.NextAttemptAt.After(time.Now().UTC()) {
		t.Fatalf("next attempt not deferred: %v", task.NextAttemptAt)
	}

	w.Drain(context.Background())
	if gw.sends("flaky@example.com") != 1 {
		t.Fatalf("deferred task retried early, sends=%d", gw.sends("flaky@example.com"))
	}

	dead, _ := repo.CountDeadLetters(context.Background(), db, issue.ID)
	if dead != 0 {
		t.Fatalf("transient failure dead-lettered prematurely")
	}
}

func TestDrain_RetryBudgetExhaustionDeadLetters(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	gw.fail["down@example.com"] = &email.SendError{StatusCode: 500, Detail: "down"}
	issue := seedIssueWithTasks(t, db, "down@example.com")

	// Last allowed attempt: attempts+1 reaches the budget, so the failure
	// dead-letters instead of rescheduling.
	if err := db.Model(&domain.DeliveryTask{}).
		Where("newsletter_issue_id = ?", issue.ID).
		Update("attempts", 2).Error; err != nil {
		t.Fatalf("bump attempts: %v", err)
	}

	w := NewWorker(db, gw, email.IsPermanent, Options{MaxAttempts: 3})
	w.Drain(context.Background())

	pending, _ := repo.PendingDeliveryCount(context.Background(), db, issue.ID)
	dead, _ := repo.CountDeadLetters(context.Background(), db, issue.ID)
	if pending != 0 || dead != 1 {
		t.Fatalf("pending=%d dead=%d, want 0/1", pending, dead)
	}
}

func TestDrain_MissingIssueDeadLetters(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	now := time.Now().UTC()

	task := domain.DeliveryTask{
		NewsletterIssueID: "00000000-0000-0000-0000-000000000000",
		SubscriberEmail:   "a@example.com",
		NextAttemptAt:     now.Add(-time.Second),
		EnqueuedAt:        now,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("seed orphan task: %v", err)
	}

	w := NewWorker(db, gw, email.IsPermanent, Options{})
	w.Drain(context.Background())

	dead, _ := repo.CountDeadLetters(context.Background(), db, task.NewsletterIssueID)
	if dead != 1 {
		t.Fatalf("orphan task must dead-letter, dead=%d", dead)
	}
	if gw.sends("a@example.com") != 0 {
		t.Fatalf("orphan task must not reach the gateway")
	}
}

func TestWorker_StartStop(t *testing.T) {
	db := newTestDB(t)
	w := NewWorker(db, newFakeGateway(), email.IsPermanent, Options{PollInterval: 10 * time.Millisecond})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Start(); err == nil {
		t.Fatalf("second start must fail")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(); err == nil {
		t.Fatalf("second stop must fail")
	}

	// Restart works after a clean stop.
	if err := w.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestWorker_Backoff(t *testing.T) {
	w := NewWorker(nil, newFakeGateway(), nil, Options{
		RetryBase: 30 * time.Second,
		RetryCap:  time.Hour,
	})

	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{6, 32 * time.Minute},
		{7, time.Hour},  // 64m capped
		{20, time.Hour}, // stays capped
	}
	for _, tc := range cases {
		if got := w.backoff(tc.attempts); got != tc.want {
			t.Fatalf("backoff(%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func TestNewWorker_NilClassifierTreatsAllTransient(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	gw.fail["x@example.com"] = errors.New("some opaque failure")
	issue := seedIssueWithTasks(t, db, "x@example.com")

	w := NewWorker(db, gw, nil, Options{RetryBase: time.Minute})
	w.Drain(context.Background())

	pending, _ := repo.PendingDeliveryCount(context.Background(), db, issue.ID)
	dead, _ := repo.CountDeadLetters(context.Background(), db, issue.ID)
	if pending != 1 || dead != 0 {
		t.Fatalf("nil classifier must retry, pending=%d dead=%d", pending, dead)
	}
}

// Package delivery implements the background worker that drains the
// newsletter delivery outbox. The worker polls the queue on an interval,
// claims one due task at a time inside a transaction, attempts the send, and
// acknowledges by deleting the task in the same transaction. A crash between
// send and commit leaves the task in the queue, so delivery is at-least-once:
// a recipient can receive a duplicate email, but never zero.
//
// Retry policy: transient gateway failures reschedule the task with
// exponential backoff; permanent failures and tasks that exhaust their retry
// budget move to the dead-letter table and are never retried.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/repo"
)

// Gateway is the outbound email dependency of the worker. Satisfied by
// *email.Client; tests substitute a fake.
type Gateway interface {
	Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error
}

// PermanentFunc classifies a Gateway error as unretryable. Wired to
// email.IsPermanent in production.
type PermanentFunc func(error) bool

// Options tunes the worker's polling and retry behaviour. Zero values fall
// back to the defaults applied in NewWorker.
type Options struct {
	// PollInterval is the pause between polls when the queue is empty.
	PollInterval time.Duration
	// MaxAttempts is the retry budget per task, counting the first attempt.
	MaxAttempts int
	// RetryBase is the backoff after the first transient failure; each
	// subsequent failure doubles it.
	RetryBase time.Duration
	// RetryCap bounds the backoff growth.
	RetryCap time.Duration
}

// Worker drains the delivery outbox. Create with NewWorker, then Start/Stop.
type Worker struct {
	db          *gorm.DB
	gateway     Gateway
	isPermanent PermanentFunc
	opts        Options

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker constructs a Worker. isPermanent may be nil, in which case every
// failure is treated as transient.
func NewWorker(db *gorm.DB, gateway Gateway, isPermanent PermanentFunc, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 30 * time.Second
	}
	if opts.RetryCap <= 0 {
		opts.RetryCap = time.Hour
	}
	if isPermanent == nil {
		isPermanent = func(error) bool { return false }
	}
	return &Worker{
		db:          db,
		gateway:     gateway,
		isPermanent: isPermanent,
		opts:        opts,
	}
}

// Start launches the polling loop in a background goroutine. It returns an
// error if the worker is already running.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("delivery worker already running")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.wg.Add(1)
	go w.run()
	log.Info().
		Dur("poll_interval", w.opts.PollInterval).
		Int("max_attempts", w.opts.MaxAttempts).
		Msg("delivery worker started")
	return nil
}

// Stop signals the loop to exit and waits for the in-flight iteration to
// finish. It returns an error if the worker is not running.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return errors.New("delivery worker not running")
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	log.Info().Msg("delivery worker stopped")
	return nil
}

// run is the polling loop. After each drained batch it sleeps until the next
// tick; when Drain reports more work it loops again immediately.
func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		w.Drain(context.Background())

		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
		}
	}
}

// Drain processes due tasks until the queue has none left, then returns the
// number handled. Exposed for tests and for synchronous draining on demand.
func (w *Worker) Drain(ctx context.Context) int {
	handled := 0
	for {
		select {
		case <-ctx.Done():
			return handled
		default:
		}

		more, err := w.processOne(ctx)
		if err != nil {
			log.Error().Err(err).Msg("delivery iteration failed")
			return handled
		}
		if !more {
			return handled
		}
		handled++
	}
}

// processOne claims and handles a single due task inside one transaction.
// Returns false when no task was due.
func (w *Worker) processOne(ctx context.Context) (bool, error) {
	claimed := false
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		task, err := repo.ClaimDeliveryTask(ctx, tx, now)
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		claimed = true

		issue, err := repo.GetIssue(ctx, tx, task.NewsletterIssueID)
		if err != nil {
			// The issue row commits in the same transaction as its tasks, so a
			// missing issue means corruption; park the task for inspection.
			deadLetteredTotal.Inc()
			return repo.DeadLetterDeliveryTask(ctx, tx, task, "issue row missing: "+err.Error())
		}

		sendErr := w.gateway.Send(ctx, task.SubscriberEmail, issue.Title, issue.HTMLContent, issue.TextContent)
		if sendErr == nil {
			sentTotal.Inc()
			log.Info().
				Str("issue_id", task.NewsletterIssueID).
				Str("recipient", task.SubscriberEmail).
				Int("attempts", task.Attempts+1).
				Msg("newsletter issue delivered")
			return repo.DeleteDeliveryTask(ctx, tx, task)
		}

		if w.isPermanent(sendErr) {
			deadLetteredTotal.Inc()
			log.Warn().
				Err(sendErr).
				Str("issue_id", task.NewsletterIssueID).
				Str("recipient", task.SubscriberEmail).
				Msg("permanent delivery failure, dead-lettering task")
			return repo.DeadLetterDeliveryTask(ctx, tx, task, sendErr.Error())
		}

		if task.Attempts+1 >= w.opts.MaxAttempts {
			deadLetteredTotal.Inc()
			log.Warn().
				Err(sendErr).
				Str("issue_id", task.NewsletterIssueID).
				Str("recipient", task.SubscriberEmail).
				Int("attempts", task.Attempts+1).
				Msg("delivery retry budget exhausted, dead-lettering task")
			reason := fmt.Sprintf("retry budget exhausted after %d attempts: %s", task.Attempts+1, sendErr.Error())
			return repo.DeadLetterDeliveryTask(ctx, tx, task, reason)
		}

		retriedTotal.Inc()
		next := now.Add(w.backoff(task.Attempts))
		log.Warn().
			Err(sendErr).
			Str("issue_id", task.NewsletterIssueID).
			Str("recipient", task.SubscriberEmail).
			Int("attempts", task.Attempts+1).
			Time("next_attempt_at", next).
			Msg("transient delivery failure, rescheduling task")
		return repo.RescheduleDeliveryTask(ctx, tx, task, next)
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

// backoff returns the delay before the next attempt given how many attempts
// have already failed: base, 2*base, 4*base, ... capped at RetryCap.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.opts.RetryBase
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= w.opts.RetryCap {
			return w.opts.RetryCap
		}
	}
	if d > w.opts.RetryCap {
		return w.opts.RetryCap
	}
	return d
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the transactional outbox for newsletter
// delivery: enqueueing one task per confirmed recipient inside the publish
// transaction, and the claim/ack primitives used by the delivery worker.
//
// Ownership: tasks are created here by the enqueuer and consumed/deleted by
// the worker; no other component touches the queue table.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
)

// EnqueueDeliveryTasks inserts one DeliveryTask per confirmed subscriber with
// a valid stored address, inside the caller's transaction. Because this runs
// in the same transaction that created the issue, there is no window where an
// issue exists with a partial recipient set.
//
// The recipient set is fixed here: subscribers confirmed after the enqueue
// never receive this issue. Invalid stored addresses are returned as skipped
// reasons for the caller to report; they do not fail the batch.
func EnqueueDeliveryTasks(ctx context.Context, tx *gorm.DB, issueID string, now time.Time) (enqueued int, skipped []error, err error) {
	subscribers, err := ListConfirmedSubscribers(ctx, tx)
	if err != nil {
		return 0, nil, err
	}

	tasks := make([]domain.DeliveryTask, 0, len(subscribers))
	for _, s := range subscribers {
		if s.Err != nil {
			skipped = append(skipped, s.Err)
			continue
		}
		tasks = append(tasks, domain.DeliveryTask{
			NewsletterIssueID: issueID,
			SubscriberEmail:   s.Email.String(),
			Attempts:          0,
			NextAttemptAt:     now,
			EnqueuedAt:        now,
		})
	}
	if len(tasks) == 0 {
		return 0, skipped, nil
	}
	if err := tx.WithContext(ctx).CreateInBatches(tasks, 500).Error; err != nil {
		return 0, skipped, err
	}
	return len(tasks), skipped, nil
}

// ClaimDeliveryTask selects one due task, locking the row so concurrent
// worker instances never process the same task twice (FOR UPDATE SKIP LOCKED
// on PostgreSQL; a task locked by one worker is invisible to the others until
// its transaction ends). Returns (nil, nil) when no task is due.
//
// Must be called within the worker's transaction: the claim only holds for
// the transaction's lifetime.
func ClaimDeliveryTask(ctx context.Context, tx *gorm.DB, now time.Time) (*domain.DeliveryTask, error) {
	q := tx.WithContext(ctx)
	if supportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var tasks []domain.DeliveryTask
	err := q.
		Where("next_attempt_at <= ?", now).
		Order("next_attempt_at asc").
		Limit(1).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// DeleteDeliveryTask removes a task from the queue. Called after a successful
// send or a permanent failure; committing the enclosing transaction makes the
// acknowledgement durable.
func DeleteDeliveryTask(ctx context.Context, tx *gorm.DB, task *domain.DeliveryTask) error {
	return tx.WithContext(ctx).
		Where("newsletter_issue_id = ? AND subscriber_email = ?", task.NewsletterIssueID, task.SubscriberEmail).
		Delete(&domain.DeliveryTask{}).Error
}

// RescheduleDeliveryTask keeps a transiently failed task in the queue,
// incrementing its attempt counter and deferring it until nextAttemptAt.
func RescheduleDeliveryTask(ctx context.Context, tx *gorm.DB, task *domain.DeliveryTask, nextAttemptAt time.Time) error {
	return tx.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Where("newsletter_issue_id = ? AND subscriber_email = ?", task.NewsletterIssueID, task.SubscriberEmail).
		Updates(map[string]any{
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAttemptAt,
		}).Error
}

// DeadLetterDeliveryTask removes a task from the queue and records it in the
// dead-letter table with the failure reason. Used for permanent gateway
// failures and for tasks that exhausted their retry budget.
func DeadLetterDeliveryTask(ctx context.Context, tx *gorm.DB, task *domain.DeliveryTask, reason string) error {
	dl := &domain.DeliveryDeadLetter{
		ID:                uuid.NewString(),
		NewsletterIssueID: task.NewsletterIssueID,
		SubscriberEmail:   task.SubscriberEmail,
		Attempts:          task.Attempts,
		Reason:            reason,
		FailedAt:          time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(dl).Error; err != nil {
		return err
	}
	return DeleteDeliveryTask(ctx, tx, task)
}

// PendingDeliveryCount returns the number of undelivered tasks for an issue.
// The outbox has no "all done" signal beyond this reaching zero; callers that
// need completion must poll for the absence of tasks.
func PendingDeliveryCount(ctx context.Context, db *gorm.DB, issueID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryTask{}).
		Where("newsletter_issue_id = ?", issueID).
		Count(&total).Error
	return total, err
}

// CountDeadLetters returns the number of dead-lettered deliveries for an issue.
func CountDeadLetters(ctx context.Context, db *gorm.DB, issueID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryDeadLetter{}).
		Where("newsletter_issue_id = ?", issueID).
		Count(&total).Error
	return total, err
}

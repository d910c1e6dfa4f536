// Package domain defines the persistence models for subscribers, newsletter
// issues, and the delivery outbox. These types are mapped with GORM and form
// the core data layer of the newsletter application.
package domain

import (
	"time"
)

// Subscriber statuses. A subscriber only receives newsletter issues once
// their status is "confirmed"; pending rows are invisible to the publish
// pipeline.
const (
	SubscriberStatusPending   = "pending"
	SubscriberStatusConfirmed = "confirmed"
)

// Subscriber represents one mailing-list member. Rows are created by the
// signup flow (out of scope for this service) and read here to build the
// recipient set of a newsletter issue.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: stored address; validity is re-checked at read time because
//     historical rows may predate stricter validation.
//   - Name: display name captured at signup.
//   - Status: "pending" or "confirmed" (enforced by DB constraint).
//   - SubscribedAt: signup timestamp (UTC).
type Subscriber struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"         gorm:"type:varchar(320);not null;uniqueIndex:ux_subscribers_email"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	Status       string    `json:"status"        gorm:"type:varchar(16);not null;index:idx_subscribers_status;check:status IN ('pending','confirmed')"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// TableName returns the database table name for Subscriber.
func (Subscriber) TableName() string { return "subscriptions" }

// NewsletterIssue is one published newsletter. Rows are immutable after
// creation: the publish pipeline inserts exactly one issue per accepted
// publish request and never updates it.
//
// Fields:
//   - ID: UUID primary key (char(36)), generated at creation.
//   - Title: subject line sent to subscribers.
//   - TextContent / HTMLContent: the two bodies of the outgoing email.
//   - PublishedAt: creation timestamp (UTC).
type NewsletterIssue struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title"        gorm:"type:varchar(255);not null"`
	TextContent string    `json:"text_content" gorm:"type:text;not null"`
	HTMLContent string    `json:"html_content" gorm:"type:text;not null"`
	PublishedAt time.Time `json:"published_at" gorm:"index:idx_issues_published_at"`
}

// TableName returns the database table name for NewsletterIssue.
func (NewsletterIssue) TableName() string { return "newsletter_issues" }

// DeliveryTask is one unit of outbound work: one issue to one recipient.
// Tasks are created in bulk inside the same transaction that creates the
// issue (transactional outbox) and deleted by the delivery worker once the
// send succeeds or is classified as permanently failed. Presence of a row
// means the delivery is still pending; there is no status column.
//
// Attempts and NextAttemptAt implement bounded retries with backoff for
// transient gateway failures. They are worker bookkeeping only; the recipient
// set of an issue is fixed at enqueue time.
type DeliveryTask struct {
	NewsletterIssueID string    `json:"newsletter_issue_id" gorm:"type:char(36);primaryKey;index:idx_delivery_issue"`
	SubscriberEmail   string    `json:"subscriber_email"    gorm:"type:varchar(320);primaryKey"`
	Attempts          int       `json:"attempts"            gorm:"not null;default:0"`
	NextAttemptAt     time.Time `json:"next_attempt_at"     gorm:"index:idx_delivery_next_attempt"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
}

// TableName returns the database table name for DeliveryTask.
func (DeliveryTask) TableName() string { return "issue_delivery_queue" }

// DeliveryDeadLetter records a delivery task that was removed from the queue
// without a successful send: either the gateway classified the failure as
// permanent, or the task exhausted its retry budget. Rows exist purely for
// operator inspection and are never read by the pipeline.
type DeliveryDeadLetter struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	NewsletterIssueID string    `json:"newsletter_issue_id" gorm:"type:char(36);not null;index"`
	SubscriberEmail   string    `json:"subscriber_email"    gorm:"type:varchar(320);not null"`
	Attempts          int       `json:"attempts"            gorm:"not null"`
	Reason            string    `json:"reason"              gorm:"type:text;not null"`
	FailedAt          time.Time `json:"failed_at"`
}

// TableName returns the database table name for DeliveryDeadLetter.
func (DeliveryDeadLetter) TableName() string { return "newsletter_delivery_dead_letters" }

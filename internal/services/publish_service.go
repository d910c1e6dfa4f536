// Package services – PublishService
//
// This file implements PublishService, the application-level component that
// owns the idempotent newsletter-publish pipeline. A publish request passes
// through a deduplication gate keyed by (operator, idempotency key): the
// first request to claim a key creates the issue, enqueues one delivery task
// per confirmed subscriber (transactional outbox), and stores the HTTP
// response envelope - all committed atomically. Every duplicate of that
// request, sequential or concurrent, observes the stored envelope byte for
// byte and performs no business work.
//
// Delivery itself is asynchronous: this service only fills the outbox. The
// delivery worker drains it independently of any HTTP request's lifetime.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the operator and issue identifiers.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
	"github.com/tbourn/go-newsletter-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PublishService coordinates the deduplication gate, the issue repository,
// and the outbox enqueuer. All coordination between concurrent publishes
// happens in the database; the service holds no mutable state.
type PublishService struct {
	DB *gorm.DB

	// ReservationTTL bounds how long an uncompleted idempotency reservation
	// blocks retries of its key before being reclaimed. Zero disables
	// reclaiming.
	ReservationTTL time.Duration
}

// NewPublishService constructs a PublishService with the given reservation TTL.
func NewPublishService(db *gorm.DB, reservationTTL time.Duration) *PublishService {
	return &PublishService{DB: db, ReservationTTL: reservationTTL}
}

// PublishInput is the validated-at-the-edge payload of a publish request.
// Field-level validation (non-empty contents, key length) happens in Publish
// so every transport shares the same rules.
type PublishInput struct {
	Title          string
	TextContent    string
	HTMLContent    string
	IdempotencyKey string
}

// PublishResult is the outcome of a publish call. Envelope is what the HTTP
// layer must send - verbatim - whether the call executed the pipeline or
// replayed a previous execution.
type PublishResult struct {
	// IssueID identifies the created issue; empty on a replay.
	IssueID string
	// Enqueued is the number of delivery tasks created; zero on a replay.
	Enqueued int
	// Replayed reports whether a previously saved response was returned.
	Replayed bool
	// Envelope is the response to serve.
	Envelope domain.ResponseEnvelope
}

// acceptedBody is the JSON body of a successful publish response.
type acceptedBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	IssueID string `json:"issue_id"`
}

// publishedMessage is the operator-facing confirmation text.
const publishedMessage = "The newsletter issue has been published!"

// Publish runs one logical publish attempt for userID.
//
// Exactly-once contract: for any two calls with the same (userID, key),
// exactly one executes the business logic; the other returns the first one's
// envelope. Concurrent duplicates resolve through the database - the loser
// blocks on the idempotency row until the winner commits, then replays the
// winner's response - never through in-process coordination.
//
// The issue row, the outbox rows, and the response envelope commit in a
// single transaction: either a publish is fully recorded or none of it is.
func (s *PublishService) Publish(ctx context.Context, userID string, in PublishInput) (*PublishResult, error) {
	tr := otel.Tracer("services/PublishService")
	ctx, span := tr.Start(ctx, "Publish",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if in.Title == "" {
		return nil, ErrTitleEmpty
	}
	if in.TextContent == "" {
		return nil, ErrTextContentEmpty
	}
	if in.HTMLContent == "" {
		return nil, ErrHTMLContentEmpty
	}
	key, err := domain.ParseIdempotencyKey(in.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	admitted, saved, err := repo.ReserveIdempotency(ctx, tx, userID, key.String(), now, s.ReservationTTL)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !admitted {
		// Duplicate request: no new work, serve the saved outcome.
		tx.Rollback()
		log.Info().
			Str("user_id", userID).
			Str("idempotency_key", key.String()).
			Msg("duplicate publish request, replaying saved response")
		return &PublishResult{Replayed: true, Envelope: saved.Envelope()}, nil
	}

	issue, err := repo.CreateIssue(ctx, tx, in.Title, in.TextContent, in.HTMLContent)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	span.SetAttributes(attribute.String("issue.id", issue.ID))

	enqueued, skipped, err := repo.EnqueueDeliveryTasks(ctx, tx, issue.ID, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, serr := range skipped {
		log.Warn().
			Err(serr).
			Str("issue_id", issue.ID).
			Msg("skipping a confirmed subscriber, their stored contact details are invalid")
	}

	env, err := acceptedEnvelope(issue.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := repo.SaveIdempotencyResponse(ctx, tx, userID, key.String(), env); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("issue_id", issue.ID).
		Int("enqueued", enqueued).
		Int("skipped", len(skipped)).
		Msg("newsletter issue accepted for delivery")

	return &PublishResult{
		IssueID:  issue.ID,
		Enqueued: enqueued,
		Envelope: env,
	}, nil
}

// acceptedEnvelope builds the response envelope stored for replay. The body
// bytes are produced exactly once, so the fresh response and every replay are
// byte-identical.
func acceptedEnvelope(issueID string) (domain.ResponseEnvelope, error) {
	body, err := json.Marshal(acceptedBody{
		Status:  "accepted",
		Message: publishedMessage,
		IssueID: issueID,
	})
	if err != nil {
		return domain.ResponseEnvelope{}, err
	}
	return domain.ResponseEnvelope{
		StatusCode: 202,
		Headers: domain.ResponseHeaders{
			{Name: "Content-Type", Value: "application/json; charset=utf-8"},
		},
		Body: body,
	}, nil
}

// Newsletter HTTP handlers.
//
// This file exposes the admin REST endpoints for newsletter issues:
//   - POST /admin/newsletters              (idempotent publish)
//   - GET  /admin/newsletters              (list, paginated)
//   - GET  /admin/newsletters/{id}          (fetch one issue)
//   - GET  /admin/newsletters/{id}/delivery (delivery progress)
//   - GET  /admin/stats                     (aggregate counters)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The publish handler never builds
// its own success body; it always writes the envelope produced (or replayed)
// by the publish pipeline, so duplicates are byte-identical to the original.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-newsletter-backend/internal/domain"
	"github.com/tbourn/go-newsletter-backend/internal/repo"
	"github.com/tbourn/go-newsletter-backend/internal/services"
	"github.com/tbourn/go-newsletter-backend/internal/sysutil"
	"github.com/tbourn/go-newsletter-backend/internal/utils"
)

// headerIdempotencyKey is the alternative carrier for the idempotency key.
// The JSON body field takes precedence when both are present.
const headerIdempotencyKey = "Idempotency-Key"

//
// Service contracts (context-aware)
//

// PublishService defines the idempotent publish operation consumed by HTTP
// handlers.
//
// Implementations must be safe for concurrent use and must honor the provided
// context for cancellation and timeouts.
type PublishService interface {
	// Publish runs one logical publish attempt for userID and returns the
	// response envelope to serve, fresh or replayed.
	Publish(ctx context.Context, userID string, in services.PublishInput) (*services.PublishResult, error)
}

// NewsletterService defines the read operations over issues and delivery
// consumed by HTTP handlers.
type NewsletterService interface {
	// ListPage returns a page of published issues and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.NewsletterIssue, int64, error)
	// Get fetches one issue by ID.
	Get(ctx context.Context, issueID string) (*domain.NewsletterIssue, error)
	// Delivery reports outbox progress for one issue.
	Delivery(ctx context.Context, issueID string) (*services.DeliveryStatus, error)
	// Stats returns aggregate counters.
	Stats(ctx context.Context) (*services.Stats, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for newsletter publishing and inspection.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	publishSvc PublishService
	newsSvc    NewsletterService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(publishSvc PublishService, newsSvc NewsletterService) *Handlers {
	return &Handlers{publishSvc: publishSvc, newsSvc: newsSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// PublishNewsletterRequest is the JSON payload for publishing an issue.
type PublishNewsletterRequest struct {
	// Title is the subject line of the issue.
	Title string `json:"title" example:"October product update"`
	// TextContent is the plain-text body sent to subscribers.
	TextContent string `json:"text_content" example:"Hello from the team..."`
	// HTMLContent is the HTML body sent to subscribers.
	HTMLContent string `json:"html_content" example:"<p>Hello from the team...</p>"`
	// IdempotencyKey deduplicates retries of the same publish (1-50 chars).
	// May alternatively be supplied via the Idempotency-Key header.
	IdempotencyKey string `json:"idempotency_key" example:"b1946ac92492d234"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListNewslettersResponse wraps a page of issues and pagination information.
type ListNewslettersResponse struct {
	Newsletters []domain.NewsletterIssue `json:"newsletters"`
	Pagination  Pagination               `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// isValidationErr reports whether err is a client-side input error whose text
// is safe to return verbatim.
func isValidationErr(err error) bool {
	return errors.Is(err, services.ErrTitleEmpty) ||
		errors.Is(err, services.ErrTextContentEmpty) ||
		errors.Is(err, services.ErrHTMLContentEmpty) ||
		errors.Is(err, domain.ErrIdempotencyKeyEmpty) ||
		errors.Is(err, domain.ErrIdempotencyKeyTooLong)
}

//
// Handlers
//

// PublishNewsletter godoc
// @ID          publishNewsletter
// @Summary     Publish a newsletter issue
// @Description Creates the issue and enqueues delivery to every confirmed subscriber. Retries with the same idempotency key replay the original response without publishing twice.
// @Tags        Newsletters
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(admin)
// @Param       Idempotency-Key  header  string  false "Idempotency key (alternative to body field)"
// @Param       body             body    handlers.PublishNewsletterRequest  true  "Publish payload"
//
// @Success     202  {object}  map[string]any "Accepted for delivery"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     409  {object}  handlers.ErrorResponse  "Key reserved by an in-flight publish"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/newsletters [post]
func (h *Handlers) PublishNewsletter(c *gin.Context) {
	var req PublishNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	in := services.PublishInput{
		Title:       req.Title,
		TextContent: req.TextContent,
		HTMLContent: req.HTMLContent,
		IdempotencyKey: sysutil.FirstNonEmpty(
			req.IdempotencyKey,
			c.GetHeader(headerIdempotencyKey),
		),
	}

	res, err := h.publishSvc.Publish(c.Request.Context(), userID(c), in)
	if err != nil {
		switch {
		case isValidationErr(err):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, repo.ErrReservationHeld):
			fail(c, http.StatusConflict, ErrCodeConflict,
				"a publish with this idempotency key is already in progress")
		default:
			fail(c, http.StatusInternalServerError, ErrCodePublishFailed,
				"could not publish the newsletter issue")
		}
		return
	}

	writeEnvelope(c, res.Envelope)
}

// ListNewsletters godoc
// @ID          listNewsletters
// @Summary     List published issues (paginated)
// @Description Returns a page of published newsletter issues, most recent first.
// @Tags        Newsletters
// @Produce     json
//
// @Param       page       query   int  false "Page number"    minimum(1) default(1)
// @Param       page_size  query   int  false "Items per page" minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListNewslettersResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/newsletters [get]
func (h *Handlers) ListNewsletters(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.newsSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListNewslettersResponse{
		Newsletters: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetNewsletter godoc
// @ID          getNewsletter
// @Summary     Fetch a published issue
// @Tags        Newsletters
// @Produce     json
//
// @Param       id  path  string  true  "Issue ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.NewsletterIssue
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Issue not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/newsletters/{id} [get]
func (h *Handlers) GetNewsletter(c *gin.Context) {
	issueID := c.Param("id")
	if _, err := uuid.Parse(issueID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "issue id must be a UUID")
		return
	}

	issue, err := h.newsSvc.Get(c.Request.Context(), issueID)
	if err != nil {
		if errors.Is(err, services.ErrIssueNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "newsletter issue not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, issue)
}

// GetDeliveryStatus godoc
// @ID          getDeliveryStatus
// @Summary     Delivery progress for an issue
// @Description Reports pending and dead-lettered deliveries; done=true once the outbox holds no tasks for the issue.
// @Tags        Newsletters
// @Produce     json
//
// @Param       id  path  string  true  "Issue ID (UUID)"  format(uuid)
//
// @Success     200  {object} services.DeliveryStatus
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Issue not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/newsletters/{id}/delivery [get]
func (h *Handlers) GetDeliveryStatus(c *gin.Context) {
	issueID := c.Param("id")
	if _, err := uuid.Parse(issueID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "issue id must be a UUID")
		return
	}

	status, err := h.newsSvc.Delivery(c.Request.Context(), issueID)
	if err != nil {
		if errors.Is(err, services.ErrIssueNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "newsletter issue not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, status)
}

// GetStats godoc
// @ID          getStats
// @Summary     Aggregate newsletter counters
// @Tags        Stats
// @Produce     json
//
// @Success     200  {object} services.Stats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /admin/stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.newsSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}

// Package http provides HTTP handlers for operating the outbox ledger.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/orders/internal/httputil"
	"github.com/allisson/orders/internal/outbox/domain"
	"github.com/allisson/orders/internal/outbox/http/dto"
	"github.com/allisson/orders/internal/outbox/usecase"
)

// OutboxHandler handles the operator endpoints of the outbox.
type OutboxHandler struct {
	queryUseCase usecase.OutboxQueryUseCase
	reconciler   usecase.Reconciler
	logger       *slog.Logger
}

// NewOutboxHandler creates a new outbox handler with required dependencies.
func NewOutboxHandler(
	queryUseCase usecase.OutboxQueryUseCase,
	reconciler usecase.Reconciler,
	logger *slog.Logger,
) *OutboxHandler {
	return &OutboxHandler{
		queryUseCase: queryUseCase,
		reconciler:   reconciler,
		logger:       logger,
	}
}

// ListHandler lists outbox events.
// GET /v1/outbox/events?status=FAILED&aggregate_id=order_1&limit=50
// Status defaults to PENDING unless aggregate_id is given.
func (h *OutboxHandler) ListHandler(c *gin.Context) {
	limit, err := httputil.ParseLimit(c, usecase.DefaultListLimit, usecase.MaxListLimit)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	input := usecase.ListOutboxEventsInput{
		AggregateID: c.Query("aggregate_id"),
		Limit:       limit,
	}
	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseOutboxEventStatus(raw)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		input.Status = status
	}

	events, err := h.queryUseCase.List(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutboxEventsToListResponse(events))
}

// GetHandler retrieves an outbox event by ID.
// GET /v1/outbox/events/:id
func (h *OutboxHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseEventID(c)
	if !ok {
		return
	}

	event, err := h.queryUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapOutboxEventToResponse(event))
}

// RetryHandler moves a FAILED event back to PENDING.
// POST /v1/outbox/events/:id/retry - Returns 409 Conflict when the event is not FAILED.
func (h *OutboxHandler) RetryHandler(c *gin.Context) {
	id, ok := h.parseEventID(c)
	if !ok {
		return
	}

	event, err := h.queryUseCase.Retry(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("outbox event requeued manually", slog.String("event_id", event.ID.String()))

	c.JSON(http.StatusOK, dto.MapOutboxEventToResponse(event))
}

// ReconcileHandler runs one reconcile pass over FAILED events.
// POST /v1/outbox/reconcile
func (h *OutboxHandler) ReconcileHandler(c *gin.Context) {
	requeued, err := h.reconciler.ReconcileFailed(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ReconcileResponse{Requeued: requeued})
}

// StatsHandler returns the number of events per status.
// GET /v1/outbox/stats
func (h *OutboxHandler) StatsHandler(c *gin.Context) {
	stats, err := h.queryUseCase.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToResponse(stats))
}

func (h *OutboxHandler) parseEventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c,
			errors.New("invalid outbox event ID format: must be a valid UUID"),
			h.logger)
		return uuid.Nil, false
	}
	return id, true
}

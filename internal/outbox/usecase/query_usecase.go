package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// ErrInvalidLimit indicates a list limit outside 1..MaxListLimit.
var ErrInvalidLimit = apperrors.Wrap(apperrors.ErrInvalidInput, "limit must be between 1 and 1000")

type outboxQueryUseCase struct {
	txManager database.TxManager
	repo      OutboxEventRepository
}

// NewOutboxQueryUseCase creates the operator facing outbox queries.
func NewOutboxQueryUseCase(txManager database.TxManager, repo OutboxEventRepository) OutboxQueryUseCase {
	return &outboxQueryUseCase{
		txManager: txManager,
		repo:      repo,
	}
}

// List returns events by status, oldest first. With an AggregateID it returns that aggregate's events,
// filtered by Status only when one was given.
func (q *outboxQueryUseCase) List(ctx context.Context, input ListOutboxEventsInput) ([]*domain.OutboxEvent, error) {
	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, ErrInvalidLimit
	}

	if input.Status != "" && !input.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}

	aggregateID := strings.TrimSpace(input.AggregateID)
	if aggregateID == "" {
		status := input.Status
		if status == "" {
			status = domain.OutboxEventStatusPending
		}
		return q.repo.FindByStatus(ctx, nil, status, limit)
	}

	events, err := q.repo.FindByAggregateID(ctx, nil, aggregateID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*domain.OutboxEvent, 0, len(events))
	for _, event := range events {
		if input.Status != "" && event.Status != input.Status {
			continue
		}
		filtered = append(filtered, event)
		if len(filtered) == limit {
			break
		}
	}
	return filtered, nil
}

// Get returns one event.
func (q *outboxQueryUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	return q.repo.FindByID(ctx, nil, id)
}

// Retry requeues a FAILED event regardless of its retry budget. RetryCount is kept, so an event past the
// budget that fails again is abandoned again.
func (q *outboxQueryUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	return database.WithTxResult(ctx, q.txManager, func(ctx context.Context, tx database.Tx) (*domain.OutboxEvent, error) {
		event, err := q.repo.FindByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		if err := event.Retry(); err != nil {
			return nil, err
		}

		if err := q.repo.Update(ctx, tx, event); err != nil {
			return nil, err
		}
		return event, nil
	})
}

// Stats returns the number of events per status.
func (q *outboxQueryUseCase) Stats(ctx context.Context) (map[domain.OutboxEventStatus]int64, error) {
	return q.repo.CountByStatus(ctx, nil)
}

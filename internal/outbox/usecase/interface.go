// Package usecase drains the outbox ledger to the message bus and exposes operator queries over it.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/outbox/domain"
)

// OutboxEventRepository is the part of the outbox ledger used by the dispatcher and the queries.
type OutboxEventRepository interface {
	FindPending(ctx context.Context, tx database.Tx, limit int) ([]*domain.OutboxEvent, error)
	FindByStatus(
		ctx context.Context,
		tx database.Tx,
		status domain.OutboxEventStatus,
		limit int,
	) ([]*domain.OutboxEvent, error)
	FindRetryable(ctx context.Context, tx database.Tx, maxRetries int, limit int) ([]*domain.OutboxEvent, error)
	FindByID(ctx context.Context, tx database.Tx, id uuid.UUID) (*domain.OutboxEvent, error)
	FindByAggregateID(ctx context.Context, tx database.Tx, aggregateID string) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error
	CountByStatus(ctx context.Context, tx database.Tx) (map[domain.OutboxEventStatus]int64, error)
}

// ListOutboxEventsInput filters List. A zero Status means PENDING and a zero Limit means DefaultListLimit.
type ListOutboxEventsInput struct {
	Status      domain.OutboxEventStatus
	AggregateID string
	Limit       int
}

// OutboxQueryUseCase lets operators inspect and requeue ledger rows.
type OutboxQueryUseCase interface {
	List(ctx context.Context, input ListOutboxEventsInput) ([]*domain.OutboxEvent, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	Retry(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error)
	Stats(ctx context.Context) (map[domain.OutboxEventStatus]int64, error)
}

// Reconciler requeues FAILED events that are still under the retry budget.
type Reconciler interface {
	ReconcileFailed(ctx context.Context) (int, error)
}

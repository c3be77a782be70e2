package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/metrics"
	"github.com/allisson/orders/internal/outbox/domain"
)

// outboxQueryUseCaseWithMetrics decorates OutboxQueryUseCase with metrics instrumentation.
type outboxQueryUseCaseWithMetrics struct {
	next    OutboxQueryUseCase
	metrics metrics.BusinessMetrics
}

// NewOutboxQueryUseCaseWithMetrics wraps an OutboxQueryUseCase with metrics recording.
func NewOutboxQueryUseCaseWithMetrics(useCase OutboxQueryUseCase, m metrics.BusinessMetrics) OutboxQueryUseCase {
	return &outboxQueryUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (o *outboxQueryUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.OperationStatus(err)
	o.metrics.RecordOperation(ctx, "outbox", operation, status)
	o.metrics.RecordDuration(ctx, "outbox", operation, time.Since(start), status)
}

// List records metrics for outbox listing.
func (o *outboxQueryUseCaseWithMetrics) List(
	ctx context.Context,
	input ListOutboxEventsInput,
) ([]*domain.OutboxEvent, error) {
	start := time.Now()
	events, err := o.next.List(ctx, input)
	o.record(ctx, "outbox_list", start, err)
	return events, err
}

// Get records metrics for outbox event lookup.
func (o *outboxQueryUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	start := time.Now()
	event, err := o.next.Get(ctx, id)
	o.record(ctx, "outbox_get", start, err)
	return event, err
}

// Retry records metrics for manual requeue.
func (o *outboxQueryUseCaseWithMetrics) Retry(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	start := time.Now()
	event, err := o.next.Retry(ctx, id)
	o.record(ctx, "outbox_retry", start, err)
	return event, err
}

// Stats records metrics for ledger statistics.
func (o *outboxQueryUseCaseWithMetrics) Stats(ctx context.Context) (map[domain.OutboxEventStatus]int64, error) {
	start := time.Now()
	stats, err := o.next.Stats(ctx)
	o.record(ctx, "outbox_stats", start, err)
	return stats, err
}

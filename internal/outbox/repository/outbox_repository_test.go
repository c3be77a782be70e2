package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

type outboxRepository interface {
	Save(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error
	FindByID(ctx context.Context, tx database.Tx, id uuid.UUID) (*domain.OutboxEvent, error)
	FindPending(ctx context.Context, tx database.Tx, limit int) ([]*domain.OutboxEvent, error)
	FindByStatus(
		ctx context.Context,
		tx database.Tx,
		status domain.OutboxEventStatus,
		limit int,
	) ([]*domain.OutboxEvent, error)
	FindRetryable(ctx context.Context, tx database.Tx, maxRetries int, limit int) ([]*domain.OutboxEvent, error)
	FindByAggregateID(ctx context.Context, tx database.Tx, aggregateID string) ([]*domain.OutboxEvent, error)
	Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error
	Delete(ctx context.Context, tx database.Tx, id uuid.UUID) error
	MarkAsProcessed(ctx context.Context, tx database.Tx, id uuid.UUID) error
	MarkAsFailed(ctx context.Context, tx database.Tx, id uuid.UUID, reason string) error
	CountByStatus(ctx context.Context, tx database.Tx) (map[domain.OutboxEventStatus]int64, error)
}

// newTestEvent creates a PENDING event whose created_at is offset from base.
func newTestEvent(t *testing.T, aggregateID string, base time.Time, offset time.Duration) *domain.OutboxEvent {
	t.Helper()

	event, err := domain.NewOutboxEventFromPayload(
		aggregateID,
		domain.EventTypeOrderCreated,
		map[string]any{"orderId": aggregateID, "totalAmount": "75.48"},
	)
	require.NoError(t, err)
	event.CreatedAt = base.Add(offset).Truncate(time.Millisecond)
	event.UpdatedAt = event.CreatedAt
	return event
}

func ids(events []*domain.OutboxEvent) []uuid.UUID {
	result := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		result = append(result, event.ID)
	}
	return result
}

// runOutboxRepositoryTests exercises a repository against a live database that is empty on entry.
// Subtests share the database, so each one uses its own aggregate id or cleans up after itself.
func runOutboxRepositoryTests(t *testing.T, repo outboxRepository, txManager database.TxManager) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	t.Run("SaveAndFindByID", func(t *testing.T) {
		// key order and spacing have to survive storage
		payload := json.RawMessage(`{"orderId": "order_save",  "totalAmount":"75.48", "items":[{"quantity":2}]}`)
		event, err := domain.NewOutboxEvent("order_save", domain.EventTypeOrderCreated, payload)
		require.NoError(t, err)

		require.NoError(t, repo.Save(ctx, nil, event))

		found, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		assert.Equal(t, event.ID, found.ID)
		assert.Equal(t, event.AggregateID, found.AggregateID)
		assert.Equal(t, event.EventType, found.EventType)
		assert.Equal(t, string(payload), string(found.Payload))
		assert.Equal(t, domain.OutboxEventStatusPending, found.Status)
		assert.Equal(t, 0, found.RetryCount)
		assert.Nil(t, found.FailureReason)
		assert.Nil(t, found.ProcessedAt)
		assert.Equal(t, event.CreatedAt, found.CreatedAt)
		assert.Equal(t, event.UpdatedAt, found.UpdatedAt)

		require.NoError(t, event.MarkAsProcessed())
		require.NoError(t, repo.Update(ctx, nil, event))

		processed, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		require.NotNil(t, processed.ProcessedAt)
		assert.Equal(t, *event.ProcessedAt, *processed.ProcessedAt)
		assert.Equal(t, event.UpdatedAt, processed.UpdatedAt)
		assert.Equal(t, string(payload), string(processed.Payload))

		require.NoError(t, repo.Delete(ctx, nil, event.ID))
	})

	t.Run("FindByIDNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, nil, uuid.Must(uuid.NewV7()))

		assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("FindPendingOrderAndLimit", func(t *testing.T) {
		third := newTestEvent(t, "order_pending", base, 3*time.Second)
		first := newTestEvent(t, "order_pending", base, time.Second)
		second := newTestEvent(t, "order_pending", base, 2*time.Second)
		processed := newTestEvent(t, "order_pending", base, 0)

		for _, event := range []*domain.OutboxEvent{third, first, second, processed} {
			require.NoError(t, repo.Save(ctx, nil, event))
		}
		require.NoError(t, repo.MarkAsProcessed(ctx, nil, processed.ID))

		pending, err := repo.FindPending(ctx, nil, 2)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID}, ids(pending))

		all, err := repo.FindPending(ctx, nil, 10)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, ids(all))

		byAggregate, err := repo.FindByAggregateID(ctx, nil, "order_pending")
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{processed.ID, first.ID, second.ID, third.ID}, ids(byAggregate))

		for _, event := range byAggregate {
			require.NoError(t, repo.Delete(ctx, nil, event.ID))
		}
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		event := newTestEvent(t, "order_processed", base, 0)
		require.NoError(t, repo.Save(ctx, nil, event))

		require.NoError(t, repo.MarkAsProcessed(ctx, nil, event.ID))

		found, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutboxEventStatusProcessed, found.Status)
		require.NotNil(t, found.ProcessedAt)
		assert.Nil(t, found.FailureReason)

		assert.ErrorIs(t, repo.MarkAsProcessed(ctx, nil, uuid.Must(uuid.NewV7())), domain.ErrOutboxEventNotFound)
		require.NoError(t, repo.Delete(ctx, nil, event.ID))
	})

	t.Run("MarkAsFailedIncrementsRetryCount", func(t *testing.T) {
		event := newTestEvent(t, "order_failed", base, 0)
		require.NoError(t, repo.Save(ctx, nil, event))

		require.NoError(t, repo.MarkAsFailed(ctx, nil, event.ID, "broker down"))
		require.NoError(t, repo.MarkAsFailed(ctx, nil, event.ID, "broker still down"))

		found, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutboxEventStatusFailed, found.Status)
		assert.Equal(t, 2, found.RetryCount)
		require.NotNil(t, found.FailureReason)
		assert.Equal(t, "broker still down", *found.FailureReason)

		failed, err := repo.FindByStatus(ctx, nil, domain.OutboxEventStatusFailed, 10)
		require.NoError(t, err)
		assert.Contains(t, ids(failed), event.ID)

		assert.ErrorIs(t, repo.MarkAsFailed(ctx, nil, uuid.Must(uuid.NewV7()), "x"), domain.ErrOutboxEventNotFound)
		require.NoError(t, repo.Delete(ctx, nil, event.ID))
	})

	t.Run("FindRetryableSkipsSpentAndUnknownEvents", func(t *testing.T) {
		var saved []*domain.OutboxEvent
		for i := range 3 {
			spent := newTestEvent(t, "order_retryable", base, time.Duration(i)*time.Second)
			spent.RetryCount = 3
			require.NoError(t, spent.MarkAsFailed("Max retries exceeded: timeout"))
			saved = append(saved, spent)
		}
		unknown := newTestEvent(t, "order_retryable", base, 3*time.Second)
		unknown.EventType = "InventoryReserved"
		require.NoError(t, unknown.MarkAsFailed("Unknown event type: InventoryReserved"))
		retryable := newTestEvent(t, "order_retryable", base, 4*time.Second)
		require.NoError(t, retryable.MarkAsFailed("Processing failed: timeout"))
		pending := newTestEvent(t, "order_retryable", base, 5*time.Second)
		saved = append(saved, unknown, retryable, pending)

		for _, event := range saved {
			require.NoError(t, repo.Save(ctx, nil, event))
		}

		found, err := repo.FindRetryable(ctx, nil, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{retryable.ID}, ids(found))

		none, err := repo.FindRetryable(ctx, nil, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, none)

		for _, event := range saved {
			require.NoError(t, repo.Delete(ctx, nil, event.ID))
		}
	})

	t.Run("UpdateRetry", func(t *testing.T) {
		event := newTestEvent(t, "order_retry", base, 0)
		require.NoError(t, repo.Save(ctx, nil, event))
		require.NoError(t, event.MarkAsFailed("timeout"))
		require.NoError(t, repo.Update(ctx, nil, event))

		require.NoError(t, event.Retry())
		require.NoError(t, repo.Update(ctx, nil, event))

		found, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutboxEventStatusPending, found.Status)
		assert.Equal(t, 1, found.RetryCount)
		assert.Nil(t, found.FailureReason)

		// unchanged values still count as a match
		assert.NoError(t, repo.Update(ctx, nil, event))

		missing := newTestEvent(t, "order_retry", base, 0)
		assert.ErrorIs(t, repo.Update(ctx, nil, missing), domain.ErrOutboxEventNotFound)
		require.NoError(t, repo.Delete(ctx, nil, event.ID))
	})

	t.Run("CountByStatus", func(t *testing.T) {
		pending := newTestEvent(t, "order_count", base, 0)
		failed := newTestEvent(t, "order_count", base, time.Second)
		for _, event := range []*domain.OutboxEvent{pending, failed} {
			require.NoError(t, repo.Save(ctx, nil, event))
		}
		require.NoError(t, repo.MarkAsFailed(ctx, nil, failed.ID, "nope"))

		counts, err := repo.CountByStatus(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, map[domain.OutboxEventStatus]int64{
			domain.OutboxEventStatusPending:   1,
			domain.OutboxEventStatusProcessed: 0,
			domain.OutboxEventStatusFailed:    1,
		}, counts)

		require.NoError(t, repo.Delete(ctx, nil, pending.ID))
		require.NoError(t, repo.Delete(ctx, nil, failed.ID))
		assert.ErrorIs(t, repo.Delete(ctx, nil, failed.ID), domain.ErrOutboxEventNotFound)
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		event := newTestEvent(t, "order_tx", base, 0)

		err := txManager.WithTx(ctx, func(ctx context.Context, tx database.Tx) error {
			if err := repo.Save(ctx, tx, event); err != nil {
				return err
			}
			pending, err := repo.FindPending(ctx, tx, 10)
			if err != nil {
				return err
			}
			assert.Contains(t, ids(pending), event.ID)
			return apperrors.ErrConflict
		})
		require.ErrorIs(t, err, apperrors.ErrConflict)

		_, err = repo.FindByID(ctx, nil, event.ID)
		assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
	})

	t.Run("ArrayPayload", func(t *testing.T) {
		event, err := domain.NewOutboxEvent("order_array", domain.EventTypeOrderShipped, json.RawMessage(`[1,2,3]`))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, nil, event))

		found, err := repo.FindByID(ctx, nil, event.ID)
		require.NoError(t, err)
		assert.Equal(t, `[1,2,3]`, string(found.Payload))
		require.NoError(t, repo.Delete(ctx, nil, event.ID))
	})
}

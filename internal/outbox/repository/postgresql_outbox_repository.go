// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

const outboxColumns = `id, aggregate_id, event_type, payload, status, retry_count, failure_reason, processed_at, created_at, updated_at`

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

// Save inserts a new outbox event
func (r *PostgreSQLOutboxEventRepository) Save(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	querier := database.SQLQuerier(tx, r.db)

	query := `INSERT INTO outbox_events (` + outboxColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querier.ExecContext(ctx, query, event.ID, event.AggregateID, string(event.EventType),
		[]byte(event.Payload), string(event.Status), event.RetryCount, event.FailureReason, event.ProcessedAt,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// FindByID retrieves an event by id
func (r *PostgreSQLOutboxEventRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
) (*domain.OutboxEvent, error) {
	querier := database.SQLQuerier(tx, r.db)

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = $1`

	event, err := scanPostgresEvent(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOutboxEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get outbox event by id")
	}
	return event, nil
}

// FindPending retrieves up to limit PENDING events, oldest first.
// Inside a transaction the rows are locked and rows locked by other transactions are skipped.
func (r *PostgreSQLOutboxEventRepository) FindPending(
	ctx context.Context,
	tx database.Tx,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2`
	if tx != nil {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	return r.query(ctx, tx, query, string(domain.OutboxEventStatusPending), limit)
}

// FindByStatus retrieves up to limit events with the given status, oldest first.
func (r *PostgreSQLOutboxEventRepository) FindByStatus(
	ctx context.Context,
	tx database.Tx,
	status domain.OutboxEventStatus,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = $1
			  ORDER BY created_at ASC, id ASC
			  LIMIT $2`

	return r.query(ctx, tx, query, string(status), limit)
}

// FindRetryable retrieves up to limit FAILED events of a known type whose retry_count is below
// maxRetries, oldest first.
func (r *PostgreSQLOutboxEventRepository) FindRetryable(
	ctx context.Context,
	tx database.Tx,
	maxRetries int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query, args := retryableQuery(func(n int) string { return fmt.Sprintf("$%d", n) }, maxRetries, limit)
	return r.query(ctx, tx, query, args...)
}

// FindByAggregateID retrieves every event of an aggregate, oldest first.
func (r *PostgreSQLOutboxEventRepository) FindByAggregateID(
	ctx context.Context,
	tx database.Tx,
	aggregateID string,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE aggregate_id = $1
			  ORDER BY created_at ASC, id ASC`

	return r.query(ctx, tx, query, aggregateID)
}

// Update updates an outbox event
func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	querier := database.SQLQuerier(tx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, retry_count = $2, failure_reason = $3, processed_at = $4, updated_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(ctx, query, string(event.Status), event.RetryCount, event.FailureReason,
		event.ProcessedAt, event.UpdatedAt, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	return requireAffected(result)
}

// Delete removes an outbox event
func (r *PostgreSQLOutboxEventRepository) Delete(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	querier := database.SQLQuerier(tx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete outbox event")
	}
	return requireAffected(result)
}

// MarkAsProcessed sets PROCESSED without loading the event.
func (r *PostgreSQLOutboxEventRepository) MarkAsProcessed(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	querier := database.SQLQuerier(tx, r.db)
	now := domain.Now()

	query := `UPDATE outbox_events
			  SET status = $1, processed_at = $2, failure_reason = NULL, updated_at = $2
			  WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, string(domain.OutboxEventStatusProcessed), now, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event as processed")
	}
	return requireAffected(result)
}

// MarkAsFailed sets FAILED and increments retry_count without loading the event.
func (r *PostgreSQLOutboxEventRepository) MarkAsFailed(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
	reason string,
) error {
	querier := database.SQLQuerier(tx, r.db)

	query := `UPDATE outbox_events
			  SET status = $1, failure_reason = $2, retry_count = retry_count + 1, updated_at = $3
			  WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, string(domain.OutboxEventStatusFailed), reason,
		domain.Now(), id)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event as failed")
	}
	return requireAffected(result)
}

// CountByStatus returns the number of events per status. Every status is present in the result.
func (r *PostgreSQLOutboxEventRepository) CountByStatus(
	ctx context.Context,
	tx database.Tx,
) (map[domain.OutboxEventStatus]int64, error) {
	return countByStatus(ctx, database.SQLQuerier(tx, r.db))
}

func (r *PostgreSQLOutboxEventRepository) query(
	ctx context.Context,
	tx database.Tx,
	query string,
	args ...any,
) ([]*domain.OutboxEvent, error) {
	querier := database.SQLQuerier(tx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		event, err := scanPostgresEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox events")
	}
	return events, nil
}

func scanPostgresEvent(row rowScanner) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	if err := scanEvent(row, &event.ID, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

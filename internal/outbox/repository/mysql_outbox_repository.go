package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL.
// Ids are stored as BINARY(16).
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

// Save inserts a new outbox event
func (m *MySQLOutboxEventRepository) Save(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	query := `INSERT INTO outbox_events (` + outboxColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, idBytes, event.AggregateID, string(event.EventType),
		[]byte(event.Payload), string(event.Status), event.RetryCount, event.FailureReason, event.ProcessedAt,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create outbox event")
	}
	return nil
}

// FindByID retrieves an event by id
func (m *MySQLOutboxEventRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
) (*domain.OutboxEvent, error) {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = ?`

	event, err := scanMySQLEvent(querier.QueryRowContext(ctx, query, idBytes))
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
func (m *MySQLOutboxEventRepository) FindPending(
	ctx context.Context,
	tx database.Tx,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`
	if tx != nil {
		query += ` FOR UPDATE SKIP LOCKED`
	}

	return m.query(ctx, tx, query, string(domain.OutboxEventStatusPending), limit)
}

// FindByStatus retrieves up to limit events with the given status, oldest first.
func (m *MySQLOutboxEventRepository) FindByStatus(
	ctx context.Context,
	tx database.Tx,
	status domain.OutboxEventStatus,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = ?
			  ORDER BY created_at ASC, id ASC
			  LIMIT ?`

	return m.query(ctx, tx, query, string(status), limit)
}

// FindRetryable retrieves up to limit FAILED events of a known type whose retry_count is below
// maxRetries, oldest first.
func (m *MySQLOutboxEventRepository) FindRetryable(
	ctx context.Context,
	tx database.Tx,
	maxRetries int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	query, args := retryableQuery(func(int) string { return "?" }, maxRetries, limit)
	return m.query(ctx, tx, query, args...)
}

// FindByAggregateID retrieves every event of an aggregate, oldest first.
func (m *MySQLOutboxEventRepository) FindByAggregateID(
	ctx context.Context,
	tx database.Tx,
	aggregateID string,
) ([]*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE aggregate_id = ?
			  ORDER BY created_at ASC, id ASC`

	return m.query(ctx, tx, query, aggregateID)
}

// Update updates an outbox event
func (m *MySQLOutboxEventRepository) Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	query := `UPDATE outbox_events
			  SET status = ?, retry_count = ?, failure_reason = ?, processed_at = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(event.Status), event.RetryCount, event.FailureReason,
		event.ProcessedAt, event.UpdatedAt, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to update outbox event")
	}
	return m.requireAffected(ctx, querier, result, idBytes)
}

// Delete removes an outbox event
func (m *MySQLOutboxEventRepository) Delete(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_events WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete outbox event")
	}
	return requireAffected(result)
}

// MarkAsProcessed sets PROCESSED without loading the event.
func (m *MySQLOutboxEventRepository) MarkAsProcessed(ctx context.Context, tx database.Tx, id uuid.UUID) error {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	now := domain.Now()
	query := `UPDATE outbox_events
			  SET status = ?, processed_at = ?, failure_reason = NULL, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(domain.OutboxEventStatusProcessed), now, now, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event as processed")
	}
	return m.requireAffected(ctx, querier, result, idBytes)
}

// MarkAsFailed sets FAILED and increments retry_count without loading the event.
func (m *MySQLOutboxEventRepository) MarkAsFailed(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
	reason string,
) error {
	querier := database.SQLQuerier(tx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal outbox event id")
	}

	query := `UPDATE outbox_events
			  SET status = ?, failure_reason = ?, retry_count = retry_count + 1, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, string(domain.OutboxEventStatusFailed), reason,
		domain.Now(), idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to mark outbox event as failed")
	}
	return requireAffected(result)
}

// CountByStatus returns the number of events per status. Every status is present in the result.
func (m *MySQLOutboxEventRepository) CountByStatus(
	ctx context.Context,
	tx database.Tx,
) (map[domain.OutboxEventStatus]int64, error) {
	return countByStatus(ctx, database.SQLQuerier(tx, m.db))
}

// requireAffected treats zero affected rows as not found only when the row is really missing,
// since MySQL does not count rows whose values did not change.
func (m *MySQLOutboxEventRepository) requireAffected(
	ctx context.Context,
	querier database.Querier,
	result sql.Result,
	idBytes []byte,
) error {
	if err := requireAffected(result); err == nil || !errors.Is(err, domain.ErrOutboxEventNotFound) {
		return err
	}

	var one int
	err := querier.QueryRowContext(ctx, `SELECT 1 FROM outbox_events WHERE id = ?`, idBytes).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOutboxEventNotFound
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to check outbox event existence")
	}
	return nil
}

func (m *MySQLOutboxEventRepository) query(
	ctx context.Context,
	tx database.Tx,
	query string,
	args ...any,
) ([]*domain.OutboxEvent, error) {
	querier := database.SQLQuerier(tx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to query outbox events")
	}
	defer rows.Close() //nolint:errcheck

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		event, err := scanMySQLEvent(rows)
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

func scanMySQLEvent(row rowScanner) (*domain.OutboxEvent, error) {
	var (
		event   domain.OutboxEvent
		idBytes []byte
	)
	if err := scanEvent(row, &idBytes, &event); err != nil {
		return nil, err
	}
	if err := event.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}
	return &event, nil
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/outbox/domain"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent scans the outboxColumns into event. id receives the driver specific id column.
func scanEvent(row rowScanner, id any, event *domain.OutboxEvent) error {
	var (
		eventType, status string
		payload           []byte
	)

	err := row.Scan(id, &event.AggregateID, &eventType, &payload, &status, &event.RetryCount,
		&event.FailureReason, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return err
	}

	event.EventType = domain.EventType(eventType)
	event.Status = domain.OutboxEventStatus(status)
	event.Payload = payload
	event.CreatedAt = event.CreatedAt.UTC()
	event.UpdatedAt = event.UpdatedAt.UTC()
	if event.ProcessedAt != nil {
		processedAt := event.ProcessedAt.UTC()
		event.ProcessedAt = &processedAt
	}
	return nil
}

// retryableQuery selects FAILED events of a known type with retry_count below maxRetries, oldest
// first. placeholder renders the n-th bind parameter of the driver.
func retryableQuery(placeholder func(n int) string, maxRetries, limit int) (string, []any) {
	eventTypes := domain.EventTypes()
	args := make([]any, 0, len(eventTypes)+3)
	args = append(args, string(domain.OutboxEventStatusFailed), maxRetries)

	in := make([]string, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		args = append(args, string(eventType))
		in = append(in, placeholder(len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + outboxColumns + `
			  FROM outbox_events
			  WHERE status = ` + placeholder(1) + ` AND retry_count < ` + placeholder(2) + `
			  AND event_type IN (` + strings.Join(in, ", ") + `)
			  ORDER BY created_at ASC, id ASC
			  LIMIT ` + placeholder(len(args))
	return query, args
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}

func countByStatus(ctx context.Context, querier database.Querier) (map[domain.OutboxEventStatus]int64, error) {
	rows, err := querier.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count outbox events")
	}
	defer rows.Close() //nolint:errcheck

	counts := emptyCounts()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan outbox event count")
		}
		counts[domain.OutboxEventStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate outbox event counts")
	}
	return counts, nil
}

func emptyCounts() map[domain.OutboxEventStatus]int64 {
	return map[domain.OutboxEventStatus]int64{
		domain.OutboxEventStatusPending:   0,
		domain.OutboxEventStatusProcessed: 0,
		domain.OutboxEventStatusFailed:    0,
	}
}

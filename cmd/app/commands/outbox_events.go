package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/outbox/domain"
	"github.com/allisson/orders/internal/outbox/http/dto"
	"github.com/allisson/orders/internal/outbox/usecase"
)

// RunListOutboxEvents prints ledger rows by status, or the rows of one aggregate.
//
// Requirements: Database must be migrated and accessible.
func RunListOutboxEvents(
	ctx context.Context,
	queryUseCase usecase.OutboxQueryUseCase,
	logger *slog.Logger,
	writer io.Writer,
	status string,
	aggregateID string,
	limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	input := usecase.ListOutboxEventsInput{
		AggregateID: aggregateID,
		Limit:       limit,
	}
	if status != "" {
		parsed, err := domain.ParseOutboxEventStatus(status)
		if err != nil {
			return fmt.Errorf("invalid status %q: %w", status, err)
		}
		input.Status = parsed
	}

	events, err := queryUseCase.List(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to list outbox events: %w", err)
	}

	logger.Info("outbox events listed",
		slog.String("status", string(input.Status)),
		slog.String("aggregate_id", aggregateID),
		slog.Int("count", len(events)),
	)

	if format == FormatJSON {
		return writeJSON(writer, dto.MapOutboxEventsToListResponse(events))
	}
	return outputEventsText(writer, events)
}

// RunRetryOutboxEvent moves one FAILED event back to PENDING.
func RunRetryOutboxEvent(
	ctx context.Context,
	queryUseCase usecase.OutboxQueryUseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	eventID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}

	event, err := queryUseCase.Retry(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to retry outbox event: %w", err)
	}

	logger.Info("outbox event requeued manually",
		slog.String("event_id", event.ID.String()),
		slog.Int("retry_count", event.RetryCount),
	)

	if format == FormatJSON {
		return writeJSON(writer, dto.MapOutboxEventToResponse(event))
	}
	_, err = fmt.Fprintf(writer, "Event %s requeued (status: %s, retry count: %d)\n",
		event.ID, event.Status, event.RetryCount)
	return err
}

// RunOutboxStats prints the number of ledger rows per status.
func RunOutboxStats(
	ctx context.Context,
	queryUseCase usecase.OutboxQueryUseCase,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stats, err := queryUseCase.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to count outbox events: %w", err)
	}

	response := dto.MapStatsToResponse(stats)
	if format == FormatJSON {
		return writeJSON(writer, response)
	}
	_, err = fmt.Fprintf(writer, "PENDING: %d\nPROCESSED: %d\nFAILED: %d\n",
		response.Pending, response.Processed, response.Failed)
	return err
}

func outputEventsText(writer io.Writer, events []*domain.OutboxEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(writer, "No outbox events found")
		return err
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAGGREGATE\tTYPE\tSTATUS\tRETRIES\tCREATED\tREASON")
	for _, event := range events {
		reason := ""
		if event.FailureReason != nil {
			reason = *event.FailureReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			event.ID,
			event.AggregateID,
			event.EventType,
			event.Status,
			event.RetryCount,
			event.CreatedAt.UTC().Format(time.RFC3339),
			reason,
		)
	}
	return tw.Flush()
}

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/orders/internal/outbox/http/dto"
	"github.com/allisson/orders/internal/outbox/usecase"
)

// RunReconcileOutbox runs a single reconcile pass: FAILED events under the retry budget go back to PENDING.
//
// Requirements: Database must be migrated and accessible.
func RunReconcileOutbox(
	ctx context.Context,
	reconciler usecase.Reconciler,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	requeued, err := reconciler.ReconcileFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile outbox events: %w", err)
	}

	logger.Info("outbox reconcile completed", slog.Int("requeued", requeued))

	if format == FormatJSON {
		return writeJSON(writer, dto.ReconcileResponse{Requeued: requeued})
	}
	_, err = fmt.Fprintf(writer, "Requeued %d failed outbox event(s)\n", requeued)
	return err
}

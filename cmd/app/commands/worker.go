package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DispatcherRunner runs the outbox dispatcher until its context is done.
type DispatcherRunner interface {
	Run(ctx context.Context, shutdownTimeout time.Duration) error
}

// BackgroundServer is a server started next to the dispatcher, such as the metrics server.
type BackgroundServer interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunWorker runs the outbox dispatcher without the HTTP API until SIGINT/SIGTERM. When metricsServer
// is not nil it serves /metrics and /health/outbox for the worker and stops with it.
func RunWorker(
	ctx context.Context,
	dispatcher DispatcherRunner,
	metricsServer BackgroundServer,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting outbox worker")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := dispatcher.Run(gctx, shutdownTimeout); err != nil {
			return fmt.Errorf("outbox worker error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer shutdownCancel()

			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("metrics server shutdown: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("outbox worker stopped")
	return nil
}

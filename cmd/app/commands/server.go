package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/orders/internal/app"
	outboxUsecase "github.com/allisson/orders/internal/outbox/usecase"
)

// RunServer starts the HTTP API, the metrics server and, when OUTBOX_DISPATCHER_ENABLED is set, the
// outbox dispatcher in the same process. It blocks until SIGINT/SIGTERM or until one of them fails,
// then shuts everything down within ShutdownTimeout.
func RunServer(ctx context.Context, container *app.Container, version string) error {
	cfg := container.Config()

	gin.SetMode(cfg.GetGinMode())

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger, cfg.ShutdownTimeout)

	// Get HTTP server from container (this initializes all dependencies)
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var dispatcher *outboxUsecase.Dispatcher
	if cfg.OutboxDispatcherEnabled {
		dispatcher, err = container.Dispatcher()
		if err != nil {
			return fmt.Errorf("failed to initialize outbox dispatcher: %w", err)
		}
	}

	if dispatcher != nil && metricsServer != nil {
		metricsServer.SetDispatcher(dispatcher)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
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
	}

	if dispatcher != nil {
		g.Go(func() error {
			return dispatcher.Run(gctx, cfg.ShutdownTimeout)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}

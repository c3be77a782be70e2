package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orders/cmd/app/commands"
	"github.com/allisson/orders/internal/app"
	"github.com/allisson/orders/internal/config"
	"github.com/allisson/orders/internal/database"
	orderRepository "github.com/allisson/orders/internal/order/repository"
	outboxRepository "github.com/allisson/orders/internal/outbox/repository"
)

// loadContainer loads and validates the configuration and builds the DI container.
func loadContainer() (*app.Container, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.NewContainer(cfg), nil
}

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server, and the outbox dispatcher when OUTBOX_DISPATCHER_ENABLED is set",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				return commands.RunServer(ctx, container, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Run the outbox dispatcher and the metrics server without the HTTP API",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				dispatcher, err := container.Dispatcher()
				if err != nil {
					return err
				}

				metricsServer, err := container.MetricsServer()
				if err != nil {
					return err
				}

				// A nil *MetricsServer must not become a non-nil interface.
				var background commands.BackgroundServer
				if metricsServer != nil {
					metricsServer.SetDispatcher(dispatcher)
					background = metricsServer
				}

				return commands.RunWorker(
					ctx,
					dispatcher,
					background,
					container.Logger(),
					container.Config().ShutdownTimeout,
				)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations (creates indexes for mongodb)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				cfg := container.Config()
				if cfg.DBDriver != database.DriverMongoDB {
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				}

				client, err := container.MongoClient()
				if err != nil {
					return err
				}
				db := client.Database(cfg.MongoDBDatabase)

				return commands.RunMongoIndexes(
					ctx,
					container.Logger(),
					orderRepository.NewMongoDBOrderRepository(db),
					outboxRepository.NewMongoDBOutboxEventRepository(db),
				)
			},
		},
	}
}

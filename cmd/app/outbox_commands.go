package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/orders/cmd/app/commands"
)

func formatFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   commands.FormatText,
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getOutboxCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "reconcile-outbox",
			Usage: "Requeue FAILED outbox events that are still under the retry budget",
			Flags: []cli.Flag{formatFlag()},
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

				return commands.RunReconcileOutbox(
					ctx,
					dispatcher,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-outbox-events",
			Usage: "List outbox events by status or aggregate",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "status",
					Aliases: []string{"s"},
					Usage:   "Event status: PENDING, PROCESSED or FAILED (defaults to PENDING)",
				},
				&cli.StringFlag{
					Name:    "aggregate-id",
					Aliases: []string{"a"},
					Usage:   "Only list the events of this aggregate (e.g., order_42)",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"l"},
					Value:   50,
					Usage:   "Maximum number of events to list (1-1000)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				queryUseCase, err := container.OutboxQueryUseCase()
				if err != nil {
					return err
				}

				return commands.RunListOutboxEvents(
					ctx,
					queryUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("status"),
					cmd.String("aggregate-id"),
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "retry-outbox-event",
			Usage: "Move a FAILED outbox event back to PENDING",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Event ID (UUID)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				queryUseCase, err := container.OutboxQueryUseCase()
				if err != nil {
					return err
				}

				return commands.RunRetryOutboxEvent(
					ctx,
					queryUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "outbox-stats",
			Usage: "Show the number of outbox events per status",
			Flags: []cli.Flag{formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := loadContainer()
				if err != nil {
					return err
				}
				defer func() { _ = container.Shutdown(ctx) }()

				queryUseCase, err := container.OutboxQueryUseCase()
				if err != nil {
					return err
				}

				return commands.RunOutboxStats(ctx, queryUseCase, commands.DefaultIO().Writer, cmd.String("format"))
			},
		},
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/orders/internal/database"
)

// IndexEnsurer is a MongoDB repository that owns its collection indexes.
type IndexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

// RunMigrations applies the pending SQL migrations for the configured driver.
// Returns nil if there is nothing to apply.
func RunMigrations(logger *slog.Logger, dbDriver, dbConnectionString string) error {
	logger.Info("running database migrations",
		slog.String("driver", dbDriver),
	)

	migrationsPath := "file://migrations/postgresql"
	if dbDriver == database.DriverMySQL {
		migrationsPath = "file://migrations/mysql"
	}

	m, err := migrate.New(migrationsPath, migrateURL(dbDriver, dbConnectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

// RunMongoIndexes is the mongodb counterpart of RunMigrations: collections are created lazily,
// so only their indexes need provisioning.
func RunMongoIndexes(ctx context.Context, logger *slog.Logger, ensurers ...IndexEnsurer) error {
	logger.Info("creating mongodb indexes", slog.Int("collections", len(ensurers)))

	for _, ensurer := range ensurers {
		if err := ensurer.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	logger.Info("mongodb indexes created successfully")
	return nil
}

// migrateURL turns a go-sql-driver DSN into the URL form golang-migrate expects.
func migrateURL(dbDriver, dbConnectionString string) string {
	if dbDriver == database.DriverMySQL && !strings.HasPrefix(dbConnectionString, "mysql://") {
		return "mysql://" + dbConnectionString
	}
	return dbConnectionString
}

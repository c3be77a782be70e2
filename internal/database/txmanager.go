package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx is an opaque handle to an open transaction.
// Repositories resolve it through SQLQuerier or MongoContext and treat a nil Tx as "no transaction".
type Tx interface {
	Driver() string
}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager runs a unit of work inside a transaction. Every write made through the handle passed to
// fn commits together or not at all.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// WithTxResult is WithTx for units of work that produce a value.
func WithTxResult[T any](
	ctx context.Context,
	m TxManager,
	fn func(ctx context.Context, tx Tx) (T, error),
) (T, error) {
	var result T
	err := m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		result, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// sqlTx is the Tx handle produced by the SQL manager.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Driver() string { return "sql" }

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager for the given database.
func NewTxManager(db *sql.DB) TxManager {
	return &sqlTxManager{db: db}
}

// WithTx executes fn within a database transaction.
// The transaction is rolled back when fn returns an error or panics; the panic is re-raised.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SQLQuerier returns the *sql.Tx behind tx, or db when tx is nil.
// It panics when tx was produced by a non-SQL manager.
func SQLQuerier(tx Tx, db *sql.DB) Querier {
	if tx == nil {
		return db
	}
	t, ok := tx.(*sqlTx)
	if !ok {
		panic(fmt.Sprintf("database: %s transaction used with a SQL repository", tx.Driver()))
	}
	return t.tx
}

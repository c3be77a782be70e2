package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/order/domain"
)

const postgresOrderColumns = `id, customer_id, items, status, created_at, updated_at`

// PostgreSQLOrderRepository implements Order persistence for PostgreSQL.
type PostgreSQLOrderRepository struct {
	db *sql.DB
}

// NewPostgreSQLOrderRepository creates a new PostgreSQL Order repository instance.
func NewPostgreSQLOrderRepository(db *sql.DB) *PostgreSQLOrderRepository {
	return &PostgreSQLOrderRepository{db: db}
}

// Save inserts a new order.
func (p *PostgreSQLOrderRepository) Save(ctx context.Context, tx database.Tx, order *domain.Order) error {
	querier := database.SQLQuerier(tx, p.db)

	items, err := marshalItems(order.Items)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (id, customer_id, items, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = querier.ExecContext(
		ctx,
		query,
		order.ID.String(),
		order.CustomerID.String(),
		items,
		string(order.Status),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create order")
	}
	return nil
}

// FindByID loads an order. Inside a transaction the row is locked until commit.
func (p *PostgreSQLOrderRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id domain.OrderID,
) (*domain.Order, error) {
	querier := database.SQLQuerier(tx, p.db)

	query := `SELECT ` + postgresOrderColumns + ` FROM orders WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(querier.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get order by id")
	}
	return order, nil
}

// FindByCustomerID lists the orders of a customer, oldest first.
func (p *PostgreSQLOrderRepository) FindByCustomerID(
	ctx context.Context,
	tx database.Tx,
	customerID domain.CustomerID,
) ([]*domain.Order, error) {
	querier := database.SQLQuerier(tx, p.db)

	query := `SELECT ` + postgresOrderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, customerID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders by customer")
	}
	defer rows.Close() //nolint:errcheck

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan order")
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate orders")
	}
	return orders, nil
}

// Update persists the mutable fields of an order.
func (p *PostgreSQLOrderRepository) Update(ctx context.Context, tx database.Tx, order *domain.Order) error {
	querier := database.SQLQuerier(tx, p.db)

	items, err := marshalItems(order.Items)
	if err != nil {
		return err
	}

	query := `UPDATE orders SET items = $1, status = $2, updated_at = $3 WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, items, string(order.Status), order.UpdatedAt, order.ID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}
	return requireAffected(result, domain.ErrOrderNotFound)
}

// Delete removes an order.
func (p *PostgreSQLOrderRepository) Delete(ctx context.Context, tx database.Tx, id domain.OrderID) error {
	querier := database.SQLQuerier(tx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete order")
	}
	return requireAffected(result, domain.ErrOrderNotFound)
}

// requireAffected returns notFound when the statement matched no row.
func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

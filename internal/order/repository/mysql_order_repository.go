package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/order/domain"
)

const mysqlOrderColumns = `id, customer_id, items, status, created_at, updated_at`

// MySQLOrderRepository implements Order persistence for MySQL.
type MySQLOrderRepository struct {
	db *sql.DB
}

// NewMySQLOrderRepository creates a new MySQL Order repository instance.
func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Save inserts a new order.
func (m *MySQLOrderRepository) Save(ctx context.Context, tx database.Tx, order *domain.Order) error {
	querier := database.SQLQuerier(tx, m.db)

	items, err := marshalItems(order.Items)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (id, customer_id, items, status, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

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
func (m *MySQLOrderRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id domain.OrderID,
) (*domain.Order, error) {
	querier := database.SQLQuerier(tx, m.db)

	query := `SELECT ` + mysqlOrderColumns + ` FROM orders WHERE id = ?`
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
func (m *MySQLOrderRepository) FindByCustomerID(
	ctx context.Context,
	tx database.Tx,
	customerID domain.CustomerID,
) ([]*domain.Order, error) {
	querier := database.SQLQuerier(tx, m.db)

	query := `SELECT ` + mysqlOrderColumns + ` FROM orders WHERE customer_id = ? ORDER BY created_at ASC`

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
func (m *MySQLOrderRepository) Update(ctx context.Context, tx database.Tx, order *domain.Order) error {
	querier := database.SQLQuerier(tx, m.db)

	items, err := marshalItems(order.Items)
	if err != nil {
		return err
	}

	query := `UPDATE orders SET items = ?, status = ?, updated_at = ? WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, items, string(order.Status), order.UpdatedAt, order.ID.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to update order")
	}

	// MySQL reports zero affected rows when the new values equal the stored ones.
	if err := requireAffected(result, domain.ErrOrderNotFound); err != nil {
		return m.checkExists(ctx, querier, order.ID, err)
	}
	return nil
}

func (m *MySQLOrderRepository) checkExists(
	ctx context.Context,
	querier database.Querier,
	id domain.OrderID,
	notFound error,
) error {
	var one int
	err := querier.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to check order existence")
	}
	return nil
}

// Delete removes an order.
func (m *MySQLOrderRepository) Delete(ctx context.Context, tx database.Tx, id domain.OrderID) error {
	querier := database.SQLQuerier(tx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to delete order")
	}
	return requireAffected(result, domain.ErrOrderNotFound)
}


package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/order/domain"
)

// orderRepository is the behaviour shared by every driver.
type orderRepository interface {
	Save(ctx context.Context, tx database.Tx, order *domain.Order) error
	FindByID(ctx context.Context, tx database.Tx, id domain.OrderID) (*domain.Order, error)
	FindByCustomerID(ctx context.Context, tx database.Tx, customerID domain.CustomerID) ([]*domain.Order, error)
	Update(ctx context.Context, tx database.Tx, order *domain.Order) error
	Delete(ctx context.Context, tx database.Tx, id domain.OrderID) error
}

func newTestOrder(t *testing.T, customerID domain.CustomerID) *domain.Order {
	t.Helper()

	order, err := domain.NewOrder(customerID, []domain.OrderItem{
		{
			ProductID:   "product_1",
			ProductName: "Keyboard",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("29.99"),
		},
		{
			ProductID:   "product_2",
			ProductName: "Mouse",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString("15.50"),
		},
	})
	require.NoError(t, err)
	return order
}

func assertSameOrder(t *testing.T, want, got *domain.Order) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.CustomerID, got.CustomerID)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.TotalAmount.Equal(got.TotalAmount), "total %s != %s", want.TotalAmount, got.TotalAmount)
	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		assert.Equal(t, want.Items[i].ProductID, got.Items[i].ProductID)
		assert.Equal(t, want.Items[i].ProductName, got.Items[i].ProductName)
		assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity)
		assert.True(t, want.Items[i].UnitPrice.Equal(got.Items[i].UnitPrice))
	}
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
	assert.Equal(t, want.UpdatedAt, got.UpdatedAt)
}

// runOrderRepositoryTests exercises a repository against a live database.
func runOrderRepositoryTests(t *testing.T, repo orderRepository, txManager database.TxManager) {
	ctx := context.Background()

	t.Run("SaveAndFindByID", func(t *testing.T) {
		order := newTestOrder(t, "customer_save")

		require.NoError(t, repo.Save(ctx, nil, order))

		found, err := repo.FindByID(ctx, nil, order.ID)
		require.NoError(t, err)
		assertSameOrder(t, order, found)
	})

	t.Run("SaveDuplicate", func(t *testing.T) {
		order := newTestOrder(t, "customer_duplicate")
		require.NoError(t, repo.Save(ctx, nil, order))

		assert.Error(t, repo.Save(ctx, nil, order))
	})

	t.Run("FindByIDNotFound", func(t *testing.T) {
		_, err := repo.FindByID(ctx, nil, domain.NewOrderID())

		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("FindByCustomerID", func(t *testing.T) {
		first := newTestOrder(t, "customer_list")
		second := newTestOrder(t, "customer_list")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		other := newTestOrder(t, "customer_other")

		require.NoError(t, repo.Save(ctx, nil, second))
		require.NoError(t, repo.Save(ctx, nil, first))
		require.NoError(t, repo.Save(ctx, nil, other))

		orders, err := repo.FindByCustomerID(ctx, nil, "customer_list")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, first.ID, orders[0].ID)
		assert.Equal(t, second.ID, orders[1].ID)

		none, err := repo.FindByCustomerID(ctx, nil, "customer_nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Update", func(t *testing.T) {
		order := newTestOrder(t, "customer_update")
		require.NoError(t, repo.Save(ctx, nil, order))

		require.NoError(t, order.Confirm())
		order.Touch(order.UpdatedAt.Add(time.Minute))
		require.NoError(t, repo.Update(ctx, nil, order))

		found, err := repo.FindByID(ctx, nil, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusConfirmed, found.Status)
		assert.Equal(t, order.UpdatedAt, found.UpdatedAt)
	})

	t.Run("UpdateWithoutChanges", func(t *testing.T) {
		order := newTestOrder(t, "customer_noop")
		require.NoError(t, repo.Save(ctx, nil, order))

		assert.NoError(t, repo.Update(ctx, nil, order))
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		order := newTestOrder(t, "customer_missing")

		assert.ErrorIs(t, repo.Update(ctx, nil, order), domain.ErrOrderNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		order := newTestOrder(t, "customer_delete")
		require.NoError(t, repo.Save(ctx, nil, order))

		require.NoError(t, repo.Delete(ctx, nil, order.ID))

		_, err := repo.FindByID(ctx, nil, order.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, nil, order.ID), domain.ErrOrderNotFound)
	})

	t.Run("TransactionCommit", func(t *testing.T) {
		order := newTestOrder(t, "customer_tx")

		err := txManager.WithTx(ctx, func(ctx context.Context, tx database.Tx) error {
			if err := repo.Save(ctx, tx, order); err != nil {
				return err
			}
			loaded, err := repo.FindByID(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if err := loaded.Confirm(); err != nil {
				return err
			}
			return repo.Update(ctx, tx, loaded)
		})
		require.NoError(t, err)

		found, err := repo.FindByID(ctx, nil, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusConfirmed, found.Status)
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		order := newTestOrder(t, "customer_rollback")

		err := txManager.WithTx(ctx, func(ctx context.Context, tx database.Tx) error {
			if err := repo.Save(ctx, tx, order); err != nil {
				return err
			}
			return apperrors.ErrConflict
		})
		require.ErrorIs(t, err, apperrors.ErrConflict)

		_, err = repo.FindByID(ctx, nil, order.ID)
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

// Package usecase orchestrates order lifecycle operations. Every state change is persisted together
// with the outbox event that announces it, inside a single transaction.
package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// OrderRepository defines the interface for Order persistence operations.
type OrderRepository interface {
	Save(ctx context.Context, tx database.Tx, order *domain.Order) error
	FindByID(ctx context.Context, tx database.Tx, id domain.OrderID) (*domain.Order, error)
	FindByCustomerID(ctx context.Context, tx database.Tx, customerID domain.CustomerID) ([]*domain.Order, error)
	Update(ctx context.Context, tx database.Tx, order *domain.Order) error
}

// OutboxEventWriter records outbox events next to the order changes that produce them.
type OutboxEventWriter interface {
	Save(ctx context.Context, tx database.Tx, event *outboxDomain.OutboxEvent) error
}

// CreateOrderItemInput is one requested order line.
type CreateOrderItemInput struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateOrderInput carries the data needed to place an order.
type CreateOrderInput struct {
	CustomerID string
	Items      []CreateOrderItemInput
}

// OrderUseCase defines the interface for order business logic.
type OrderUseCase interface {
	Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	Confirm(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Ship(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Deliver(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	Get(ctx context.Context, id domain.OrderID) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
}

package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/orders/internal/errors"
)

// OrderStatus represents a state in the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid reports whether s is one of the known order statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a single order line.
type OrderItem struct {
	ProductID   ProductID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns quantity multiplied by unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) validate() error {
	if strings.TrimSpace(string(i.ProductID)) == "" {
		return ErrProductIDRequired
	}
	if strings.TrimSpace(i.ProductName) == "" {
		return ErrProductNameRequired
	}
	if i.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i.UnitPrice.IsNegative() {
		return ErrInvalidUnitPrice
	}
	return nil
}

// Now returns the current UTC time truncated to milliseconds, the finest precision every supported
// store keeps, so timestamps read back equal the ones written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Order is the aggregate root for a customer order.
// TotalAmount is derived from Items and is recomputed whenever an order is built or restored.
type Order struct {
	ID          OrderID
	CustomerID  CustomerID
	Items       []OrderItem
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewOrder validates the input and creates a PENDING order.
// Items are validated in order and the first invalid item aborts creation.
func NewOrder(customerID CustomerID, items []OrderItem) (*Order, error) {
	if strings.TrimSpace(string(customerID)) == "" {
		return nil, ErrCustomerIDRequired
	}
	if len(items) == 0 {
		return nil, ErrItemsRequired
	}

	lines := make([]OrderItem, len(items))
	for idx, item := range items {
		if err := item.validate(); err != nil {
			return nil, errors.Wrapf(err, "item %d", idx)
		}
		item.ProductName = strings.TrimSpace(item.ProductName)
		lines[idx] = item
	}

	now := Now()
	return &Order{
		ID:          NewOrderID(),
		CustomerID:  customerID,
		Items:       lines,
		TotalAmount: calculateTotal(lines),
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RestoreOrder rebuilds an order from persisted fields. items is copied.
func RestoreOrder(
	id OrderID,
	customerID CustomerID,
	items []OrderItem,
	status OrderStatus,
	createdAt, updatedAt time.Time,
) *Order {
	lines := slices.Clone(items)
	return &Order{
		ID:          id,
		CustomerID:  customerID,
		Items:       lines,
		TotalAmount: calculateTotal(lines),
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// Confirm moves a PENDING order to CONFIRMED.
func (o *Order) Confirm() error {
	return o.transition("confirm", OrderStatusConfirmed, OrderStatusPending)
}

// Ship moves a CONFIRMED order to SHIPPED.
func (o *Order) Ship() error {
	return o.transition("ship", OrderStatusShipped, OrderStatusConfirmed)
}

// Deliver moves a SHIPPED order to DELIVERED.
func (o *Order) Deliver() error {
	return o.transition("deliver", OrderStatusDelivered, OrderStatusShipped)
}

// Cancel moves a PENDING, CONFIRMED or SHIPPED order to CANCELLED.
func (o *Order) Cancel() error {
	return o.transition(
		"cancel",
		OrderStatusCancelled,
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusShipped,
	)
}

// Touch sets UpdatedAt, truncated like Now. Use cases call it right before persisting a mutation.
func (o *Order) Touch(now time.Time) {
	o.UpdatedAt = now.UTC().Truncate(time.Millisecond)
}

// transition mutates Status only when the current status is one of the allowed predecessors.
func (o *Order) transition(action string, to OrderStatus, from ...OrderStatus) error {
	if !slices.Contains(from, o.Status) {
		return errors.Wrapf(ErrInvalidStateTransition, "cannot %s order with status %s", action, o.Status)
	}
	o.Status = to
	return nil
}

func calculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

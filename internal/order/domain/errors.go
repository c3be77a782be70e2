// Package domain defines the order aggregate, its lifecycle state machine and the
// event payloads emitted when an order changes state.
package domain

import (
	"github.com/allisson/orders/internal/errors"
)

// Order-specific error definitions.
var (
	// ErrOrderNotFound indicates the order was not found.
	ErrOrderNotFound = errors.Wrap(errors.ErrNotFound, "order not found")

	// ErrInvalidStateTransition indicates the requested transition is not allowed from the current status.
	ErrInvalidStateTransition = errors.Wrap(errors.ErrConflict, "invalid state transition")

	// ErrCustomerIDRequired indicates the order has no customer.
	ErrCustomerIDRequired = errors.Wrap(errors.ErrInvalidInput, "customer id is required")

	// ErrItemsRequired indicates the order has no line items.
	ErrItemsRequired = errors.Wrap(errors.ErrInvalidInput, "order must have at least one item")

	// ErrProductIDRequired indicates an order line without a product id.
	ErrProductIDRequired = errors.Wrap(errors.ErrInvalidInput, "product id is required")

	// ErrProductNameRequired indicates an order line without a product name.
	ErrProductNameRequired = errors.Wrap(errors.ErrInvalidInput, "product name is required")

	// ErrInvalidQuantity indicates an order line with a quantity that is not positive.
	ErrInvalidQuantity = errors.Wrap(errors.ErrInvalidInput, "quantity must be greater than zero")

	// ErrInvalidUnitPrice indicates an order line with a negative unit price.
	ErrInvalidUnitPrice = errors.Wrap(errors.ErrInvalidInput, "unit price cannot be negative")
)

package domain

import (
	"github.com/allisson/orders/internal/identifier"
)

// OrderID identifies an order ("order_<uuid>").
type OrderID string

// CustomerID identifies the customer who placed an order ("customer_<suffix>").
type CustomerID string

// ProductID identifies a product in an order line ("product_<suffix>").
type ProductID string

// NewOrderID generates a new unique order identifier.
func NewOrderID() OrderID {
	return OrderID(identifier.New(identifier.OrderPrefix))
}

// ParseOrderID validates and returns an OrderID reconstructed from a string.
func ParseOrderID(value string) (OrderID, error) {
	v, err := identifier.Parse(identifier.OrderPrefix, value)
	return OrderID(v), err
}

// NewCustomerID generates a new unique customer identifier.
func NewCustomerID() CustomerID {
	return CustomerID(identifier.New(identifier.CustomerPrefix))
}

// ParseCustomerID validates and returns a CustomerID reconstructed from a string.
func ParseCustomerID(value string) (CustomerID, error) {
	v, err := identifier.Parse(identifier.CustomerPrefix, value)
	return CustomerID(v), err
}

// NewProductID generates a new unique product identifier.
func NewProductID() ProductID {
	return ProductID(identifier.New(identifier.ProductPrefix))
}

// ParseProductID validates and returns a ProductID reconstructed from a string.
func ParseProductID(value string) (ProductID, error) {
	v, err := identifier.Parse(identifier.ProductPrefix, value)
	return ProductID(v), err
}

func (id OrderID) String() string    { return string(id) }
func (id CustomerID) String() string { return string(id) }
func (id ProductID) String() string  { return string(id) }

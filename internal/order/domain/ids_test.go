package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orders/internal/identifier"
)

func TestNewIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewOrderID().String(), "order_"))
	assert.True(t, strings.HasPrefix(NewCustomerID().String(), "customer_"))
	assert.True(t, strings.HasPrefix(NewProductID().String(), "product_"))
	assert.NotEqual(t, NewOrderID(), NewOrderID())
}

func TestParseIDs(t *testing.T) {
	orderID, err := ParseOrderID(" order_abc ")
	require.NoError(t, err)
	assert.Equal(t, OrderID("order_abc"), orderID)

	_, err = ParseOrderID("customer_abc")
	assert.ErrorIs(t, err, identifier.ErrInvalidIdentifier)

	customerID, err := ParseCustomerID("customer_42")
	require.NoError(t, err)
	assert.Equal(t, CustomerID("customer_42"), customerID)

	_, err = ParseCustomerID("")
	assert.ErrorIs(t, err, identifier.ErrEmptyIdentifier)

	productID, err := ParseProductID("product_7")
	require.NoError(t, err)
	assert.Equal(t, ProductID("product_7"), productID)

	_, err = ParseProductID("7")
	assert.ErrorIs(t, err, identifier.ErrInvalidIdentifier)
}

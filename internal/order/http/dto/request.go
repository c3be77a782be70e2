// Package dto provides data transfer objects for order HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/allisson/orders/internal/identifier"
	"github.com/allisson/orders/internal/order/usecase"
	customValidation "github.com/allisson/orders/internal/validation"
)

// CreateOrderItemRequest is one line of a create order request.
// UnitPrice is a decimal string to keep cents exact.
type CreateOrderItemRequest struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// CreateOrderRequest contains the parameters for placing an order.
type CreateOrderRequest struct {
	CustomerID string                   `json:"customer_id"`
	Items      []CreateOrderItemRequest `json:"items"`
}

// Validate checks if the create order request is valid.
func (r *CreateOrderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CustomerID,
			validation.Required,
			customValidation.NotBlank,
			customValidation.PrefixedID(identifier.CustomerPrefix),
		),
		validation.Field(&r.Items,
			validation.Required,
			validation.Each(validation.By(validateOrderItem)),
		),
	)
}

// ToInput converts the request into use case input. Validate must succeed first.
func (r *CreateOrderRequest) ToInput() usecase.CreateOrderInput {
	items := make([]usecase.CreateOrderItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, usecase.CreateOrderItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   decimal.RequireFromString(item.UnitPrice),
		})
	}
	return usecase.CreateOrderInput{
		CustomerID: r.CustomerID,
		Items:      items,
	}
}

func validateOrderItem(value interface{}) error {
	item, ok := value.(CreateOrderItemRequest)
	if !ok {
		return validation.NewError("validation_order_item_type", "must be an order item")
	}

	return validation.ValidateStruct(&item,
		validation.Field(&item.ProductID,
			validation.Required,
			customValidation.PrefixedID(identifier.ProductPrefix),
		),
		validation.Field(&item.ProductName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
		validation.Field(&item.Quantity,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&item.UnitPrice,
			validation.Required,
			customValidation.Amount,
		),
	)
}

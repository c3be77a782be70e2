package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemPayload is the wire representation of an order line inside event payloads.
type OrderItemPayload struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// OrderCreatedPayload is published when an order is placed.
type OrderCreatedPayload struct {
	OrderID     string             `json:"orderId"`
	CustomerID  string             `json:"customerId"`
	Items       []OrderItemPayload `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// OrderConfirmedPayload is published when an order is confirmed.
type OrderConfirmedPayload struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ConfirmedAt time.Time       `json:"confirmedAt"`
}

// OrderShippedPayload is published when an order leaves the warehouse.
type OrderShippedPayload struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ShippedAt   time.Time       `json:"shippedAt"`
}

// OrderDeliveredPayload is published when an order reaches the customer.
type OrderDeliveredPayload struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	DeliveredAt time.Time       `json:"deliveredAt"`
}

// OrderCancelledPayload is published when an order is cancelled.
type OrderCancelledPayload struct {
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CancelledAt time.Time       `json:"cancelledAt"`
}

// CreatedPayload builds the OrderCreated payload from the current order state.
func (o *Order) CreatedPayload() OrderCreatedPayload {
	items := make([]OrderItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemPayload{
			ProductID:   item.ProductID.String(),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	return OrderCreatedPayload{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	}
}

// ConfirmedPayload builds the OrderConfirmed payload.
func (o *Order) ConfirmedPayload(at time.Time) OrderConfirmedPayload {
	return OrderConfirmedPayload{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		TotalAmount: o.TotalAmount,
		ConfirmedAt: at,
	}
}

// ShippedPayload builds the OrderShipped payload.
func (o *Order) ShippedPayload(at time.Time) OrderShippedPayload {
	return OrderShippedPayload{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		TotalAmount: o.TotalAmount,
		ShippedAt:   at,
	}
}

// DeliveredPayload builds the OrderDelivered payload.
func (o *Order) DeliveredPayload(at time.Time) OrderDeliveredPayload {
	return OrderDeliveredPayload{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		TotalAmount: o.TotalAmount,
		DeliveredAt: at,
	}
}

// CancelledPayload builds the OrderCancelled payload.
func (o *Order) CancelledPayload(at time.Time) OrderCancelledPayload {
	return OrderCancelledPayload{
		OrderID:     o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		TotalAmount: o.TotalAmount,
		CancelledAt: at,
	}
}

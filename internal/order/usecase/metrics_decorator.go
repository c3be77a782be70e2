package usecase

import (
	"context"
	"time"

	"github.com/allisson/orders/internal/metrics"
	"github.com/allisson/orders/internal/order/domain"
)

// orderUseCaseWithMetrics decorates OrderUseCase with metrics instrumentation.
type orderUseCaseWithMetrics struct {
	next    OrderUseCase
	metrics metrics.BusinessMetrics
}

// NewOrderUseCaseWithMetrics wraps an OrderUseCase with metrics recording.
func NewOrderUseCaseWithMetrics(useCase OrderUseCase, m metrics.BusinessMetrics) OrderUseCase {
	return &orderUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (o *orderUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.OperationStatus(err)
	o.metrics.RecordOperation(ctx, "orders", operation, status)
	o.metrics.RecordDuration(ctx, "orders", operation, time.Since(start), status)
}

// Create records metrics for order creation.
func (o *orderUseCaseWithMetrics) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Create(ctx, input)
	o.record(ctx, "order_create", start, err)
	return order, err
}

// Confirm records metrics for order confirmation.
func (o *orderUseCaseWithMetrics) Confirm(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Confirm(ctx, id)
	o.record(ctx, "order_confirm", start, err)
	return order, err
}

// Ship records metrics for order shipping.
func (o *orderUseCaseWithMetrics) Ship(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Ship(ctx, id)
	o.record(ctx, "order_ship", start, err)
	return order, err
}

// Deliver records metrics for order delivery.
func (o *orderUseCaseWithMetrics) Deliver(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Deliver(ctx, id)
	o.record(ctx, "order_deliver", start, err)
	return order, err
}

// Cancel records metrics for order cancellation.
func (o *orderUseCaseWithMetrics) Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Cancel(ctx, id)
	o.record(ctx, "order_cancel", start, err)
	return order, err
}

// Get records metrics for order retrieval.
func (o *orderUseCaseWithMetrics) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	start := time.Now()
	order, err := o.next.Get(ctx, id)
	o.record(ctx, "order_get", start, err)
	return order, err
}

// ListByCustomer records metrics for order listing.
func (o *orderUseCaseWithMetrics) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	start := time.Now()
	orders, err := o.next.ListByCustomer(ctx, customerID)
	o.record(ctx, "order_list", start, err)
	return orders, err
}

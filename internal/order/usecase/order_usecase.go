package usecase

import (
	"context"
	"time"

	"github.com/allisson/orders/internal/database"
	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

// orderUseCase implements OrderUseCase.
type orderUseCase struct {
	txManager  database.TxManager
	orderRepo  OrderRepository
	outboxRepo OutboxEventWriter
}

// transition describes one lifecycle step and the event it emits.
type transition struct {
	apply     func(order *domain.Order) error
	eventType outboxDomain.EventType
	payload   func(order *domain.Order, at time.Time) any
}

var (
	confirmTransition = transition{
		apply:     (*domain.Order).Confirm,
		eventType: outboxDomain.EventTypeOrderConfirmed,
		payload:   func(o *domain.Order, at time.Time) any { return o.ConfirmedPayload(at) },
	}
	shipTransition = transition{
		apply:     (*domain.Order).Ship,
		eventType: outboxDomain.EventTypeOrderShipped,
		payload:   func(o *domain.Order, at time.Time) any { return o.ShippedPayload(at) },
	}
	deliverTransition = transition{
		apply:     (*domain.Order).Deliver,
		eventType: outboxDomain.EventTypeOrderDelivered,
		payload:   func(o *domain.Order, at time.Time) any { return o.DeliveredPayload(at) },
	}
	cancelTransition = transition{
		apply:     (*domain.Order).Cancel,
		eventType: outboxDomain.EventTypeOrderCancelled,
		payload:   func(o *domain.Order, at time.Time) any { return o.CancelledPayload(at) },
	}
)

// Create validates the input, builds a PENDING order and records it with its OrderCreated event.
// Either both rows are written or neither is.
func (o *orderUseCase) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	customerID, err := domain.ParseCustomerID(input.CustomerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "customer_id")
	}

	items := make([]domain.OrderItem, 0, len(input.Items))
	for idx, item := range input.Items {
		productID, err := domain.ParseProductID(item.ProductID)
		if err != nil {
			return nil, apperrors.Wrapf(err, "items[%d].product_id", idx)
		}
		items = append(items, domain.OrderItem{
			ProductID:   productID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order, err := domain.NewOrder(customerID, items)
	if err != nil {
		return nil, err
	}

	event, err := outboxDomain.NewOutboxEventFromPayload(
		order.ID.String(),
		outboxDomain.EventTypeOrderCreated,
		order.CreatedPayload(),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build order created event")
	}

	err = o.txManager.WithTx(ctx, func(ctx context.Context, tx database.Tx) error {
		if err := o.orderRepo.Save(ctx, tx, order); err != nil {
			return err
		}
		return o.outboxRepo.Save(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// Confirm moves a PENDING order to CONFIRMED.
func (o *orderUseCase) Confirm(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return o.apply(ctx, id, confirmTransition)
}

// Ship moves a CONFIRMED order to SHIPPED.
func (o *orderUseCase) Ship(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return o.apply(ctx, id, shipTransition)
}

// Deliver moves a SHIPPED order to DELIVERED.
func (o *orderUseCase) Deliver(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return o.apply(ctx, id, deliverTransition)
}

// Cancel moves a PENDING, CONFIRMED or SHIPPED order to CANCELLED.
func (o *orderUseCase) Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return o.apply(ctx, id, cancelTransition)
}

// apply loads the order inside a transaction, runs the transition and records the update and
// its event in that same transaction. A rejected transition writes nothing.
func (o *orderUseCase) apply(ctx context.Context, id domain.OrderID, t transition) (*domain.Order, error) {
	return database.WithTxResult(ctx, o.txManager, func(ctx context.Context, tx database.Tx) (*domain.Order, error) {
		order, err := o.orderRepo.FindByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}

		if err := t.apply(order); err != nil {
			return nil, err
		}

		now := domain.Now()
		order.Touch(now)

		if err := o.orderRepo.Update(ctx, tx, order); err != nil {
			return nil, err
		}

		event, err := outboxDomain.NewOutboxEventFromPayload(order.ID.String(), t.eventType, t.payload(order, now))
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to build %s event", t.eventType)
		}
		if err := o.outboxRepo.Save(ctx, tx, event); err != nil {
			return nil, err
		}

		return order, nil
	})
}

// Get loads an order by id.
func (o *orderUseCase) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return o.orderRepo.FindByID(ctx, nil, id)
}

// ListByCustomer lists the orders of a customer, oldest first.
func (o *orderUseCase) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	id, err := domain.ParseCustomerID(customerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "customer_id")
	}
	return o.orderRepo.FindByCustomerID(ctx, nil, id)
}

// NewOrderUseCase creates a new OrderUseCase.
func NewOrderUseCase(
	txManager database.TxManager,
	orderRepo OrderRepository,
	outboxRepo OutboxEventWriter,
) OrderUseCase {
	return &orderUseCase{
		txManager:  txManager,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
	}
}

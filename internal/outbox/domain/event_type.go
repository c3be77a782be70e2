package domain

import (
	"github.com/allisson/orders/internal/errors"
)

// EventType names a domain event recorded in the outbox.
type EventType string

const (
	EventTypeOrderCreated   EventType = "OrderCreated"
	EventTypeOrderConfirmed EventType = "OrderConfirmed"
	EventTypeOrderShipped   EventType = "OrderShipped"
	EventTypeOrderDelivered EventType = "OrderDelivered"
	EventTypeOrderCancelled EventType = "OrderCancelled"
)

var topics = map[EventType]string{
	EventTypeOrderCreated:   "order.created",
	EventTypeOrderConfirmed: "order.confirmed",
	EventTypeOrderShipped:   "order.shipped",
	EventTypeOrderDelivered: "order.delivered",
	EventTypeOrderCancelled: "order.cancelled",
}

// EventTypes returns every known event type.
func EventTypes() []EventType {
	return []EventType{
		EventTypeOrderCreated,
		EventTypeOrderConfirmed,
		EventTypeOrderShipped,
		EventTypeOrderDelivered,
		EventTypeOrderCancelled,
	}
}

// IsKnown reports whether t has a topic.
func (t EventType) IsKnown() bool {
	_, ok := topics[t]
	return ok
}

// Topic returns the bus topic for t.
// Only rows read back from storage can hold an unknown type, since constructors take the constants.
func (t EventType) Topic() (string, error) {
	topic, ok := topics[t]
	if !ok {
		return "", errors.Wrapf(ErrUnknownEventType, "%q", string(t))
	}
	return topic, nil
}

func (t EventType) String() string {
	return string(t)
}

// Package messaging publishes outbox messages to a message bus.
//
// Kafka, RabbitMQ and gocloud pubsub clients share the Publisher interface, and BreakerPublisher
// wraps any of them with a circuit breaker.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/allisson/orders/internal/errors"
)

const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
	HeaderTimestamp   = "timestamp"

	ContentTypeJSON = "application/json"
)

var (
	// ErrNotConnected indicates Publish was called before Connect.
	ErrNotConnected = apperrors.Wrap(apperrors.ErrUnavailable, "publisher is not connected")

	// ErrBrokerUnavailable indicates the circuit breaker is rejecting calls to the broker.
	ErrBrokerUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "broker unavailable")

	// ErrEmptyTopic indicates a publish without a destination.
	ErrEmptyTopic = apperrors.Wrap(apperrors.ErrInvalidInput, "topic cannot be empty")
)

// Message is the envelope published for every outbox event.
type Message struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredOn  time.Time       `json:"occurredOn"`
}

// Key is the partition/routing key. Messages of one aggregate share a key.
func (m Message) Key() []byte {
	return []byte(m.AggregateID)
}

// Headers returns the transport headers attached to the message.
func (m Message) Headers() map[string]string {
	return map[string]string{
		HeaderContentType: ContentTypeJSON,
		HeaderEventType:   m.EventType,
		HeaderTimestamp:   m.OccurredOn.UTC().Format(time.RFC3339Nano),
	}
}

// Body returns the JSON encoded envelope.
func (m Message) Body() ([]byte, error) {
	return json.Marshal(m)
}

// Publisher delivers messages to a topic on a message bus.
type Publisher interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, topic string, msg Message) error
	PublishBatch(ctx context.Context, topic string, msgs []Message) error
}

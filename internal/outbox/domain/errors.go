package domain

import (
	"github.com/allisson/orders/internal/errors"
)

// Outbox-specific error definitions.
var (
	// ErrOutboxEventNotFound indicates the outbox event was not found.
	ErrOutboxEventNotFound = errors.Wrap(errors.ErrNotFound, "outbox event not found")

	// ErrAlreadyProcessed indicates the event was already published.
	ErrAlreadyProcessed = errors.Wrap(errors.ErrConflict, "outbox event already processed")

	// ErrNotFailed indicates a retry was requested for an event that is not FAILED.
	ErrNotFailed = errors.Wrap(errors.ErrConflict, "only failed outbox events can be retried")

	// ErrUnknownEventType indicates an event type without a topic.
	ErrUnknownEventType = errors.Wrap(errors.ErrInvalidInput, "unknown event type")

	ErrAggregateIDRequired   = errors.Wrap(errors.ErrInvalidInput, "aggregate id is required")
	ErrEventTypeRequired     = errors.Wrap(errors.ErrInvalidInput, "event type is required")
	ErrPayloadRequired       = errors.Wrap(errors.ErrInvalidInput, "payload is required")
	ErrFailureReasonRequired = errors.Wrap(errors.ErrInvalidInput, "failure reason is required")
	ErrInvalidStatus         = errors.Wrap(errors.ErrInvalidInput, "invalid outbox event status")
)

// Package domain defines the outbox ledger entry and the known event types.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/orders/internal/messaging"
)

// OutboxEventStatus represents the delivery status of an outbox event.
type OutboxEventStatus string

const (
	OutboxEventStatusPending   OutboxEventStatus = "PENDING"
	OutboxEventStatusProcessed OutboxEventStatus = "PROCESSED"
	OutboxEventStatusFailed    OutboxEventStatus = "FAILED"
)

// IsValid reports whether s is a known status.
func (s OutboxEventStatus) IsValid() bool {
	switch s {
	case OutboxEventStatusPending, OutboxEventStatusProcessed, OutboxEventStatusFailed:
		return true
	}
	return false
}

// ParseOutboxEventStatus converts a case-insensitive string into a status.
func ParseOutboxEventStatus(value string) (OutboxEventStatus, error) {
	status := OutboxEventStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Now returns the current UTC time truncated to milliseconds, the finest precision every supported
// store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// OutboxEvent is a ledger row written in the same transaction as the aggregate change it describes.
//
// Status moves PENDING -> PROCESSED, or PENDING -> FAILED -> PENDING through Retry. RetryCount is
// never reset, so CanRetry bounds the total number of failed attempts.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateID   string
	EventType     EventType
	Payload       json.RawMessage
	Status        OutboxEventStatus
	RetryCount    int
	FailureReason *string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEvent creates a PENDING event.
func NewOutboxEvent(aggregateID string, eventType EventType, payload json.RawMessage) (*OutboxEvent, error) {
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return nil, ErrAggregateIDRequired
	}
	eventType = EventType(strings.TrimSpace(string(eventType)))
	if eventType == "" {
		return nil, ErrEventTypeRequired
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, ErrPayloadRequired
	}

	now := Now()
	return &OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxEventStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewOutboxEventFromPayload marshals payload to JSON and creates a PENDING event.
func NewOutboxEventFromPayload(aggregateID string, eventType EventType, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return NewOutboxEvent(aggregateID, eventType, data)
}

// MarkAsProcessed records a successful publish.
func (e *OutboxEvent) MarkAsProcessed() error {
	if e.Status == OutboxEventStatusProcessed {
		return ErrAlreadyProcessed
	}

	now := Now()
	e.Status = OutboxEventStatusProcessed
	e.ProcessedAt = &now
	e.FailureReason = nil
	e.UpdatedAt = now
	return nil
}

// MarkAsFailed records a failed publish and increments RetryCount.
// Whether the event gets another attempt is decided by the caller through CanRetry.
func (e *OutboxEvent) MarkAsFailed(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrFailureReasonRequired
	}

	e.Status = OutboxEventStatusFailed
	e.FailureReason = &reason
	e.RetryCount++
	e.UpdatedAt = Now()
	return nil
}

// Retry moves a FAILED event back to PENDING. RetryCount is kept.
func (e *OutboxEvent) Retry() error {
	if e.Status != OutboxEventStatusFailed {
		return ErrNotFailed
	}

	e.Status = OutboxEventStatusPending
	e.FailureReason = nil
	e.UpdatedAt = Now()
	return nil
}

// CanRetry reports whether the event is still under the retry budget.
func (e *OutboxEvent) CanRetry(maxRetries int) bool {
	return e.RetryCount < maxRetries
}

// ToMessage builds the bus envelope for the event.
func (e *OutboxEvent) ToMessage() messaging.Message {
	return messaging.Message{
		EventID:     e.ID.String(),
		EventType:   e.EventType.String(),
		AggregateID: e.AggregateID,
		Payload:     e.Payload,
		OccurredOn:  e.CreatedAt,
	}
}

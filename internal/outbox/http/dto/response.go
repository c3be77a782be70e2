// Package dto provides data transfer objects for outbox HTTP responses.
package dto

import (
	"encoding/json"
	"time"

	"github.com/allisson/orders/internal/outbox/domain"
)

// OutboxEventResponse represents an outbox event in API responses.
type OutboxEventResponse struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MapOutboxEventToResponse converts a domain outbox event to an API response.
func MapOutboxEventToResponse(event *domain.OutboxEvent) OutboxEventResponse {
	return OutboxEventResponse{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID,
		EventType:     event.EventType.String(),
		Payload:       event.Payload,
		Status:        string(event.Status),
		RetryCount:    event.RetryCount,
		FailureReason: event.FailureReason,
		ProcessedAt:   event.ProcessedAt,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

// ListOutboxEventsResponse represents a list of outbox events in API responses.
type ListOutboxEventsResponse struct {
	Data []OutboxEventResponse `json:"data"`
}

// MapOutboxEventsToListResponse converts a slice of domain events to a list API response.
func MapOutboxEventsToListResponse(events []*domain.OutboxEvent) ListOutboxEventsResponse {
	responses := make([]OutboxEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, MapOutboxEventToResponse(event))
	}
	return ListOutboxEventsResponse{Data: responses}
}

// OutboxStatsResponse holds the number of ledger rows per status.
type OutboxStatsResponse struct {
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// MapStatsToResponse converts per status counts to an API response. Missing statuses count as zero.
func MapStatsToResponse(stats map[domain.OutboxEventStatus]int64) OutboxStatsResponse {
	return OutboxStatsResponse{
		Pending:   stats[domain.OutboxEventStatusPending],
		Processed: stats[domain.OutboxEventStatusProcessed],
		Failed:    stats[domain.OutboxEventStatusFailed],
	}
}

// ReconcileResponse reports how many FAILED events were moved back to PENDING.
type ReconcileResponse struct {
	Requeued int `json:"requeued"`
}

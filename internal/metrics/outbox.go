package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutboxMetrics records the outcome of outbox dispatching.
type OutboxMetrics interface {
	// RecordPublished counts an event delivered to the bus and the publish latency.
	RecordPublished(ctx context.Context, eventType string, duration time.Duration)

	// RecordFailed counts a failed publish that stays eligible for a retry.
	RecordFailed(ctx context.Context, eventType string)

	// RecordAbandoned counts an event that will not be retried automatically.
	// Reason is "max_retries" or "unknown_event_type".
	RecordAbandoned(ctx context.Context, eventType, reason string)

	// RecordRequeued counts FAILED events moved back to PENDING.
	RecordRequeued(ctx context.Context, count int)

	// RecordBacklog reports the size of the last fetched PENDING batch.
	RecordBacklog(ctx context.Context, pending int)
}

type outboxMetrics struct {
	published metric.Int64Counter
	failed    metric.Int64Counter
	abandoned metric.Int64Counter
	requeued  metric.Int64Counter
	latency   metric.Float64Histogram
	backlog   metric.Int64Gauge
}

// NewOutboxMetrics creates OutboxMetrics backed by OpenTelemetry instruments named after namespace.
func NewOutboxMetrics(meterProvider metric.MeterProvider, namespace string) (OutboxMetrics, error) {
	meter := meterProvider.Meter(namespace)
	m := &outboxMetrics{}

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.published, "outbox_events_published_total", "Outbox events published to the message bus"},
		{&m.failed, "outbox_events_failed_total", "Outbox event publish attempts that failed"},
		{&m.abandoned, "outbox_events_abandoned_total", "Outbox events left FAILED without automatic retry"},
		{&m.requeued, "outbox_events_requeued_total", "FAILED outbox events moved back to PENDING"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(
			fmt.Sprintf("%s_%s", namespace, c.name),
			metric.WithDescription(c.description),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}

	latency, err := meter.Float64Histogram(
		fmt.Sprintf("%s_outbox_publish_duration_seconds", namespace),
		metric.WithDescription("Duration of outbox event publishes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish duration histogram: %w", err)
	}
	m.latency = latency

	backlog, err := meter.Int64Gauge(
		fmt.Sprintf("%s_outbox_pending_batch_size", namespace),
		metric.WithDescription("Number of PENDING outbox events fetched by the last dispatch tick"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backlog gauge: %w", err)
	}
	m.backlog = backlog

	return m, nil
}

func (m *outboxMetrics) RecordPublished(ctx context.Context, eventType string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))
	m.published.Add(ctx, 1, attrs)
	m.latency.Record(ctx, duration.Seconds(), attrs)
}

func (m *outboxMetrics) RecordFailed(ctx context.Context, eventType string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *outboxMetrics) RecordAbandoned(ctx context.Context, eventType, reason string) {
	m.abandoned.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	))
}

func (m *outboxMetrics) RecordRequeued(ctx context.Context, count int) {
	m.requeued.Add(ctx, int64(count))
}

func (m *outboxMetrics) RecordBacklog(ctx context.Context, pending int) {
	m.backlog.Record(ctx, int64(pending))
}

// NoOpOutboxMetrics is a no-op implementation of OutboxMetrics for when metrics are disabled.
type NoOpOutboxMetrics struct{}

// NewNoOpOutboxMetrics creates a no-op OutboxMetrics implementation.
func NewNoOpOutboxMetrics() OutboxMetrics {
	return &NoOpOutboxMetrics{}
}

func (n *NoOpOutboxMetrics) RecordPublished(ctx context.Context, eventType string, duration time.Duration) {}
func (n *NoOpOutboxMetrics) RecordFailed(ctx context.Context, eventType string)                          {}
func (n *NoOpOutboxMetrics) RecordAbandoned(ctx context.Context, eventType, reason string)               {}
func (n *NoOpOutboxMetrics) RecordRequeued(ctx context.Context, count int)                               {}
func (n *NoOpOutboxMetrics) RecordBacklog(ctx context.Context, pending int)                              {}

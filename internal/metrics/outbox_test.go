package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetrics(t *testing.T) {
	provider, err := NewProvider("outbox_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	om, err := NewOutboxMetrics(provider.MeterProvider(), "outbox_test")
	require.NoError(t, err)

	ctx := context.Background()
	om.RecordPublished(ctx, "OrderCreated", 20*time.Millisecond)
	om.RecordPublished(ctx, "OrderCreated", 30*time.Millisecond)
	om.RecordFailed(ctx, "OrderShipped")
	om.RecordAbandoned(ctx, "Mystery", "unknown_event_type")
	om.RecordRequeued(ctx, 4)
	om.RecordBacklog(ctx, 7)

	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	output := w.Body.String()

	assertBizMetricLine(t, output, `outbox_test_outbox_events_published_total`, `event_type="OrderCreated"`, `2`)
	assertBizMetricLine(t, output, `outbox_test_outbox_events_failed_total`, `event_type="OrderShipped"`, `1`)
	assertBizMetricLine(
		t,
		output,
		`outbox_test_outbox_events_abandoned_total`,
		`event_type="Mystery".*reason="unknown_event_type"`,
		`1`,
	)
	assertBizMetricLine(t, output, `outbox_test_outbox_publish_duration_seconds_count`, `event_type="OrderCreated"`, `2`)
	assert.Regexp(t, `outbox_test_outbox_events_requeued_total\{[^}]*\} 4`, output)
	assert.Regexp(t, `outbox_test_outbox_pending_batch_size\{[^}]*\} 7`, output)
}

func TestNewNoOpOutboxMetrics(t *testing.T) {
	om := NewNoOpOutboxMetrics()

	assert.NotPanics(t, func() {
		om.RecordPublished(context.Background(), "OrderCreated", time.Second)
		om.RecordFailed(context.Background(), "OrderCreated")
		om.RecordAbandoned(context.Background(), "OrderCreated", "max_retries")
		om.RecordRequeued(context.Background(), 1)
		om.RecordBacklog(context.Background(), 0)
	})
}

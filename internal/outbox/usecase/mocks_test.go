package usecase

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/lock"
	"github.com/allisson/orders/internal/messaging"
	"github.com/allisson/orders/internal/metrics"
	"github.com/allisson/orders/internal/outbox/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEvent builds a PENDING OrderCreated event created offset after base.
func newTestEvent(t *testing.T, aggregateID string, base time.Time, offset time.Duration) *domain.OutboxEvent {
	t.Helper()

	event, err := domain.NewOutboxEvent(aggregateID, domain.EventTypeOrderCreated, []byte(`{"orderId":"`+aggregateID+`"}`))
	require.NoError(t, err)
	event.CreatedAt = base.Add(offset)
	event.UpdatedAt = event.CreatedAt
	return event
}

// fakeTx is the handle the mock manager passes to the unit of work.
type fakeTx struct{}

func (fakeTx) Driver() string { return "fake" }

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx database.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx, fakeTx{})
}

// MockOutboxEventRepository is a mock implementation of OutboxEventRepository
type MockOutboxEventRepository struct {
	mock.Mock
}

func (m *MockOutboxEventRepository) FindPending(
	ctx context.Context,
	tx database.Tx,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) FindByStatus(
	ctx context.Context,
	tx database.Tx,
	status domain.OutboxEventStatus,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, tx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) FindRetryable(
	ctx context.Context,
	tx database.Tx,
	maxRetries int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, tx, maxRetries, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) FindByID(
	ctx context.Context,
	tx database.Tx,
	id uuid.UUID,
) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) FindByAggregateID(
	ctx context.Context,
	tx database.Tx,
	aggregateID string,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, tx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxEventRepository) Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxEventRepository) CountByStatus(
	ctx context.Context,
	tx database.Tx,
) (map[domain.OutboxEventStatus]int64, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.OutboxEventStatus]int64), args.Error(1)
}

// MockPublisher is a mock implementation of messaging.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPublisher) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *MockPublisher) PublishBatch(ctx context.Context, topic string, msgs []messaging.Message) error {
	return m.Called(ctx, topic, msgs).Error(0)
}

// publishedIDs returns the event ids passed to Publish, in call order.
func (m *MockPublisher) publishedIDs() []string {
	var ids []string
	for _, call := range m.Calls {
		if call.Method == "Publish" {
			ids = append(ids, call.Arguments.Get(2).(messaging.Message).EventID)
		}
	}
	return ids
}

// forEvent matches the message built for event.
func forEvent(event *domain.OutboxEvent) any {
	id := event.ID.String()
	return mock.MatchedBy(func(msg messaging.Message) bool { return msg.EventID == id })
}

// MockLocker is a mock implementation of lock.Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string) (lock.Handle, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(lock.Handle), args.Bool(1), args.Error(2)
}

// MockHandle is a mock implementation of lock.Handle
type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) Extend(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockHandle) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

// MockOutboxQueryUseCase is a mock implementation of OutboxQueryUseCase
type MockOutboxQueryUseCase struct {
	mock.Mock
}

func (m *MockOutboxQueryUseCase) List(
	ctx context.Context,
	input ListOutboxEventsInput,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxQueryUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxQueryUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

func (m *MockOutboxQueryUseCase) Stats(ctx context.Context) (map[domain.OutboxEventStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.OutboxEventStatus]int64), args.Error(1)
}

// recordingMetrics counts outbox metric calls.
type recordingMetrics struct {
	mu        sync.Mutex
	published int
	failed    int
	abandoned map[string]int
	requeued  int
	backlog   []int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{abandoned: make(map[string]int)}
}

func (r *recordingMetrics) RecordPublished(ctx context.Context, eventType string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published++
}

func (r *recordingMetrics) RecordFailed(ctx context.Context, eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recordingMetrics) RecordAbandoned(ctx context.Context, eventType, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned[reason]++
}

func (r *recordingMetrics) RecordRequeued(ctx context.Context, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requeued += count
}

func (r *recordingMetrics) RecordBacklog(ctx context.Context, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(r.backlog, pending)
}

var _ metrics.OutboxMetrics = (*recordingMetrics)(nil)

// memoryOutbox is an in-memory ledger. Reads return copies so only Update changes stored rows.
type memoryOutbox struct {
	mu         sync.Mutex
	events     map[uuid.UUID]*domain.OutboxEvent
	failUpdate map[uuid.UUID]error
	findErr    error
}

func newMemoryOutbox(events ...*domain.OutboxEvent) *memoryOutbox {
	m := &memoryOutbox{
		events:     make(map[uuid.UUID]*domain.OutboxEvent),
		failUpdate: make(map[uuid.UUID]error),
	}
	for _, event := range events {
		m.events[event.ID] = cloneEvent(event)
	}
	return m
}

func cloneEvent(event *domain.OutboxEvent) *domain.OutboxEvent {
	c := *event
	c.Payload = append([]byte(nil), event.Payload...)
	if event.FailureReason != nil {
		reason := *event.FailureReason
		c.FailureReason = &reason
	}
	if event.ProcessedAt != nil {
		processedAt := *event.ProcessedAt
		c.ProcessedAt = &processedAt
	}
	return &c
}

func (m *memoryOutbox) get(id uuid.UUID) *domain.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEvent(m.events[id])
}

func (m *memoryOutbox) sorted(match func(*domain.OutboxEvent) bool, limit int) []*domain.OutboxEvent {
	var out []*domain.OutboxEvent
	for _, event := range m.events {
		if match(event) {
			out = append(out, cloneEvent(event))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memoryOutbox) FindPending(ctx context.Context, tx database.Tx, limit int) ([]*domain.OutboxEvent, error) {
	return m.FindByStatus(ctx, tx, domain.OutboxEventStatusPending, limit)
}

func (m *memoryOutbox) FindByStatus(
	ctx context.Context,
	tx database.Tx,
	status domain.OutboxEventStatus,
	limit int,
) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.sorted(func(e *domain.OutboxEvent) bool { return e.Status == status }, limit), nil
}

func (m *memoryOutbox) FindRetryable(
	ctx context.Context,
	tx database.Tx,
	maxRetries int,
	limit int,
) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.sorted(func(e *domain.OutboxEvent) bool {
		return e.Status == domain.OutboxEventStatusFailed && e.CanRetry(maxRetries) && e.EventType.IsKnown()
	}, limit), nil
}

func (m *memoryOutbox) FindByID(ctx context.Context, tx database.Tx, id uuid.UUID) (*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, domain.ErrOutboxEventNotFound
	}
	return cloneEvent(event), nil
}

func (m *memoryOutbox) FindByAggregateID(
	ctx context.Context,
	tx database.Tx,
	aggregateID string,
) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e *domain.OutboxEvent) bool { return e.AggregateID == aggregateID }, 0), nil
}

func (m *memoryOutbox) Update(ctx context.Context, tx database.Tx, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[event.ID]; err != nil {
		return err
	}
	if _, ok := m.events[event.ID]; !ok {
		return domain.ErrOutboxEventNotFound
	}
	m.events[event.ID] = cloneEvent(event)
	return nil
}

func (m *memoryOutbox) CountByStatus(ctx context.Context, tx database.Tx) (map[domain.OutboxEventStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.OutboxEventStatus]int64{
		domain.OutboxEventStatusPending:   0,
		domain.OutboxEventStatusProcessed: 0,
		domain.OutboxEventStatusFailed:    0,
	}
	for _, event := range m.events {
		counts[event.Status]++
	}
	return counts, nil
}

var _ OutboxEventRepository = (*memoryOutbox)(nil)

package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/orders/internal/errors"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPublisher) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	return m.Called(ctx, topic, msgs).Error(0)
}

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	next := &mockPublisher{}
	brokerErr := errors.New("broker down")
	next.On("Publish", ctx, "order.created", mock.Anything).Return(brokerErr).Times(2)

	p := NewBreakerPublisher(next, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, discardLogger())

	assert.ErrorIs(t, p.Publish(ctx, "order.created", testMessage()), brokerErr)
	assert.ErrorIs(t, p.Publish(ctx, "order.created", testMessage()), brokerErr)
	assert.Equal(t, "open", p.State())

	err := p.Publish(ctx, "order.created", testMessage())
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	next.AssertNumberOfCalls(t, "Publish", 2)
}

func TestBreakerPublisher_HalfOpenRecovers(t *testing.T) {
	ctx := context.Background()
	next := &mockPublisher{}
	next.On("Publish", ctx, "order.created", mock.Anything).Return(errors.New("broker down")).Once()
	next.On("Publish", ctx, "order.created", mock.Anything).Return(nil).Once()

	p := NewBreakerPublisher(next, BreakerConfig{ConsecutiveFailures: 1, Timeout: 20 * time.Millisecond}, discardLogger())

	require.Error(t, p.Publish(ctx, "order.created", testMessage()))
	assert.Equal(t, "open", p.State())

	time.Sleep(40 * time.Millisecond)

	require.NoError(t, p.Publish(ctx, "order.created", testMessage()))
	assert.Equal(t, "closed", p.State())
	next.AssertExpectations(t)
}

func TestBreakerPublisher_Delegates(t *testing.T) {
	ctx := context.Background()
	next := &mockPublisher{}
	msgs := []Message{testMessage()}
	next.On("Connect", ctx).Return(nil).Once()
	next.On("PublishBatch", ctx, "order.created", msgs).Return(nil).Once()
	next.On("Disconnect", ctx).Return(nil).Once()

	p := NewBreakerPublisher(next, BreakerConfig{}, discardLogger())

	require.NoError(t, p.Connect(ctx))
	require.NoError(t, p.PublishBatch(ctx, "order.created", msgs))
	require.NoError(t, p.Disconnect(ctx))
	assert.Equal(t, "closed", p.State())
	next.AssertExpectations(t)
}

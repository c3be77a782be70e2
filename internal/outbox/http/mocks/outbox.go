// Package mocks provides mock implementations for testing outbox HTTP handlers.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/outbox/domain"
	"github.com/allisson/orders/internal/outbox/usecase"
)

// MockOutboxQueryUseCase is a mock implementation of usecase.OutboxQueryUseCase for testing.
type MockOutboxQueryUseCase struct {
	mock.Mock
}

// List mocks the List method of OutboxQueryUseCase.
func (m *MockOutboxQueryUseCase) List(
	ctx context.Context,
	input usecase.ListOutboxEventsInput,
) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OutboxEvent), args.Error(1)
}

// Get mocks the Get method of OutboxQueryUseCase.
func (m *MockOutboxQueryUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

// Retry mocks the Retry method of OutboxQueryUseCase.
func (m *MockOutboxQueryUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OutboxEvent), args.Error(1)
}

// Stats mocks the Stats method of OutboxQueryUseCase.
func (m *MockOutboxQueryUseCase) Stats(ctx context.Context) (map[domain.OutboxEventStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.OutboxEventStatus]int64), args.Error(1)
}

// MockReconciler is a mock implementation of usecase.Reconciler for testing.
type MockReconciler struct {
	mock.Mock
}

// ReconcileFailed mocks the ReconcileFailed method of Reconciler.
func (m *MockReconciler) ReconcileFailed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

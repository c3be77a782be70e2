// Package mocks provides mock implementations for testing order HTTP handlers.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/order/domain"
	"github.com/allisson/orders/internal/order/usecase"
)

// MockOrderUseCase is a mock implementation of usecase.OrderUseCase for testing.
type MockOrderUseCase struct {
	mock.Mock
}

// Create mocks the Create method of OrderUseCase.
func (m *MockOrderUseCase) Create(ctx context.Context, input usecase.CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

// Confirm mocks the Confirm method of OrderUseCase.
func (m *MockOrderUseCase) Confirm(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Confirm", id)
}

// Ship mocks the Ship method of OrderUseCase.
func (m *MockOrderUseCase) Ship(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Ship", id)
}

// Deliver mocks the Deliver method of OrderUseCase.
func (m *MockOrderUseCase) Deliver(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Deliver", id)
}

// Cancel mocks the Cancel method of OrderUseCase.
func (m *MockOrderUseCase) Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Cancel", id)
}

// Get mocks the Get method of OrderUseCase.
func (m *MockOrderUseCase) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Get", id)
}

// ListByCustomer mocks the ListByCustomer method of OrderUseCase.
func (m *MockOrderUseCase) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderUseCase) transition(ctx context.Context, method string, id domain.OrderID) (*domain.Order, error) {
	args := m.MethodCalled(method, ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

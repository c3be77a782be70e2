package usecase

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/orders/internal/database"
	"github.com/allisson/orders/internal/order/domain"
	outboxDomain "github.com/allisson/orders/internal/outbox/domain"
)

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

// MockOrderRepository is a mock implementation of OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, tx database.Tx, order *domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, tx database.Tx, id domain.OrderID) (*domain.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByCustomerID(
	ctx context.Context,
	tx database.Tx,
	customerID domain.CustomerID,
) ([]*domain.Order, error) {
	args := m.Called(ctx, tx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, tx database.Tx, order *domain.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

// MockOutboxEventWriter is a mock implementation of OutboxEventWriter
type MockOutboxEventWriter struct {
	mock.Mock
}

func (m *MockOutboxEventWriter) Save(ctx context.Context, tx database.Tx, event *outboxDomain.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

// MockOrderUseCase is a mock implementation of OrderUseCase
type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) Create(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderUseCase) Confirm(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Confirm", id)
}

func (m *MockOrderUseCase) Ship(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Ship", id)
}

func (m *MockOrderUseCase) Deliver(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Deliver", id)
}

func (m *MockOrderUseCase) Cancel(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Cancel", id)
}

func (m *MockOrderUseCase) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	return m.transition(ctx, "Get", id)
}

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

// memoryStore is a transactional in-memory store. Writes made through a handle are applied
// only when the unit of work returns nil.
type memoryStore struct {
	mu       sync.Mutex
	orders   map[domain.OrderID]domain.Order
	events   []*outboxDomain.OutboxEvent
	failSave map[string]error
}

type memoryTx struct {
	orders map[domain.OrderID]domain.Order
	events []*outboxDomain.OutboxEvent
}

func (*memoryTx) Driver() string { return "memory" }

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:   make(map[domain.OrderID]domain.Order),
		failSave: make(map[string]error),
	}
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx database.Tx) error) error {
	tx := &memoryTx{orders: make(map[domain.OrderID]domain.Order)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, order := range tx.orders {
		s.orders[id] = order
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *memoryStore) eventsFor(id domain.OrderID) []*outboxDomain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*outboxDomain.OutboxEvent
	for _, event := range s.events {
		if event.AggregateID == id.String() {
			result = append(result, event)
		}
	}
	return result
}

// memoryOrders adapts the store to OrderRepository.
type memoryOrders struct{ store *memoryStore }

func (r memoryOrders) Save(ctx context.Context, tx database.Tx, order *domain.Order) error {
	if err := r.store.failSave["order"]; err != nil {
		return err
	}
	tx.(*memoryTx).orders[order.ID] = *order
	return nil
}

func (r memoryOrders) FindByID(ctx context.Context, tx database.Tx, id domain.OrderID) (*domain.Order, error) {
	if tx != nil {
		if order, ok := tx.(*memoryTx).orders[id]; ok {
			return &order, nil
		}
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	order, ok := r.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &order, nil
}

func (r memoryOrders) FindByCustomerID(
	ctx context.Context,
	tx database.Tx,
	customerID domain.CustomerID,
) ([]*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result := make([]*domain.Order, 0)
	for _, order := range r.store.orders {
		if order.CustomerID == customerID {
			o := order
			result = append(result, &o)
		}
	}
	return result, nil
}

func (r memoryOrders) Update(ctx context.Context, tx database.Tx, order *domain.Order) error {
	tx.(*memoryTx).orders[order.ID] = *order
	return nil
}

// memoryEvents adapts the store to OutboxEventWriter.
type memoryEvents struct{ store *memoryStore }

func (r memoryEvents) Save(ctx context.Context, tx database.Tx, event *outboxDomain.OutboxEvent) error {
	if err := r.store.failSave["event"]; err != nil {
		return err
	}
	memTx := tx.(*memoryTx)
	memTx.events = append(memTx.events, event)
	return nil
}

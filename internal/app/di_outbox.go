package app

import (
	"fmt"

	"github.com/allisson/orders/internal/database"
	orderUsecase "github.com/allisson/orders/internal/order/usecase"
	outboxHTTP "github.com/allisson/orders/internal/outbox/http"
	outboxRepository "github.com/allisson/orders/internal/outbox/repository"
	outboxUsecase "github.com/allisson/orders/internal/outbox/usecase"
)

// outboxStore is the outbox repository seen from both sides: order use cases append to it and
// the dispatcher drains it.
type outboxStore interface {
	orderUsecase.OutboxEventWriter
	outboxUsecase.OutboxEventRepository
}

// OutboxRepository returns the outbox event repository for the configured database driver.
func (c *Container) OutboxRepository() (outboxStore, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// OutboxQueryUseCase returns the operator queries over the outbox, decorated with business metrics.
func (c *Container) OutboxQueryUseCase() (outboxUsecase.OutboxQueryUseCase, error) {
	var err error
	c.outboxQueryUseCaseInit.Do(func() {
		c.outboxQueryUseCase, err = c.initOutboxQueryUseCase()
		if err != nil {
			c.initErrors["outboxQueryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxQueryUseCase"]; exists {
		return nil, storedErr
	}
	return c.outboxQueryUseCase, nil
}

// Dispatcher returns the outbox dispatcher. It is created stopped; callers decide whether to Start it.
func (c *Container) Dispatcher() (*outboxUsecase.Dispatcher, error) {
	var err error
	c.dispatcherInit.Do(func() {
		c.dispatcher, err = c.initDispatcher()
		if err != nil {
			c.initErrors["dispatcher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispatcher"]; exists {
		return nil, storedErr
	}
	return c.dispatcher, nil
}

// OutboxHandler returns the outbox admin HTTP handler.
func (c *Container) OutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	var err error
	c.outboxHandlerInit.Do(func() {
		c.outboxHandler, err = c.initOutboxHandler()
		if err != nil {
			c.initErrors["outboxHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxHandler"]; exists {
		return nil, storedErr
	}
	return c.outboxHandler, nil
}

// DispatcherConfig maps the application configuration to the dispatcher configuration.
func (c *Container) DispatcherConfig() outboxUsecase.Config {
	return outboxUsecase.Config{
		BatchSize:          c.config.OutboxBatchSize,
		MaxRetries:         c.config.OutboxMaxRetries,
		ProcessingInterval: c.config.OutboxProcessingInterval,
		ReconcileInterval:  c.config.OutboxReconcileInterval,
		PublishTimeout:     c.config.BrokerPublishTimeout,
		LockKey:            c.config.OutboxLockKey,
		LockTTL:            c.config.OutboxLockTTL,
	}
}

func (c *Container) initOutboxRepository() (outboxStore, error) {
	switch c.config.DBDriver {
	case database.DriverMongoDB:
		client, err := c.MongoClient()
		if err != nil {
			return nil, fmt.Errorf("failed to get mongodb client for outbox repository: %w", err)
		}
		return outboxRepository.NewMongoDBOutboxEventRepository(client.Database(c.config.MongoDBDatabase)), nil
	case database.DriverMySQL, database.DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}
	if c.config.DBDriver == database.DriverMySQL {
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	}
	return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
}

func (c *Container) initOutboxQueryUseCase() (outboxUsecase.OutboxQueryUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox query use case: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox query use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox query use case: %w", err)
	}

	useCase := outboxUsecase.NewOutboxQueryUseCase(txManager, outboxRepo)
	return outboxUsecase.NewOutboxQueryUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initDispatcher() (*outboxUsecase.Dispatcher, error) {
	logger := c.Logger()

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for dispatcher: %w", err)
	}

	publisher, err := c.Publisher()
	if err != nil {
		return nil, fmt.Errorf("failed to get publisher for dispatcher: %w", err)
	}

	locker, err := c.Locker()
	if err != nil {
		return nil, fmt.Errorf("failed to get locker for dispatcher: %w", err)
	}

	outboxMetrics, err := c.OutboxMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox metrics for dispatcher: %w", err)
	}

	dispatcher, err := outboxUsecase.NewDispatcher(
		c.DispatcherConfig(),
		outboxRepo,
		publisher,
		logger,
		outboxUsecase.WithLocker(locker),
		outboxUsecase.WithTracer(c.Tracer()),
		outboxUsecase.WithMetrics(outboxMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox dispatcher: %w", err)
	}
	return dispatcher, nil
}

func (c *Container) initOutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	queryUseCase, err := c.OutboxQueryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox query use case for outbox handler: %w", err)
	}

	dispatcher, err := c.Dispatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatcher for outbox handler: %w", err)
	}

	return outboxHTTP.NewOutboxHandler(queryUseCase, dispatcher, c.Logger()), nil
}

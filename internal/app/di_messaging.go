package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/allisson/orders/internal/config"
	"github.com/allisson/orders/internal/lock"
	"github.com/allisson/orders/internal/messaging"
)

// Publisher returns the message bus publisher for the configured broker, guarded by a circuit
// breaker unless disabled. It is not connected; the dispatcher connects it on Start.
func (c *Container) Publisher() (messaging.Publisher, error) {
	var err error
	c.publisherInit.Do(func() {
		c.publisher, err = c.initPublisher()
		if err != nil {
			c.initErrors["publisher"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publisher"]; exists {
		return nil, storedErr
	}
	return c.publisher, nil
}

// RedisClient returns the redis client used by the dispatcher lock.
func (c *Container) RedisClient() (*redis.Client, error) {
	var err error
	c.redisClientInit.Do(func() {
		c.redisClient, err = lock.NewRedisClient(c.ctx, lock.RedisConfig{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
		if err != nil {
			c.initErrors["redisClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["redisClient"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// Locker returns the dispatcher lock: a redis lease when OUTBOX_LOCK_ENABLED, a no-op lock otherwise.
func (c *Container) Locker() (lock.Locker, error) {
	var err error
	c.lockerInit.Do(func() {
		c.locker, err = c.initLocker()
		if err != nil {
			c.initErrors["locker"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["locker"]; exists {
		return nil, storedErr
	}
	return c.locker, nil
}

func (c *Container) initPublisher() (messaging.Publisher, error) {
	logger := c.Logger()

	var publisher messaging.Publisher
	switch c.config.BrokerDriver {
	case config.BrokerKafka:
		publisher = messaging.NewKafkaPublisher(messaging.KafkaConfig{
			Brokers:      c.config.KafkaBrokerList(),
			ClientID:     c.config.KafkaClientID,
			WriteTimeout: c.config.BrokerPublishTimeout,
		}, logger)
	case config.BrokerRabbitMQ:
		publisher = messaging.NewRabbitMQPublisher(messaging.RabbitMQConfig{
			URL:            c.config.RabbitMQURL,
			Exchange:       c.config.RabbitMQExchange,
			ConfirmTimeout: c.config.BrokerPublishTimeout,
		}, logger)
	case config.BrokerMemory:
		publisher = messaging.NewPubSubPublisher(c.config.PubSubURLTemplate, logger)
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", c.config.BrokerDriver)
	}

	if !c.config.BrokerBreakerEnabled {
		return publisher, nil
	}

	failures := c.config.BrokerBreakerConsecutiveFailures
	if failures < 0 {
		return nil, fmt.Errorf("invalid breaker consecutive failures: %d", failures)
	}
	return messaging.NewBreakerPublisher(publisher, messaging.BreakerConfig{
		Name:                c.config.BrokerDriver,
		ConsecutiveFailures: uint32(failures),
		Timeout:             c.config.BrokerBreakerTimeout,
	}, logger), nil
}

func (c *Container) initLocker() (lock.Locker, error) {
	if !c.config.OutboxLockEnabled {
		return lock.NoopLocker{}, nil
	}

	client, err := c.RedisClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for dispatcher lock: %w", err)
	}
	return lock.NewRedisLocker(client, c.config.OutboxLockTTL, c.Logger()), nil
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultRabbitMQExchange       = "orders.events"
	defaultRabbitMQConfirmTimeout = 5 * time.Second
	confirmChannelBuffer          = 256
)

var (
	// ErrPublishNacked indicates the broker refused the message.
	ErrPublishNacked = errors.New("message was nacked by broker")

	// ErrConfirmTimeout indicates the broker did not confirm the message in time.
	ErrConfirmTimeout = errors.New("confirmation timed out")
)

// RabbitMQConfig holds RabbitMQ publisher settings.
type RabbitMQConfig struct {
	URL            string
	Exchange       string
	ConfirmTimeout time.Duration
}

// amqpChannel is the subset of *amqp.Channel used by the publisher.
type amqpChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes to a durable topic exchange with publisher confirms.
// The outbox topic is used as routing key.
type RabbitMQPublisher struct {
	cfg    RabbitMQConfig
	logger *slog.Logger
	dial   func(url string) (amqpChannel, io.Closer, error)

	mu       sync.Mutex
	ch       amqpChannel
	conn     io.Closer
	confirms chan amqp.Confirmation
}

// NewRabbitMQPublisher creates a RabbitMQPublisher. No connection is made until Connect.
func NewRabbitMQPublisher(cfg RabbitMQConfig, logger *slog.Logger) *RabbitMQPublisher {
	if cfg.Exchange == "" {
		cfg.Exchange = defaultRabbitMQExchange
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultRabbitMQConfirmTimeout
	}
	return &RabbitMQPublisher{cfg: cfg, logger: logger, dial: dialAMQP}
}

func dialAMQP(url string) (amqpChannel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	return ch, conn, nil
}

// Connect dials the broker, enables confirm mode and declares the exchange.
func (p *RabbitMQPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return nil
	}

	ch, conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return err
	}

	fail := func(err error) error {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return fail(fmt.Errorf("failed to enable confirm mode: %w", err))
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, confirmChannelBuffer))

	if err := ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("failed to declare exchange %s: %w", p.cfg.Exchange, err))
	}

	p.ch = ch
	p.conn = conn
	p.confirms = confirms
	p.logger.Info("rabbitmq publisher connected", slog.String("exchange", p.cfg.Exchange))
	return nil
}

// Disconnect closes the channel and the connection.
func (p *RabbitMQPublisher) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return nil
	}

	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close rabbitmq channel: %w", err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close rabbitmq connection: %w", err))
		}
	}

	p.ch = nil
	p.conn = nil
	p.confirms = nil
	p.logger.Info("rabbitmq publisher disconnected")
	return errors.Join(errs...)
}

// Publish sends msg and waits for the broker confirmation.
func (p *RabbitMQPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return ErrNotConnected
	}

	publishing, err := toPublishing(msg)
	if err != nil {
		return err
	}

	if err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, topic, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish to rabbitmq: %w", err)
	}

	return p.waitForConfirm(ctx)
}

// PublishBatch publishes msgs one at a time, stopping at the first failure.
func (p *RabbitMQPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	for _, msg := range msgs {
		if err := p.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

func (p *RabbitMQPublisher) waitForConfirm(ctx context.Context) error {
	timeout := time.NewTimer(p.cfg.ConfirmTimeout)
	defer timeout.Stop()

	select {
	case confirmed, ok := <-p.confirms:
		if !ok {
			return ErrNotConnected
		}
		if !confirmed.Ack {
			return fmt.Errorf("%w: delivery_tag=%d", ErrPublishNacked, confirmed.DeliveryTag)
		}
		return nil
	case <-timeout.C:
		return ErrConfirmTimeout
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	}
}

func toPublishing(msg Message) (amqp.Publishing, error) {
	body, err := msg.Body()
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode message %s: %w", msg.EventID, err)
	}

	headers := amqp.Table{}
	for key, value := range msg.Headers() {
		headers[key] = value
	}
	headers["aggregate-id"] = msg.AggregateID

	return amqp.Publishing{
		Headers:      headers,
		ContentType:  ContentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.EventID,
		Timestamp:    msg.OccurredOn,
		Type:         msg.EventType,
		Body:         body,
	}, nil
}

package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	defaultKafkaConnAttempts = 10
	defaultKafkaConnTimeout  = time.Second
)

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers      []string
	ClientID     string
	ConnAttempts int
	ConnTimeout  time.Duration
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes messages with segmentio/kafka-go.
//
// Messages are keyed by aggregate id and partitioned with a hash balancer, so events of one
// aggregate keep their relative order. Writes wait for acknowledgement from all in-sync replicas.
// kafka-go has no idempotent producer mode; consumers deduplicate on eventId.
type KafkaPublisher struct {
	cfg    KafkaConfig
	logger *slog.Logger

	mu        sync.RWMutex
	writer    messageWriter
	newWriter func() messageWriter
	ping      func(ctx context.Context) error
}

// NewKafkaPublisher creates a KafkaPublisher. No connection is made until Connect.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if cfg.ConnAttempts <= 0 {
		cfg.ConnAttempts = defaultKafkaConnAttempts
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = defaultKafkaConnTimeout
	}

	p := &KafkaPublisher{cfg: cfg, logger: logger}
	p.newWriter = p.defaultWriter
	p.ping = p.defaultPing
	return p
}

func (p *KafkaPublisher) defaultWriter() messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           p.cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{ClientID: p.cfg.ClientID},
	}
}

func (p *KafkaPublisher) defaultPing(ctx context.Context) error {
	if len(p.cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("failed to list kafka brokers: %w", err)
	}
	return nil
}

// Connect dials the brokers, retrying up to ConnAttempts times, and creates the writer.
func (p *KafkaPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return nil
	}

	var err error
	for attempt := 1; attempt <= p.cfg.ConnAttempts; attempt++ {
		if err = p.ping(ctx); err == nil {
			break
		}

		p.logger.Warn("kafka producer is trying to connect",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.cfg.ConnAttempts),
			slog.Any("error", err),
		)

		if attempt == p.cfg.ConnAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.ConnTimeout):
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to kafka after %d attempts: %w", p.cfg.ConnAttempts, err)
	}

	p.writer = p.newWriter()
	p.logger.Info("kafka producer connected", slog.Any("brokers", p.cfg.Brokers))
	return nil
}

// Disconnect flushes and closes the writer.
func (p *KafkaPublisher) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}

	err := p.writer.Close()
	p.writer = nil
	if err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}

	p.logger.Info("kafka producer disconnected")
	return nil
}

// Publish writes a single message to topic.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	return p.PublishBatch(ctx, topic, []Message{msg})
}

// PublishBatch writes msgs to topic in one request.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if len(msgs) == 0 {
		return nil
	}

	p.mu.RLock()
	writer := p.writer
	p.mu.RUnlock()

	if writer == nil {
		return ErrNotConnected
	}

	records := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		record, err := toKafkaMessage(topic, msg)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	if err := writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}
	return nil
}

func toKafkaMessage(topic string, msg Message) (kafka.Message, error) {
	body, err := msg.Body()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode message %s: %w", msg.EventID, err)
	}

	headers := make([]kafka.Header, 0, 3)
	for _, key := range []string{HeaderContentType, HeaderEventType, HeaderTimestamp} {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(msg.Headers()[key])})
	}

	return kafka.Message{
		Topic:   topic,
		Key:     msg.Key(),
		Value:   body,
		Headers: headers,
	}, nil
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// DefaultPubSubURLTemplate routes every topic to the in-process memory driver.
const DefaultPubSubURLTemplate = "mem://{topic}"

// TopicOpener opens the gocloud topic for an outbox topic name.
type TopicOpener func(ctx context.Context, topic string) (*pubsub.Topic, error)

// PubSubPublisher publishes through gocloud.dev/pubsub.
// Topics are opened lazily from a URL template in which "{topic}" is replaced with the outbox topic.
type PubSubPublisher struct {
	open   TopicOpener
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
	topics    map[string]*pubsub.Topic
}

// NewPubSubPublisher creates a publisher that opens topics from urlTemplate.
func NewPubSubPublisher(urlTemplate string, logger *slog.Logger) *PubSubPublisher {
	if urlTemplate == "" {
		urlTemplate = DefaultPubSubURLTemplate
	}
	return NewPubSubPublisherWithOpener(func(ctx context.Context, topic string) (*pubsub.Topic, error) {
		return pubsub.OpenTopic(ctx, strings.ReplaceAll(urlTemplate, "{topic}", topic))
	}, logger)
}

// NewPubSubPublisherWithOpener creates a publisher with a custom topic opener.
func NewPubSubPublisherWithOpener(open TopicOpener, logger *slog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		open:   open,
		logger: logger,
		topics: make(map[string]*pubsub.Topic),
	}
}

func (p *PubSubPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

// Disconnect shuts down every opened topic.
func (p *PubSubPublisher) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, topic := range p.topics {
		if err := topic.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown topic %s: %w", name, err))
		}
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.connected = false
	return errors.Join(errs...)
}

func (p *PubSubPublisher) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, ErrNotConnected
	}
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic, err := p.open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open topic %s: %w", name, err)
	}
	p.topics[name] = topic
	p.logger.Debug("pubsub topic opened", slog.String("topic", name))
	return topic, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	t, err := p.topic(ctx, topic)
	if err != nil {
		return err
	}

	body, err := msg.Body()
	if err != nil {
		return fmt.Errorf("failed to encode message %s: %w", msg.EventID, err)
	}

	metadata := msg.Headers()
	metadata["event-id"] = msg.EventID
	metadata["aggregate-id"] = msg.AggregateID

	if err := t.Send(ctx, &pubsub.Message{Body: body, Metadata: metadata}); err != nil {
		return fmt.Errorf("failed to send to topic %s: %w", topic, err)
	}
	return nil
}

func (p *PubSubPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	for _, msg := range msgs {
		if err := p.Publish(ctx, topic, msg); err != nil {
			return err
		}
	}
	return nil
}

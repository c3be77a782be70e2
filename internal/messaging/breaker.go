package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig controls when the breaker opens and how long it stays open.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	Timeout             time.Duration
}

// BreakerPublisher guards a Publisher with a circuit breaker.
// While the breaker is open, Publish fails fast with ErrBrokerUnavailable.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerPublisher wraps next with a breaker that opens after cfg.ConsecutiveFailures failures.
func NewBreakerPublisher(next Publisher, cfg BreakerConfig, logger *slog.Logger) *BreakerPublisher {
	if cfg.Name == "" {
		cfg.Name = "message-broker"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *BreakerPublisher) Connect(ctx context.Context) error {
	return p.next.Connect(ctx)
}

func (p *BreakerPublisher) Disconnect(ctx context.Context) error {
	return p.next.Disconnect(ctx)
}

func (p *BreakerPublisher) Publish(ctx context.Context, topic string, msg Message) error {
	return p.execute(func() error { return p.next.Publish(ctx, topic, msg) })
}

func (p *BreakerPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	return p.execute(func() error { return p.next.PublishBatch(ctx, topic, msgs) })
}

// State returns the breaker state ("closed", "half-open" or "open").
func (p *BreakerPublisher) State() string {
	return p.breaker.State().String()
}

func (p *BreakerPublisher) execute(fn func() error) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBrokerUnavailable, err)
	}
	return err
}

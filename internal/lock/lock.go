// Package lock provides the lease lock that keeps a single dispatcher instance draining the
// outbox at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// ErrEmptyKey indicates TryLock was called without a key.
var ErrEmptyKey = errors.New("lock key cannot be empty")

// Handle extends or releases a held lock.
type Handle interface {
	// Extend resets the lease expiry to the full ttl. It returns false when the lease was already
	// lost, either because it expired or because another holder took the key.
	Extend(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Locker acquires non-blocking leases.
// TryLock returns (nil, false, nil) when another holder has the lock.
type Locker interface {
	TryLock(ctx context.Context, key string) (Handle, bool, error)
}

// RedisConfig holds the redis connection used by RedisLocker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a go-redis client and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisLocker is a redsync backed Locker. A lease expires after ttl if its holder dies.
type RedisLocker struct {
	redsync *redsync.Redsync
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRedisLocker creates a RedisLocker on top of client.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		redsync: redsync.New(goredis.NewPool(client)),
		ttl:     ttl,
		logger:  logger,
	}
}

// TryLock makes a single attempt to acquire key.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (Handle, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrEmptyKey
	}

	mutex := l.redsync.NewMutex(
		key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			l.logger.Debug("lock already held by another process", slog.String("lock_key", key))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	l.logger.Debug("lock acquired", slog.String("lock_key", key))
	return &redisHandle{mutex: mutex}, true, nil
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}

type redisHandle struct {
	mutex *redsync.Mutex
}

func (h *redisHandle) Extend(ctx context.Context) (bool, error) {
	ok, err := h.mutex.ExtendContext(ctx)
	if ok {
		return true, nil
	}
	var redisErr *redsync.RedisError
	if errors.As(err, &redisErr) {
		return false, fmt.Errorf("failed to extend lock %s: %w", h.mutex.Name(), err)
	}
	return false, nil
}

func (h *redisHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", h.mutex.Name(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s was no longer held", h.mutex.Name())
	}
	return nil
}

// NoopLocker always grants the lock. It suits single instance deployments.
type NoopLocker struct{}

func (NoopLocker) TryLock(ctx context.Context, key string) (Handle, bool, error) {
	return noopHandle{}, true, nil
}

type noopHandle struct{}

func (noopHandle) Extend(ctx context.Context) (bool, error) { return true, nil }

func (noopHandle) Unlock(ctx context.Context) error { return nil }

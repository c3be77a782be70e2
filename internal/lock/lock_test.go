package lock

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisLocker_TryLock(t *testing.T) {
	ctx := context.Background()
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute, testLogger())

	handle, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, handle)

	other, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, other)

	require.NoError(t, handle.Unlock(ctx))

	again, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, again.Unlock(ctx))
}

func TestRedisLocker_LeaseExpires(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second, testLogger())

	_, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	handle, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, handle.Unlock(ctx))
}

func TestRedisHandle_Extend(t *testing.T) {
	ctx := context.Background()

	t.Run("KeepsTheLeaseAlive", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, time.Minute, testLogger())

		handle, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
		require.NoError(t, err)
		require.True(t, ok)

		for range 3 {
			mr.FastForward(40 * time.Second)
			extended, err := handle.Extend(ctx)
			require.NoError(t, err)
			require.True(t, extended)
		}

		_, ok, err = locker.TryLock(ctx, "outbox:dispatcher")
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, handle.Unlock(ctx))
	})

	t.Run("LeaseTakenAfterExpiry", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, time.Second, testLogger())

		handle, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(2 * time.Second)
		other, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
		require.NoError(t, err)
		require.True(t, ok)

		extended, err := handle.Extend(ctx)
		assert.NoError(t, err)
		assert.False(t, extended)

		// the new holder keeps its lease
		extended, err = other.Extend(ctx)
		require.NoError(t, err)
		assert.True(t, extended)
	})

	t.Run("RedisDown", func(t *testing.T) {
		mr, client := setupTestRedis(t)
		locker := NewRedisLocker(client, time.Minute, testLogger())

		handle, ok, err := locker.TryLock(ctx, "outbox:dispatcher")
		require.NoError(t, err)
		require.True(t, ok)

		mr.Close()
		extended, err := handle.Extend(ctx)

		assert.False(t, extended)
		assert.ErrorContains(t, err, "failed to extend lock")
	})
}

func TestRedisLocker_EmptyKey(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 0, testLogger())

	_, ok, err := locker.TryLock(context.Background(), "  ")

	assert.ErrorIs(t, err, ErrEmptyKey)
	assert.False(t, ok)
}

func TestRedisLocker_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute, testLogger())
	mr.Close()

	_, ok, err := locker.TryLock(context.Background(), "outbox:dispatcher")

	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	require.NoError(t, err)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisConfig{Addr: addr})
	assert.ErrorContains(t, err, "failed to ping redis")
}

func TestNoopLocker(t *testing.T) {
	handle, ok, err := NoopLocker{}.TryLock(context.Background(), "anything")

	require.NoError(t, err)
	assert.True(t, ok)

	extended, err := handle.Extend(context.Background())
	require.NoError(t, err)
	assert.True(t, extended)
	assert.NoError(t, handle.Unlock(context.Background()))
}

package locker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLockRedis implements SET NX / compare-and-delete over an in-memory map.
type fakeLockRedis struct {
	values  map[string]string
	failAll error
}

func newFakeLockRedis() *fakeLockRedis {
	return &fakeLockRedis{values: map[string]string{}}
}

func (f *fakeLockRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.failAll != nil {
		return redis.NewBoolResult(false, f.failAll)
	}
	if _, held := f.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.failAll != nil {
		return redis.NewCmdResult(nil, f.failAll)
	}
	// Mirrors the unlock script: delete only when the token still matches.
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestTryLockAcquiresOnce(t *testing.T) {
	fr := newFakeLockRedis()
	lock := NewRedisLock(fr)
	ctx := context.Background()

	token, err := lock.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = lock.TryLock(ctx, "lock:test", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)
}

func TestUnlockReleasesForNextHolder(t *testing.T) {
	fr := newFakeLockRedis()
	lock := NewRedisLock(fr)
	ctx := context.Background()

	token, err := lock.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock(ctx, "lock:test", token))

	_, err = lock.TryLock(ctx, "lock:test", time.Minute)
	assert.NoError(t, err)
}

func TestUnlockWithStaleTokenLeavesLockHeld(t *testing.T) {
	fr := newFakeLockRedis()
	lock := NewRedisLock(fr)
	ctx := context.Background()

	_, err := lock.TryLock(ctx, "lock:test", time.Minute)
	require.NoError(t, err)

	// A previous holder whose TTL expired must not free the current lock.
	require.NoError(t, lock.Unlock(ctx, "lock:test", "stale-token"))
	_, err = lock.TryLock(ctx, "lock:test", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)
}

func TestTryLockBackendErrorIsNotLockUnavailable(t *testing.T) {
	fr := newFakeLockRedis()
	fr.failAll = errors.New("connection reset")
	lock := NewRedisLock(fr)

	_, err := lock.TryLock(context.Background(), "lock:test", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrLockUnavailable)
}

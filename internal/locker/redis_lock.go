// Package locker implements the cluster-wide TTL lock used to serialize
// scheduled jobs across instances.
package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only if the caller still holds it, so an
// instance that outlived its TTL cannot release a successor's lock.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// redisLockClient is the slice of the go-redis API the lock needs.
// *redis.Client satisfies it; tests substitute a fake.
type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLock acquires TTL-bound locks in Redis via SET NX PX.
type RedisLock struct {
	client redisLockClient
}

// NewRedisLock wraps a go-redis client.
func NewRedisLock(client redisLockClient) *RedisLock {
	return &RedisLock{client: client}
}

// TryLock attempts to acquire the key for ttl and returns an owner token.
// domain.ErrLockUnavailable means another instance holds it; that is a normal
// skip condition, not a fault.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %q: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q held by another instance", domain.ErrLockUnavailable, key)
	}
	return token, nil
}

// Unlock releases the key if token still owns it. Releasing a lock that
// already expired is not an error.
func (l *RedisLock) Unlock(ctx context.Context, key, token string) error {
	if err := l.client.Eval(ctx, unlockScript, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	return nil
}

// Package cache provides the fail-open read-through balance cache. Backend
// unavailability degrades to a miss, never to an error: the ledger engine
// remains the source of truth and stays correct with the cache gone.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "balance"

// redisCommands is the slice of the go-redis API the cache needs. *redis.Client
// and redis.Cmdable both satisfy it; tests substitute a fake.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// BalanceCache caches account balances with a fixed TTL.
type BalanceCache struct {
	client redisCommands
	ttl    time.Duration
}

// New creates a cache. A nil client yields a cache that always misses.
func New(client redisCommands, ttl time.Duration) *BalanceCache {
	return &BalanceCache{client: client, ttl: ttl}
}

// Get returns the cached balance and true on a hit. Backend errors and
// corrupted values are absorbed as misses; corruption also evicts the key so
// a garbage balance is never served.
func (c *BalanceCache) Get(ctx context.Context, account domain.AccountID) (int64, bool) {
	if c.client == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, cacheKey(account)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.IncrementBalanceCacheEvent("error")
			zap.L().Warn("balance cache read failed", zap.String("account", account.String()), zap.Error(err))
		} else {
			observability.IncrementBalanceCacheEvent("miss")
		}
		return 0, false
	}

	nano, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		observability.IncrementBalanceCacheEvent("corrupt")
		zap.L().Warn("balance cache value corrupted, evicting",
			zap.String("account", account.String()), zap.String("value", val))
		c.Evict(ctx, account)
		return 0, false
	}

	observability.IncrementBalanceCacheEvent("hit")
	return nano, true
}

// Put stores a balance for the configured TTL. Failures are logged, never raised.
func (c *BalanceCache) Put(ctx context.Context, account domain.AccountID, nano int64) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(account), strconv.FormatInt(nano, 10), c.ttl).Err(); err != nil {
		observability.IncrementBalanceCacheEvent("error")
		zap.L().Warn("balance cache write failed", zap.String("account", account.String()), zap.Error(err))
	}
}

// Evict drops the cached balance for an account. Failures are logged only;
// the TTL bounds how long a stale value can outlive a failed eviction.
func (c *BalanceCache) Evict(ctx context.Context, account domain.AccountID) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(account)).Err(); err != nil {
		observability.IncrementBalanceCacheEvent("error")
		zap.L().Warn("balance cache evict failed", zap.String("account", account.String()), zap.Error(err))
	}
}

func cacheKey(account domain.AccountID) string {
	return fmt.Sprintf("%s:%s", keyPrefix, account)
}

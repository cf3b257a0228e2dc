package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kajiya-works/kajiya/config"
	"github.com/redis/go-redis/v9"
)

// redisKey prefixes a cache key with the configured namespace
func redisKey(cfg config.CacheConfig, key string) string {
	return cfg.RedisPrefix + key
}

// repriceLockKey builds the per-quote reprice lock key
func repriceLockKey(cfg config.CacheConfig, quoteUUID string) string {
	return redisKey(cfg, fmt.Sprintf("quote:reprice-lock:%s", quoteUUID))
}

// acquireRepriceLock takes the distributed per-quote reprice lock (SETNX with
// TTL). Returns ErrRepriceInProgress when another request holds it. The
// returned release func is safe to call after the TTL has elapsed.
func acquireRepriceLock(ctx context.Context, rc *redis.Client, cfg config.CacheConfig, quoteUUID string, ttl time.Duration) (func(), error) {
	if rc == nil {
		return nil, ErrCacheNotAvailable
	}

	lockKey := repriceLockKey(cfg, quoteUUID)
	ok, err := rc.SetNX(ctx, lockKey, "1", ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire reprice lock: %w", err)
	}
	if !ok {
		return nil, ErrRepriceInProgress
	}

	release := func() {
		_ = rc.Del(context.Background(), lockKey).Err()
	}
	return release, nil
}

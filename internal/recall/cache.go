package recall

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCacheTTL = 2 * time.Minute

// RedisCache caches recall results per (user, sanitized query) with a
// short TTL. All failures degrade to a miss; recall works identically
// with no cache attached.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a cache over the given redis client. A zero
// ttl uses the default.
func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(userID, query string) string {
	return "recall:" + userID + ":" + query
}

func (c *RedisCache) Get(ctx context.Context, userID, query string) ([]Result, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(userID, query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("recall cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *RedisCache) Set(ctx context.Context, userID, query string, results []Result) {
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(userID, query), data, c.ttl).Err(); err != nil {
		c.logger.Debug("recall cache write failed", zap.Error(err))
	}
}

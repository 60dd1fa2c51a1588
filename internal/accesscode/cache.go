package accesscode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "servetrack:code:current"

// Cache mirrors the current daily code in redis so reads survive a primary
// store outage.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached code, or nil when absent.
func (c *Cache) Get(ctx context.Context) (*DailyCode, error) {
	raw, err := c.client.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var code DailyCode
	if err := json.Unmarshal([]byte(raw), &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// Set stores the code until its own expiry plus a small grace period, so an
// expired-but-cached code still validates as expired rather than missing.
func (c *Cache) Set(ctx context.Context, code DailyCode) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return err
	}
	ttl := time.Until(code.ExpiresAt) + time.Hour
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return c.client.Set(ctx, cacheKey, raw, ttl).Err()
}

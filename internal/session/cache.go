package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	activeKey    = "servetrack:sessions:active"
	completedKey = "servetrack:sessions:completed"
	completedCap = 500
	cacheTTL     = 48 * time.Hour
)

// Cache mirrors session records in redis so reads survive a primary store
// outage. The mirror is refreshed by the worker after successful primary
// writes; it can lag briefly, which is the documented consistency window of
// the dual-store design.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// PutActive stores an active session in the mirror.
func (c *Cache) PutActive(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, activeKey, s.ID, raw)
	pipe.Expire(ctx, activeKey, cacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RemoveActive drops an active session from the mirror. Removing a missing
// entry is success.
func (c *Cache) RemoveActive(ctx context.Context, id string) error {
	return c.client.HDel(ctx, activeKey, id).Err()
}

// PutCompleted appends a completed session, trimming the mirror to the most
// recent entries.
func (c *Cache) PutCompleted(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, completedKey, raw)
	pipe.LTrim(ctx, completedKey, 0, completedCap-1)
	pipe.Expire(ctx, completedKey, cacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// ActiveByID reads one active session from the mirror.
func (c *Cache) ActiveByID(ctx context.Context, id string) (Session, error) {
	raw, err := c.client.HGet(ctx, activeKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotActive
		}
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// ListActive reads every mirrored active session.
func (c *Cache) ListActive(ctx context.Context) ([]Session, error) {
	raw, err := c.client.HGetAll(ctx, activeKey).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(raw))
	for _, v := range raw {
		var s Session
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// ListCompleted reads mirrored completed sessions, newest first.
func (c *Cache) ListCompleted(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	raw, err := c.client.LRange(ctx, completedKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(raw))
	for _, v := range raw {
		var s Session
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

package guard

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckinCache is the per-device fast-path marker store: one entry per class
// holding the calendar date of the last successful self check-in. Advisory
// only; the server record always wins.
type CheckinCache interface {
	Marked(ctx context.Context, classID, date string) (bool, error)
	Mark(ctx context.Context, classID, date string) error
}

// MemoryCache is the in-process cache used by tests and single-device runs.
type MemoryCache struct {
	mu    sync.Mutex
	dates map[string]string
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{dates: make(map[string]string)}
}

// Marked reports whether the stored date for classID equals date.
func (c *MemoryCache) Marked(_ context.Context, classID, date string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dates[classID] == date, nil
}

// Mark stores date as the last check-in day for classID.
func (c *MemoryCache) Mark(_ context.Context, classID, date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dates[classID] = date
	return nil
}

// RedisCache keeps the markers in Redis so they survive process restarts.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache builds a cache under prefix (default "checkin"). Entries
// expire after 48h; a marker is only ever compared against today's date so
// anything older is dead weight.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "checkin"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: 48 * time.Hour}
}

func (c *RedisCache) key(classID string) string {
	return c.prefix + ":" + classID
}

// Marked reports whether the stored date for classID equals date.
func (c *RedisCache) Marked(ctx context.Context, classID, date string) (bool, error) {
	val, err := c.client.Get(ctx, c.key(classID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == date, nil
}

// Mark stores date as the last check-in day for classID.
func (c *RedisCache) Mark(ctx context.Context, classID, date string) error {
	return c.client.Set(ctx, c.key(classID), date, c.ttl).Err()
}

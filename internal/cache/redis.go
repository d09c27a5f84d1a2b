package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/campushub/services/events/config"
)

// unreadCountTTL bounds staleness to well under one client polling interval.
const unreadCountTTL = 5 * time.Second

// RedisCache provides caching using Redis
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// GetUnreadCount retrieves a cached unread-notification count. The second
// return value reports whether the cache held a value.
func (c *RedisCache) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	if !c.enabled {
		return 0, false, nil
	}

	value, err := c.client.Get(ctx, unreadCountKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "failed to get unread count from Redis")
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to parse cached unread count")
	}
	return count, true, nil
}

// SetUnreadCount caches a user's unread-notification count.
func (c *RedisCache) SetUnreadCount(ctx context.Context, userID uuid.UUID, count int64) error {
	if !c.enabled {
		return nil
	}

	err := c.client.Set(ctx, unreadCountKey(userID), count, unreadCountTTL).Err()
	if err != nil {
		return errors.Wrap(err, "failed to set unread count in Redis")
	}
	return nil
}

// InvalidateUnreadCounts drops the cached counts for the given users, called
// after fan-out writes and mark-read updates.
func (c *RedisCache) InvalidateUnreadCounts(ctx context.Context, userIDs ...uuid.UUID) error {
	if !c.enabled || len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = unreadCountKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to invalidate unread counts in Redis")
	}
	return nil
}

func unreadCountKey(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:unread:%s", userID.String())
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}

package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client is a read-through cache in front of menu-item lookups. Batch
// validation and pricing hit the menu on every order, so short-TTL caching
// takes that load off Postgres. Cache failures degrade silently to the
// store.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient connects to Redis.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func menuItemKey(id int64) string {
	return fmt.Sprintf("menu-item:%d", id)
}

// GetMenuItem returns a cached menu item, reporting whether it was found.
func (c *Client) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, bool) {
	data, err := c.rdb.Get(ctx, menuItemKey(id)).Bytes()
	if err != nil {
		return nil, false
	}

	var item models.MenuItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false
	}
	return &item, true
}

// SetMenuItem caches a menu item for the configured TTL.
func (c *Client) SetMenuItem(ctx context.Context, item *models.MenuItem) {
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, menuItemKey(item.ID), data, c.ttl)
}

// InvalidateMenuItem drops a menu item from the cache. Menu management
// calls this when prices or availability flags change.
func (c *Client) InvalidateMenuItem(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, menuItemKey(id)).Err()
}

// Package statuscache keeps the latest known fulfillment state per order in
// Redis. It is a degraded-mode read path only; the saga itself is the source
// of truth while it is alive.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "order_status:"

// DefaultTTL bounds how stale a cached status may get.
const DefaultTTL = 5 * time.Minute

// ErrMiss signals no cached status for the order.
var ErrMiss = errors.New("status cache miss")

// Entry is the cached value for one order.
type Entry struct {
	Step      string    `json:"step"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache stores the latest step per order id.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a Cache. ttl <= 0 falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// SetStep records the latest step for an order.
func (c *Cache) SetStep(ctx context.Context, orderID, step string) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(Entry{Step: step, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+orderID, data, c.ttl).Err()
}

// Step returns the cached entry for an order, or ErrMiss.
func (c *Cache) Step(ctx context.Context, orderID string) (Entry, error) {
	if c == nil || c.client == nil {
		return Entry{}, ErrMiss
	}
	raw, err := c.client.Get(ctx, keyPrefix+orderID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrMiss
		}
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

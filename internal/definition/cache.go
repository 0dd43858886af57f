package definition

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores definitions in Redis as JSON. A nil Cache or client turns every call into a no-op.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache. Entries expire after ttl.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "definition:"}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *Cache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

// Get reports whether a cached entry existed.
func (c *Cache) Get(ctx context.Context, id uuid.UUID) (Definition, bool, error) {
	if !c.enabled() {
		return Definition{}, false, nil
	}
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Definition{}, false, nil
		}
		return Definition{}, false, err
	}
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return Definition{}, false, err
	}
	return def, true, nil
}

func (c *Cache) Set(ctx context.Context, def Definition) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(def.ID), data, c.ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, id uuid.UUID) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, c.key(id)).Err()
}

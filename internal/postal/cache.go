package postal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "postal:cep:"

// DefaultCacheTTL is how long a lookup result stays servable.
const DefaultCacheTTL = 24 * time.Hour

// Cache is a Redis-backed TTL store for postal lookup results. Entries are
// immutable within their TTL; concurrent writers racing on the same key use
// last-write-wins SET semantics. Redis expiry guarantees a stale entry is
// never served.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache creates a cache with the given TTL (DefaultCacheTTL if zero).
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns the cached result for a normalized postal code, or nil on miss.
func (c *Cache) Get(ctx context.Context, code string) (*Result, error) {
	data, err := c.rdb.Get(ctx, cacheKeyPrefix+code).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Put stores a lookup result under the cache TTL.
func (c *Cache) Put(ctx context.Context, code string, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKeyPrefix+code, data, c.ttl).Err()
}

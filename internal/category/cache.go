package category

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/catalog-discovery/pkg/logger"
)

const keyPrefix = "category:tree:"

// Cache stores resolved category trees across requests. Entries are
// advisory: a miss or a failed read only costs a re-resolution, never
// correctness, so implementations swallow backend errors and report a miss.
type Cache interface {
	Get(ctx context.Context, key string) (Resolved, bool)
	Set(ctx context.Context, key string, val Resolved)
	Flush(ctx context.Context)
}

// NoopCache disables cross-request caching.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (Resolved, bool) { return Resolved{}, false }
func (NoopCache) Set(context.Context, string, Resolved)        {}
func (NoopCache) Flush(context.Context)                        {}

type memoryEntry struct {
	val       Resolved
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache guarded by a mutex. It is the
// default when no Redis address is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryCache creates an in-process cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Resolved, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Resolved{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return Resolved{}, false
	}
	return entry.val, true
}

func (c *MemoryCache) Set(_ context.Context, key string, val Resolved) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{val: val, expiresAt: time.Now().Add(c.ttl)}
}

// Flush drops every cached tree. Called when a category change event arrives.
func (c *MemoryCache) Flush(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// RedisCache stores resolved trees in Redis so multiple instances share one
// view of the category forest.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed category cache with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Resolved, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.FromContext(ctx).Debug("category cache read failed", "error", err)
		}
		return Resolved{}, false
	}

	var val Resolved
	if err := json.Unmarshal(data, &val); err != nil {
		logger.FromContext(ctx).Debug("category cache entry malformed", "error", err)
		return Resolved{}, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val Resolved) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		logger.FromContext(ctx).Debug("category cache write failed", "error", err)
	}
}

// Flush removes all cached trees. SCAN keeps the deletion incremental so a
// large keyspace does not block Redis.
func (c *RedisCache) Flush(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.FromContext(ctx).Warn("category cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.FromContext(ctx).Warn(fmt.Sprintf("category cache flush failed for %d keys", len(keys)), "error", err)
	}
}

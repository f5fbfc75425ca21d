package featured

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lamim/salonforge/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache stores keyword lists per gender. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, gender models.Gender) ([]models.FeaturedKeyword, error)
	Set(ctx context.Context, gender models.Gender, keywords []models.FeaturedKeyword, ttl time.Duration) error
	Invalidate(ctx context.Context, gender models.Gender) error
}

type memoryEntry struct {
	keywords  []models.FeaturedKeyword
	expiresAt time.Time
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[models.Gender]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[models.Gender]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the cached list, or nil when absent or expired
func (c *MemoryCache) Get(_ context.Context, gender models.Gender) ([]models.FeaturedKeyword, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[gender]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, gender)
		return nil, nil
	}
	return append([]models.FeaturedKeyword{}, e.keywords...), nil
}

// Set stores a copy of keywords for ttl
func (c *MemoryCache) Set(_ context.Context, gender models.Gender, keywords []models.FeaturedKeyword, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[gender] = memoryEntry{
		keywords:  append([]models.FeaturedKeyword{}, keywords...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Invalidate drops the entry for gender
func (c *MemoryCache) Invalidate(_ context.Context, gender models.Gender) error {
	c.mu.Lock()
	delete(c.entries, gender)
	c.mu.Unlock()
	return nil
}

// RedisCache shares keyword lists between client processes
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedisCache parses a redis:// URL, connects and pings
func DialRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	c := NewRedisCache(redis.NewClient(opts))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return c, nil
}

func buildKey(gender models.Gender) string {
	return fmt.Sprintf("featured:keywords:%s", gender)
}

// Get keywords from cache
func (c *RedisCache) Get(ctx context.Context, gender models.Gender) ([]models.FeaturedKeyword, error) {
	key := buildKey(gender)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get featured keywords from cache: %w", err)
	}

	keywords := []models.FeaturedKeyword{}
	if err := json.Unmarshal([]byte(val), &keywords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal featured keywords %s: %w", key, err)
	}
	return keywords, nil
}

// Set stores keywords in cache
func (c *RedisCache) Set(ctx context.Context, gender models.Gender, keywords []models.FeaturedKeyword, ttl time.Duration) error {
	if keywords == nil {
		keywords = []models.FeaturedKeyword{}
	}
	val, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal featured keywords: %w", err)
	}
	if err := c.client.Set(ctx, buildKey(gender), val, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set featured keywords in cache: %w", err)
	}
	return nil
}

// Invalidate deletes the cached list for gender
func (c *RedisCache) Invalidate(ctx context.Context, gender models.Gender) error {
	if err := c.client.Del(ctx, buildKey(gender)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", buildKey(gender), err)
	}
	return nil
}

// Ping connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

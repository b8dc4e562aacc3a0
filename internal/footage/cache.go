package footage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores search results keyed by query and result count
type Cache interface {
	Get(ctx context.Context, key string) ([]Video, bool)
	Set(ctx context.Context, key string, videos []Video)
}

func cacheKey(query string, max int) string {
	return fmt.Sprintf("factreel:search:%d:%s", max, strings.ToLower(strings.TrimSpace(query)))
}

// MemoryCache keeps results in process
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates a cache whose entries expire after ttl
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{c: gocache.New(ttl, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]Video, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	videos, ok := v.([]Video)
	return videos, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, videos []Video) {
	m.c.SetDefault(key, videos)
}

// RedisCache shares results between runs through Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to url, which may be a redis:// URL or host:port
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]Video, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var videos []Video
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, false
	}
	return videos, true
}

func (r *RedisCache) Set(ctx context.Context, key string, videos []Video) {
	data, err := json.Marshal(videos)
	if err != nil {
		return
	}
	r.client.Set(ctx, key, data, r.ttl)
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}

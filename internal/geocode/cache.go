package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"homefoods-delivery/internal/delivery"
)

// Cache stores reverse geocoding results.
type Cache interface {
	Get(ctx context.Context, key string) (delivery.GeocodeCandidate, bool, error)
	Set(ctx context.Context, key string, cand delivery.GeocodeCandidate) error
}

// MemoryCache keeps results in process.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns a cache expiring entries after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (delivery.GeocodeCandidate, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return delivery.GeocodeCandidate{}, false, nil
	}
	cand, ok := v.(delivery.GeocodeCandidate)
	return cand, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, cand delivery.GeocodeCandidate) error {
	m.c.SetDefault(key, cand)
	return nil
}

// RedisCache shares results between service instances.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCache stores JSON encoded candidates under prefix with ttl.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "geocode:"}
}

func (r *RedisCache) Get(ctx context.Context, key string) (delivery.GeocodeCandidate, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return delivery.GeocodeCandidate{}, false, nil
	}
	if err != nil {
		return delivery.GeocodeCandidate{}, false, fmt.Errorf("redis get: %w", err)
	}
	var cand delivery.GeocodeCandidate
	if err := json.Unmarshal(b, &cand); err != nil {
		return delivery.GeocodeCandidate{}, false, fmt.Errorf("redis decode: %w", err)
	}
	return cand, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, cand delivery.GeocodeCandidate) error {
	b, err := json.Marshal(cand)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

type cached struct {
	Client
	cache Cache
}

// Cached wraps c so reverse lookups within roughly 100 m share a result.
// Cache failures fall through to the upstream client.
func Cached(c Client, cache Cache) Client {
	return &cached{Client: c, cache: cache}
}

// ReverseKey rounds coordinates to three decimals.
func ReverseKey(lat, lon float64) string {
	return fmt.Sprintf("reverse:%.3f:%.3f", lat, lon)
}

func (c *cached) Reverse(ctx context.Context, lat, lon float64) (delivery.GeocodeCandidate, error) {
	key := ReverseKey(lat, lon)
	if cand, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return cand, nil
	}
	cand, err := c.Client.Reverse(ctx, lat, lon)
	if err != nil {
		return cand, err
	}
	_ = c.cache.Set(ctx, key, cand)
	return cand, nil
}

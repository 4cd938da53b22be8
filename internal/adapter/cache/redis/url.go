// Package redis implements the cache-aside store for URL records on top of
// Redis. Entries are JSON projections of entity.URL with a TTL; the cache is
// never authoritative and every entry is reconstructable from Postgres.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkcut/linkcut/internal/entity"
	"github.com/redis/go-redis/v9"
)

// DefaultURLTTL bounds staleness after manual deactivation while keeping the
// hit rate high for a read-heavy workload.
const DefaultURLTTL = time.Hour

const keyPrefixURL = "url:code:"

// URLKey returns the cache key for a short code.
func URLKey(shortCode string) string {
	return keyPrefixURL + shortCode
}

// cachedURL is the serialized projection stored under URLKey.
type cachedURL struct {
	ID          uuid.UUID      `json:"id"`
	ShortCode   string         `json:"short_code"`
	OriginalURL string         `json:"original_url"`
	IsActive    bool           `json:"is_active"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toCachedURL(url *entity.URL) cachedURL {
	return cachedURL{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		IsActive:    url.IsActive,
		ExpiresAt:   url.ExpiresAt,
		Metadata:    url.Metadata,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

func (c *cachedURL) toEntity() *entity.URL {
	return &entity.URL{
		ID:          c.ID,
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		IsActive:    c.IsActive,
		ExpiresAt:   c.ExpiresAt,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// decodeCachedURL reports a malformed payload as entity.ErrCacheMiss: a
// poisoned entry must degrade to a store read, not become an error the
// caller has to handle.
func decodeCachedURL(data []byte) (*entity.URL, error) {
	var cached cachedURL
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, entity.ErrCacheMiss
	}

	return cached.toEntity(), nil
}

// URLCache caches URL records by short code.
type URLCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewURLCache(client *redis.Client, ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	return &URLCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached record for shortCode, entity.ErrCacheMiss when
// absent or unreadable, or a transient error when Redis itself is unavailable.
func (c *URLCache) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.cache.redis.URLCache.Get"

	data, err := c.client.Get(ctx, URLKey(shortCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrCacheMiss)
		}

		return nil, fmt.Errorf("%s: failed to get cache entry: %w", op, err)
	}

	url, err := decodeCachedURL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

func (c *URLCache) Set(ctx context.Context, url *entity.URL) error {
	const op = "adapter.cache.redis.URLCache.Set"

	data, err := json.Marshal(toCachedURL(url))
	if err != nil {
		return fmt.Errorf("%s: failed to marshal url record: %w", op, err)
	}

	if err := c.client.Set(ctx, URLKey(url.ShortCode), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set cache entry: %w", op, err)
	}

	return nil
}

// Delete drops the entry for shortCode. Used on deactivation so a dead link
// stops being served from cache before the TTL runs out.
func (c *URLCache) Delete(ctx context.Context, shortCode string) error {
	const op = "adapter.cache.redis.URLCache.Delete"

	if err := c.client.Del(ctx, URLKey(shortCode)).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete cache entry: %w", op, err)
	}

	return nil
}

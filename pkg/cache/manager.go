package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when a manager is created without a TTL.
const DefaultTTL = 24 * time.Hour

var (
	// ErrCacheMiss is returned when no fresh response is stored for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable is returned by Store for responses that are not 2xx.
	ErrNotCacheable = errors.New("response is not cacheable")
)

// Manager caches one module's successful lookup responses in Redis.
// Keys are scoped to the module so modules never read each other's bodies.
type Manager struct {
	redis  *redis.Client
	module string
	ttl    time.Duration
}

// NewManager creates a cache for module's responses.
// A non-positive ttl falls back to DefaultTTL.
func NewManager(redisClient *redis.Client, module string, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:  redisClient,
		module: module,
		ttl:    ttl,
	}
}

// Module returns the module whose responses the manager stores.
func (m *Manager) Module() string {
	return m.module
}

// TTL returns the lifetime given to stored responses.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// key scopes a lookup key to the manager's module.
func (m *Manager) key(k CacheKey) string {
	k.Module = m.module
	return k.String()
}

// Lookup returns the stored response for a request.
// Returns ErrCacheMiss when nothing fresh is stored.
func (m *Manager) Lookup(ctx context.Context, k CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, m.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		CacheMisses.WithLabelValues(m.module).Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		CacheErrors.WithLabelValues(m.module, "lookup").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(m.module, "lookup").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry normally removes entries first; a clock skew can leave one behind.
	if entry.IsExpired() {
		_ = m.Evict(ctx, k)
		CacheMisses.WithLabelValues(m.module).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(m.module).Inc()
	CacheBytes.WithLabelValues(m.module, "read").Add(float64(len(entry.Data)))
	return &entry, nil
}

// Store saves a 2xx response body under the request's key for the manager's TTL.
// Other statuses return ErrNotCacheable.
func (m *Manager) Store(ctx context.Context, k CacheKey, status int, body []byte) error {
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d", ErrNotCacheable, status)
	}

	entry := NewEntry(body, status, m.ttl)
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(m.module, "store").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, m.key(k), data, m.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(m.module, "store").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheBytes.WithLabelValues(m.module, "write").Add(float64(len(body)))
	return nil
}

// Evict removes a stored response.
func (m *Manager) Evict(ctx context.Context, k CacheKey) error {
	if err := m.redis.Del(ctx, m.key(k)).Err(); err != nil {
		CacheErrors.WithLabelValues(m.module, "evict").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

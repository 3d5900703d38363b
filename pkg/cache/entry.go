package cache

import (
	"time"
)

// CacheEntry is a cached lookup response body.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry that expires after ttl.
func NewEntry(data []byte, statusCode int, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:       data,
		StatusCode: statusCode,
		Expires:    now.Add(ttl),
		CachedAt:   now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

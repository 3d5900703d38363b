// Package cache stores lookup API responses in Redis so repeated runs over the
// same subjects do not spend request quota twice.
//
// Only successful (2xx) responses are cached. Keys are derived from the request
// URL and its query parameters; credential parameters must be stripped by the
// caller so that rotating keys still share cache entries.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, "companies-house-individuals-officers", 24*time.Hour)
//
//	key := cache.CacheKey{
//		Endpoint:    "https://api.company-information.service.gov.uk/search/officers",
//		QueryParams: url.Values{"q": []string{"john smith"}},
//	}
//
//	entry, err := manager.Lookup(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch, then manager.Store(ctx, key, resp.StatusCode, body)
//	}
//
// # Metrics
//
//   - lookup_cache_hits_total{module} - Responses served from cache
//   - lookup_cache_misses_total{module} - Cache misses
//   - lookup_cache_bytes_total{module, direction} - Response bytes read or written
//   - lookup_cache_errors_total{module, operation} - Cache operation errors
package cache

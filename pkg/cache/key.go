package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "lookup"

// CacheKey identifies a cached lookup response.
type CacheKey struct {
	// Module scopes the key; Manager fills it in.
	Module string

	// Endpoint is the request URL without its query string.
	Endpoint string

	// QueryParams are the query parameters, credentials removed.
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: lookup[:module]:endpoint:query1=val1:query2=val2
//
// Example:
//
//	lookup:companies-house-individuals-officers:api.example.com/search/officers:items_per_page=100:q=john smith
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}
	if k.Module != "" {
		parts = append(parts, k.Module)
	}

	endpoint := strings.TrimPrefix(k.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.Trim(endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}

package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint no params",
			key: CacheKey{
				Endpoint: "https://api.example.com/search/officers/",
			},
			want: "lookup:api.example.com/search/officers",
		},
		{
			name: "endpoint with query params",
			key: CacheKey{
				Endpoint: "https://api.example.com/search/officers",
				QueryParams: url.Values{
					"q": []string{"john smith"},
				},
			},
			want: "lookup:api.example.com/search/officers:q=john smith",
		},
		{
			name: "multiple query params sorted",
			key: CacheKey{
				Endpoint: "http://localhost:8080/company/01234567/officers",
				QueryParams: url.Values{
					"start_index":    []string{"100"},
					"items_per_page": []string{"100"},
				},
			},
			want: "lookup:localhost:8080/company/01234567/officers:items_per_page=100:start_index=100",
		},
		{
			name: "module scoped",
			key: CacheKey{
				Module:      "companies-house-companies",
				Endpoint:    "https://api.example.com/search/companies",
				QueryParams: url.Values{"q": []string{"acme"}},
			},
			want: "lookup:companies-house-companies:api.example.com/search/companies:q=acme",
		},
		{
			name: "repeated values sorted",
			key: CacheKey{
				Endpoint: "https://api.example.com/x",
				QueryParams: url.Values{
					"f": []string{"b", "a"},
				},
			},
			want: "lookup:api.example.com/x:f=a,b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "https://api.example.com/search/companies",
		QueryParams: url.Values{
			"q":              []string{"acme"},
			"items_per_page": []string{"100"},
			"start_index":    []string{"0"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if result := key.String(); result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}

//go:build integration

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/lookup-reconciler/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_CachedLookup(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/officers", testutil.NewJSONResponse(`{"total_results": 1}`))

	cfg := DefaultConfig("integration", 1)
	cfg.Redis = redisClient
	cfg.CacheTTL = time.Minute
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	q := basicQuery(mock.URL(), "/search/officers")

	first, err := e.Execute(ctx, q)
	if err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	if first.Cached {
		t.Error("first response should come from the network")
	}

	// A different credential must hit the same cache entry.
	q.Auth.Credential.Key = "another-key"
	q.Auth.Credential.Name = "secondary"

	second, err := e.Execute(ctx, q)
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	if !second.Cached {
		t.Error("second response should be served from cache")
	}
	if string(second.Data) != string(first.Data) {
		t.Errorf("cached data = %s, want %s", second.Data, first.Data)
	}
	if second.Auth.Credential.Name != "secondary" {
		t.Error("cached response should echo the caller's auth")
	}
	if n := mock.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestIntegration_FailuresAreNotCached(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/officers", testutil.NewServerErrorResponse())

	cfg := DefaultConfig("integration", 1)
	cfg.Redis = redisClient
	cfg.CacheTTL = time.Minute
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	q := basicQuery(mock.URL(), "/search/officers")
	for i := 0; i < 2; i++ {
		if _, err := e.Execute(context.Background(), q); !errors.Is(err, ErrRemoteClient) {
			t.Fatalf("Execute() error = %v, want ErrRemoteClient", err)
		}
	}
	if n := mock.RequestCount(); n != 2 {
		t.Errorf("request count = %d, want 2", n)
	}
}

func TestIntegration_QuotaRefusal(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/search/officers", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{}`,
		Headers: map[string]string{
			"Content-Type":       "application/json",
			"X-Ratelimit-Limit":  "600",
			"X-Ratelimit-Remain": "0",
			"X-Ratelimit-Reset":  "300",
			"X-Ratelimit-Window": "5m",
		},
	})

	cfg := DefaultConfig("integration", 1)
	cfg.Redis = redisClient
	cfg.TrackQuota = true
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	q := basicQuery(mock.URL(), "/search/officers")

	if _, err := e.Execute(ctx, q); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}

	_, err = e.Execute(ctx, q)
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("second Execute() error = %v, want *RateLimitError", err)
	}
	if !rl.Local {
		t.Error("exhausted credential should be refused locally")
	}
	if n := mock.RequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

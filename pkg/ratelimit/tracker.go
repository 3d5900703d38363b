package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// epochCutoff separates absolute reset timestamps from relative seconds.
const epochCutoff = 1_000_000_000

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lookup_quota_remaining",
		Help: "Requests remaining in the current rate limit window by credential",
	}, []string{"credential"})

	quotaBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_quota_blocks_total",
		Help: "Requests refused locally because the credential's quota is exhausted",
	}, []string{"credential"})

	quotaLowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_quota_low_total",
		Help: "Requests sent while the credential's quota was below the warning threshold",
	}, []string{"credential"})
)

// Tracker records per-credential quota state and gates requests on it.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// redisKey returns the Redis key holding a credential's state.
func redisKey(credential string) string {
	return RedisKeyPrefix + ":" + credential
}

func healthyState(credential string) *QuotaState {
	return &QuotaState{
		Credential: credential,
		Remaining:  QuotaThresholdHealthy,
		LastUpdate: time.Now(),
		IsHealthy:  true,
	}
}

// GetState retrieves a credential's quota state from Redis.
// Returns a default healthy state if no data exists or the stored state is
// older than its window.
func (t *Tracker) GetState(ctx context.Context, credential string) (*QuotaState, error) {
	data, err := t.redis.Get(ctx, redisKey(credential)).Bytes()
	if errors.Is(err, redis.Nil) {
		t.logger.Debug().Str("credential", credential).Msg("No quota state in Redis, assuming healthy")
		return healthyState(credential), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	var state QuotaState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse quota state: %w", err)
	}
	if state.IsStale(state.MaxAge()) {
		t.logger.Debug().
			Str("credential", credential).
			Time("last_update", state.LastUpdate).
			Msg("Quota state outlived its window, assuming healthy")
		return healthyState(credential), nil
	}
	state.UpdateHealth()

	return &state, nil
}

// ParseHeaders reads quota headers into a state.
// ok is false when the response carries no quota headers.
func ParseHeaders(credential string, headers http.Header, now time.Time) (state *QuotaState, ok bool, err error) {
	remainStr := headers.Get(HeaderRemain)
	if remainStr == "" {
		return nil, false, nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderRemain, err)
	}

	state = &QuotaState{
		Credential: credential,
		Remaining:  remain,
		LastUpdate: now,
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if windowStr := headers.Get(HeaderWindow); windowStr != "" {
		window, err := parseWindow(windowStr)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s header: %w", HeaderWindow, err)
		}
		state.Window = window
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return nil, false, fmt.Errorf("%s header missing", HeaderReset)
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}
	if reset >= epochCutoff {
		state.ResetAt = time.Unix(reset, 0)
	} else {
		state.ResetAt = now.Add(time.Duration(reset) * time.Second)
	}

	state.UpdateHealth()
	return state, true, nil
}

// parseWindow reads a window length given as seconds ("300") or a Go
// duration ("5m").
func parseWindow(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// UpdateFromHeaders parses quota headers and stores the credential's state in Redis.
// The Redis entry expires shortly after the window resets.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, credential string, headers http.Header) error {
	state, ok, err := ParseHeaders(credential, headers, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal quota state: %w", err)
	}

	ttl := state.TimeUntilReset() + time.Minute
	if err := t.redis.Set(ctx, redisKey(credential), data, ttl).Err(); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}

	quotaRemaining.WithLabelValues(credential).Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("credential", credential).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Quota exhausted - credential will be refused until reset")
	case state.IsLow():
		t.logger.Warn().
			Str("credential", credential).
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Quota low")
	default:
		t.logger.Debug().
			Str("credential", credential).
			Int("remaining", state.Remaining).
			Msg("Quota state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may be sent with the credential.
// It never sleeps: an exhausted credential is refused, not delayed.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, credential string) (bool, error) {
	state, err := t.GetState(ctx, credential)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Str("credential", credential).
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Quota exhausted - refusing request")

		quotaBlocksTotal.WithLabelValues(credential).Inc()
		return false, nil
	}

	if state.IsLow() {
		quotaLowTotal.WithLabelValues(credential).Inc()
	}

	return true, nil
}

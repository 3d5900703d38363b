// Package ratelimit tracks the request quota each credential has left with a
// lookup API. It reads the X-Ratelimit-* headers returned on every response and
// shares the state across processes via Redis, so a credential known to be
// exhausted is not used again until its window resets.
package ratelimit

import (
	"time"
)

// RedisKeyPrefix namespaces per-credential quota state in Redis.
const RedisKeyPrefix = "lookup:quota"

// Response headers carrying quota information.
const (
	HeaderLimit  = "X-Ratelimit-Limit"
	HeaderRemain = "X-Ratelimit-Remain"
	HeaderReset  = "X-Ratelimit-Reset"
	HeaderWindow = "X-Ratelimit-Window"
)

// DefaultStateMaxAge bounds how long a stored state is trusted when the API
// did not report its window length.
const DefaultStateMaxAge = time.Hour

// Thresholds for quota decisions.
const (
	// QuotaThresholdCritical blocks requests on a credential whose remaining quota
	// falls below this value before its window resets. The remote API would
	// answer them with 429 anyway.
	QuotaThresholdCritical = 1

	// QuotaThresholdWarning logs a warning when remaining quota falls below this value.
	QuotaThresholdWarning = 50

	// QuotaThresholdHealthy indicates normal operation.
	QuotaThresholdHealthy = 100
)

// QuotaState is the last known quota of one credential.
type QuotaState struct {
	// Credential is the credential's name (never its key).
	Credential string `json:"credential"`

	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// Window is the length of a rate limit window, 0 when not reported.
	Window time.Duration `json:"window"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// MaxAge returns how long the state is trusted after LastUpdate: one window,
// or DefaultStateMaxAge when the window is unknown.
func (s *QuotaState) MaxAge() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultStateMaxAge
}

// NeedsCriticalBlock returns true if the credential is exhausted and its window has not reset.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaThresholdCritical && s.TimeUntilReset() > 0
}

// IsLow returns true if the credential is close to exhaustion but still usable.
func (s *QuotaState) IsLow() bool {
	return s.Remaining < QuotaThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}

package ratelimit

import (
	"testing"
	"time"
)

func TestQuotaState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *QuotaState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &QuotaState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &QuotaState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsStale(tt.maxAge); result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestQuotaState_MaxAge(t *testing.T) {
	if got := (&QuotaState{Window: 5 * time.Minute}).MaxAge(); got != 5*time.Minute {
		t.Errorf("MaxAge() = %v, want 5m", got)
	}
	if got := (&QuotaState{}).MaxAge(); got != DefaultStateMaxAge {
		t.Errorf("MaxAge() without window = %v, want %v", got, DefaultStateMaxAge)
	}
}

func TestQuotaState_NeedsCriticalBlock(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		resetAt   time.Time
		expected  bool
	}{
		{
			name:      "plenty left",
			remaining: 500,
			resetAt:   time.Now().Add(time.Minute),
			expected:  false,
		},
		{
			name:      "one left",
			remaining: 1,
			resetAt:   time.Now().Add(time.Minute),
			expected:  false,
		},
		{
			name:      "exhausted before reset",
			remaining: 0,
			resetAt:   time.Now().Add(time.Minute),
			expected:  true,
		},
		{
			name:      "exhausted but window already reset",
			remaining: 0,
			resetAt:   time.Now().Add(-time.Second),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{Remaining: tt.remaining, ResetAt: tt.resetAt}
			if result := state.NeedsCriticalBlock(); result != tt.expected {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestQuotaState_IsLow(t *testing.T) {
	future := time.Now().Add(time.Minute)

	if (&QuotaState{Remaining: 10, ResetAt: future}).IsLow() != true {
		t.Error("10 remaining should be low")
	}
	if (&QuotaState{Remaining: 0, ResetAt: future}).IsLow() != false {
		t.Error("exhausted state is critical, not low")
	}
	if (&QuotaState{Remaining: QuotaThresholdWarning, ResetAt: future}).IsLow() != false {
		t.Error("warning threshold itself is not low")
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	past := &QuotaState{ResetAt: time.Now().Add(-time.Hour)}
	if past.TimeUntilReset() != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0", past.TimeUntilReset())
	}

	future := &QuotaState{ResetAt: time.Now().Add(30 * time.Second)}
	if d := future.TimeUntilReset(); d <= 29*time.Second || d > 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want ~30s", d)
	}
}

func TestQuotaState_UpdateHealth(t *testing.T) {
	s := &QuotaState{Remaining: QuotaThresholdHealthy}
	s.UpdateHealth()
	if !s.IsHealthy {
		t.Error("state at healthy threshold should be healthy")
	}

	s.Remaining = QuotaThresholdHealthy - 1
	s.UpdateHealth()
	if s.IsHealthy {
		t.Error("state below healthy threshold should not be healthy")
	}
}

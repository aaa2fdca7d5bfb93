package queue

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures per-blueprint backoff, resolving the Open Question
// of spec §9 on retry knob selection: it lives on the blueprint definition.
// Nothing reads it from the environment; every built-in blueprint sets
// DefaultRetryPolicy() explicitly.
type RetryPolicy struct {
	MaxAttempts *int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches spec §4.3's documented defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BackoffBase: 1 * time.Second,
		BackoffCap:  60 * time.Second,
		Multiplier:  2,
	}
}

// Backoff computes a full-jitter exponential delay for the given 1-based
// attempt, per spec §4.3 and the testable property of §8: for attempt k,
// delay ∈ [0, min(cap, base·2^(k-1))].
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	capped := float64(p.BackoffBase) * math.Pow(multiplier, float64(attempt-1))
	if cap := float64(p.BackoffCap); capped > cap {
		capped = cap
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}

// CanRetry reports whether attempt has budget left under this policy.
func (p RetryPolicy) CanRetry(attempt int) bool {
	return p.MaxAttempts == nil || attempt < *p.MaxAttempts
}

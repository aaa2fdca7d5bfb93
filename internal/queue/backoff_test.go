package queue

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWithinBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	for attempt := 1; attempt <= 10; attempt++ {
		want := time.Duration(math.Min(float64(p.BackoffCap), float64(p.BackoffBase)*math.Pow(p.Multiplier, float64(attempt-1))))
		for i := 0; i < 20; i++ {
			got := p.Backoff(attempt)
			assert.GreaterOrEqual(t, got, time.Duration(0))
			assert.LessOrEqual(t, got, want)
		}
	}
}

func TestBackoffZeroAttemptTreatedAsOne(t *testing.T) {
	p := DefaultRetryPolicy()
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, p.Backoff(0), p.BackoffBase)
	}
}

func TestCanRetry(t *testing.T) {
	unlimited := RetryPolicy{}
	assert.True(t, unlimited.CanRetry(1000), "policy with nil MaxAttempts should always allow retry")

	max := 3
	limited := RetryPolicy{MaxAttempts: &max}
	assert.True(t, limited.CanRetry(2), "attempt 2 of max 3 should be retryable")
	assert.False(t, limited.CanRetry(3), "attempt 3 of max 3 should not be retryable")
}

func TestDefaultRetryPolicyMatchesSpecDefaults(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 1*time.Second, p.BackoffBase)
	assert.Equal(t, 60*time.Second, p.BackoffCap)
	assert.Equal(t, 2.0, p.Multiplier)
}

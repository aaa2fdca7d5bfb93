package queue_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agents-admin/internal/model"
	"agents-admin/internal/queue"
	"agents-admin/internal/store/postgres"
	"agents-admin/tests/testutil"
)

// openTestStore connects to the test database configured by configs/test.yaml,
// reusing testutil's test-environment config (./scripts/test-env.sh setup).
func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	cfg := testutil.TestConfig(t)

	s, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("cannot connect to test database: %v\nrun ./scripts/test-env.sh setup first", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedQueuedRun(t *testing.T, s *postgres.Store, id string, priority int, runAt time.Time) *model.Run {
	t.Helper()
	now := time.Now().UTC()
	run := &model.Run{
		ID:            id,
		Name:          "queue-test",
		BlueprintRef:  "noop",
		Status:        model.RunStatusQueued,
		RunAt:         runAt,
		Priority:      priority,
		QueuedAt:      now,
		CorrelationID: id,
		Inputs:        json.RawMessage(`{}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateRun(context.Background(), run))
	return run
}

// TestClaimIsExactlyOnce seeds a single queued run and has two "workers"
// claim one after the other; exactly one must get it, per spec §8's "No double-claim".
func TestClaimIsExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	e := queue.New(s)
	ctx := context.Background()

	id := fmt.Sprintf("queue-test-%d", time.Now().UnixNano())
	seedQueuedRun(t, s, id, 10, time.Now().UTC().Add(-time.Second))

	run1, ok1, err1 := e.Claim(ctx, "worker-a", time.Minute)
	require.NoError(t, err1)

	run2, ok2, err2 := e.Claim(ctx, "worker-b", time.Minute)
	require.NoError(t, err2)

	claimedCount := 0
	var claimedBy string
	if ok1 && run1.ID == id {
		claimedCount++
		claimedBy = "worker-a"
	}
	if ok2 && run2.ID == id {
		claimedCount++
		claimedBy = "worker-b"
	}
	assert.Equal(t, 1, claimedCount, "exactly one worker should claim the row")
	assert.NotEmpty(t, claimedBy)
}

// TestClaimOrdersByPriority matches spec §8 scenario 3: rows
// with priorities [100, 10, 50] at the same run_at claim in order 10, 50, 100.
func TestClaimOrdersByPriority(t *testing.T) {
	s := openTestStore(t)
	e := queue.New(s)
	ctx := context.Background()

	runAt := time.Now().UTC().Add(-time.Second)
	suffix := time.Now().UnixNano()
	lowID := fmt.Sprintf("prio-low-%d", suffix)
	midID := fmt.Sprintf("prio-mid-%d", suffix)
	highID := fmt.Sprintf("prio-high-%d", suffix)

	seedQueuedRun(t, s, highID, 100, runAt)
	seedQueuedRun(t, s, lowID, 10, runAt)
	seedQueuedRun(t, s, midID, 50, runAt)

	var order []string
	for i := 0; i < 3; i++ {
		run, ok, err := e.Claim(ctx, "worker-order", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		order = append(order, run.ID)
	}

	assert.Equal(t, []string{lowID, midID, highID}, order)
}

// TestReclaimExpiredReturnsRunToQueueAndIncrementsAttempt covers spec §8
// scenario 2: crash recovery via an expired lease.
func TestReclaimExpiredReturnsRunToQueueAndIncrementsAttempt(t *testing.T) {
	s := openTestStore(t)
	e := queue.New(s)
	ctx := context.Background()

	id := fmt.Sprintf("reclaim-test-%d", time.Now().UnixNano())
	seedQueuedRun(t, s, id, 10, time.Now().UTC().Add(-time.Second))

	run, ok, err := e.Claim(ctx, "worker-crash", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, run.Attempt)

	// the claimed lease (1ms) has already expired by the time we reclaim.
	time.Sleep(5 * time.Millisecond)

	reclaimedIDs, err := e.Reclaim(ctx)
	require.NoError(t, err)
	assert.Contains(t, reclaimedIDs, id)

	reQueued, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, reQueued.Status)

	run2, ok2, err := e.Claim(ctx, "worker-retry", time.Minute)
	require.NoError(t, err)
	require.True(t, ok2)
	assert.Equal(t, id, run2.ID)
	assert.Equal(t, 2, run2.Attempt, "reclaimed run's second claim should be attempt 2")
}

// TestFailRetrySchedulesWithinBackoffWindow covers spec §8's retry schedule
// property: attempt k's new run_at lands within [now, now+min(cap, base*2^(k-1))].
func TestFailRetrySchedulesWithinBackoffWindow(t *testing.T) {
	s := openTestStore(t)
	e := queue.New(s)
	ctx := context.Background()

	id := fmt.Sprintf("retry-test-%d", time.Now().UnixNano())
	seedQueuedRun(t, s, id, 10, time.Now().UTC().Add(-time.Second))

	run, ok, err := e.Claim(ctx, "worker-fail", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	policy := queue.DefaultRetryPolicy()
	before := time.Now().UTC()
	retried, err := e.FailRetry(ctx, run, policy, json.RawMessage(`{"message":"boom"}`))
	require.NoError(t, err)
	require.True(t, retried, "attempt 1 of an unlimited policy must be retryable")

	rescheduled, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, rescheduled.Status)

	delay := rescheduled.RunAt.Sub(before)
	assert.GreaterOrEqual(t, delay, time.Duration(0))
	assert.LessOrEqual(t, delay, policy.BackoffBase+time.Second, "attempt 1 backoff should not exceed base plus scheduling slack")
}

// TestFailRetryFailsTerminallyWhenAttemptsExhausted covers the other half of
// FailRetry: once MaxAttempts is reached, the run fails terminally instead
// of being rescheduled.
func TestFailRetryFailsTerminallyWhenAttemptsExhausted(t *testing.T) {
	s := openTestStore(t)
	e := queue.New(s)
	ctx := context.Background()

	id := fmt.Sprintf("retry-exhausted-%d", time.Now().UnixNano())
	run := seedQueuedRun(t, s, id, 10, time.Now().UTC().Add(-time.Second))
	maxAttempts := 1
	run.MaxAttempts = &maxAttempts
	require.NoError(t, s.UpdateRun(ctx, run))

	claimed, ok, err := e.Claim(ctx, "worker-exhaust", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	claimed.MaxAttempts = &maxAttempts

	retried, err := e.FailRetry(ctx, claimed, queue.DefaultRetryPolicy(), json.RawMessage(`{"message":"boom"}`))
	require.NoError(t, err)
	assert.False(t, retried)

	failed, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, failed.Status)
}

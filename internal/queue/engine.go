// Package queue implements the claim/lease/renew/complete protocol of
// spec §4.3 over internal/store, the hard-engineering core of the runtime.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"agents-admin/internal/model"
	"agents-admin/internal/store"
	"agents-admin/pkg/logging"
)

// Engine wraps a Store with the queue operations of spec §4.3. Each method
// is a thin, single-purpose wrapper over one Store call — the SQL itself is
// the source of truth, not this layer.
type Engine struct {
	store store.Store
	log   *logging.Logger
}

// New builds a queue Engine.
func New(s store.Store) *Engine {
	return &Engine{store: s, log: logging.Default("queue")}
}

// Claim attempts to claim exactly one due run for workerID. ok=false with a
// nil error means no claimable row existed (spec §4.3's no_claim_available,
// an internal, non-error condition).
func (e *Engine) Claim(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Run, bool, error) {
	return e.store.ClaimNextRun(ctx, workerID, leaseDuration)
}

// Renew extends a held lease. A false return means the caller has lost the
// lease and MUST abort local execution without further state writes, per spec §4.3.
func (e *Engine) Renew(ctx context.Context, runID, workerID string, leaseDuration time.Duration) (bool, error) {
	ok, err := e.store.RenewLease(ctx, runID, workerID, leaseDuration)
	if err == nil && !ok {
		e.log.LostLeaseLog(runID, workerID)
	}
	return ok, err
}

// Reclaim moves every running row whose lease has expired back to queued,
// emitting xyn.run.reclaimed for each, per spec §4.3.
func (e *Engine) Reclaim(ctx context.Context) ([]string, error) {
	return e.store.ReclaimExpired(ctx)
}

// Complete transitions a run to completed.
func (e *Engine) Complete(ctx context.Context, run *model.Run, outputs json.RawMessage) error {
	return e.store.CompleteRun(ctx, run.ID, model.RunStatusCompleted, outputs, nil)
}

// FailTerminal transitions a run to failed with no further retries, per spec §4.3's fail_terminal transition.
func (e *Engine) FailTerminal(ctx context.Context, run *model.Run, errPayload json.RawMessage) error {
	return e.store.CompleteRun(ctx, run.ID, model.RunStatusFailed, nil, errPayload)
}

// FailRetry implements spec §4.3's retry policy: if attempts remain, reschedule
// with backoff; otherwise fail terminally. Returns true if a retry was scheduled.
func (e *Engine) FailRetry(ctx context.Context, run *model.Run, policy RetryPolicy, errPayload json.RawMessage) (bool, error) {
	if policy.MaxAttempts == nil {
		policy.MaxAttempts = run.MaxAttempts
	}
	if policy.CanRetry(run.Attempt) {
		delay := policy.Backoff(run.Attempt)
		if err := e.store.RescheduleRun(ctx, run.ID, time.Now().UTC().Add(delay)); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, e.store.CompleteRun(ctx, run.ID, model.RunStatusFailed, nil, errPayload)
}

// Cancel implements spec §4.3's cancel transitions: queued->cancelled is
// immediate; a running run is only flagged (cancel_requested=true), and the
// executor does not read the flag, so it goes on to its normal terminal status.
func (e *Engine) Cancel(ctx context.Context, runID string) (*model.Run, error) {
	return e.store.RequestCancel(ctx, runID)
}

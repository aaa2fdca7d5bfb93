package blueprints

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"agents-admin/internal/eventlog"
	"agents-admin/internal/executor/handlers"
	"agents-admin/internal/model"
	"agents-admin/internal/xynerrors"
)

func generateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// RunContext drives one run's step sequence for a hand-written blueprint,
// generalizing the original's RunContext.step() context manager
// (original_source/core/blueprints/runner.py): it owns step-idx assignment,
// the created->running->{completed|failed} transitions, and the matching
// xyn.step.* events, so blueprint bodies only supply the work itself.
type RunContext struct {
	Deps Deps
	Run  *model.Run

	maxSteps  int
	stepCount int
}

// NewRunContext builds a RunContext for one claimed run.
func NewRunContext(deps Deps, run *model.Run, maxSteps int) *RunContext {
	return &RunContext{Deps: deps, Run: run, maxSteps: maxSteps}
}

// Step runs fn as one step record, per spec §4.4's execution contract:
// insert created -> running (emit xyn.step.started) -> fn -> on success
// completed (emit xyn.step.completed) / on error failed (emit
// xyn.step.failed). A panic inside fn is caught and reported as
// handler_crash, matching the executor's own failure-isolation contract.
// If fn returns handlers.ErrGateSkipped the step is instead recorded
// skipped (emit xyn.step.skipped) and that sentinel is returned unwrapped
// so the caller can tell a skip from a real failure.
func (rc *RunContext) Step(ctx context.Context, name string, kind model.StepKind, inputs json.RawMessage, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if rc.maxSteps > 0 && rc.stepCount >= rc.maxSteps {
		return nil, xynerrors.FailedPrecondition(xynerrors.KindStepBudgetExceeded, "run %s exceeded max_steps=%d", rc.Run.ID, rc.maxSteps)
	}
	rc.stepCount++

	now := time.Now().UTC()
	step := &model.Step{
		ID:        generateID("step"),
		RunID:     rc.Run.ID,
		Idx:       rc.stepCount - 1,
		Name:      name,
		Kind:      kind,
		Status:    model.StepStatusCreated,
		Inputs:    inputs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rc.Deps.Store.CreateStep(ctx, step); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	step.Status = model.StepStatusRunning
	step.StartedAt = &startedAt
	if err := rc.Deps.Store.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	rc.emitStep(ctx, model.EventStepStarted, step, nil)

	outputs, err := rc.invoke(ctx, fn)

	completedAt := time.Now().UTC()
	step.CompletedAt = &completedAt
	if errors.Is(err, handlers.ErrGateSkipped) {
		step.Status = model.StepStatusSkipped
		step.Outputs = outputs
		if updateErr := rc.Deps.Store.UpdateStep(ctx, step); updateErr != nil {
			return nil, updateErr
		}
		rc.emitStep(ctx, model.EventStepSkipped, step, nil)
		return outputs, err
	}
	if err != nil {
		step.Status = model.StepStatusFailed
		errPayload, _ := json.Marshal(map[string]string{"message": err.Error(), "kind": string(xynerrors.KindOf(err))})
		step.Error = errPayload
		if updateErr := rc.Deps.Store.UpdateStep(ctx, step); updateErr != nil {
			return nil, updateErr
		}
		rc.emitStep(ctx, model.EventStepFailed, step, map[string]string{"error": err.Error()})
		return nil, err
	}

	step.Status = model.StepStatusCompleted
	step.Outputs = outputs
	if err := rc.Deps.Store.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	rc.emitStep(ctx, model.EventStepCompleted, step, nil)
	return outputs, nil
}

// invoke runs fn, converting a panic into a handler_crash error, per spec
// §4.4's failure-isolation contract.
func (rc *RunContext) invoke(ctx context.Context, fn func(ctx context.Context) (json.RawMessage, error)) (outputs json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xynerrors.Internal(xynerrors.KindHandlerCrash, "step handler panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Emit emits a progress (or any other) event scoped to the run and its
// current step, mirroring the original's ctx.emit_progress/emit_event.
func (rc *RunContext) Emit(ctx context.Context, eventName string, data any) error {
	_, err := rc.Deps.Emitter.Emit(ctx, nil, eventlog.EmitParams{
		EventName:     eventName,
		Data:          data,
		RunID:         &rc.Run.ID,
		CorrelationID: rc.Run.CorrelationID,
		Actor:         rc.Deps.WorkerID,
	})
	return err
}

func (rc *RunContext) emitStep(ctx context.Context, eventName string, step *model.Step, extra map[string]string) {
	data := map[string]any{"step_id": step.ID, "step_name": step.Name, "step_kind": step.Kind}
	for k, v := range extra {
		data[k] = v
	}
	_, _ = rc.Deps.Emitter.Emit(ctx, nil, eventlog.EmitParams{
		EventName:     eventName,
		Data:          data,
		RunID:         &rc.Run.ID,
		StepID:        &step.ID,
		CorrelationID: rc.Run.CorrelationID,
		Actor:         rc.Deps.WorkerID,
	})
}

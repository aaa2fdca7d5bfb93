// Package executor drives one claimed run to completion: it looks up the
// run's blueprint, runs either the flat kind-dispatched plan or a
// hand-written blueprint function, enforces the run-level safety rails of
// spec §5 (wall-clock deadline, step budget), and reports the outcome back
// to the queue engine. This generalizes the teacher's exec.RegisterDriver
// dispatch loop (cmd/executor/main.go) one level up, from "which agent CLI"
// to "which blueprint".
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"agents-admin/internal/eventlog"
	"agents-admin/internal/executor/blueprints"
	"agents-admin/internal/executor/handlers"
	"agents-admin/internal/executor/template"
	"agents-admin/internal/model"
	"agents-admin/internal/queue"
	"agents-admin/internal/store"
	"agents-admin/internal/xynerrors"
	"agents-admin/pkg/logging"
)

// defaultWallClockTimeout is spec §5's documented run deadline default,
// applied when a blueprint doesn't set its own.
const defaultWallClockTimeout = 60 * time.Minute

// Executor runs claimed runs to completion.
type Executor struct {
	store     store.Store
	queue     *queue.Engine
	emitter   eventlog.Emitter
	blueprints *blueprints.Registry
	handlers  *handlers.Registry
	workerID  string
	log       *logging.Logger
}

// New builds an Executor.
func New(s store.Store, q *queue.Engine, emitter eventlog.Emitter, bps *blueprints.Registry, hs *handlers.Registry, workerID string) *Executor {
	return &Executor{
		store:      s,
		queue:      q,
		emitter:    emitter,
		blueprints: bps,
		handlers:   hs,
		workerID:   workerID,
		log:        logging.Default("executor"),
	}
}

// Run drives one claimed run through its blueprint and reports the outcome
// to the queue engine (complete, retry-with-backoff, or fail terminally).
// The caller is responsible for lease renewal while this runs.
func (e *Executor) Run(ctx context.Context, run *model.Run) {
	log := e.log.WithRunID(run.ID).WithCorrelationID(run.CorrelationID)

	bp, ok := e.blueprints.Get(run.BlueprintRef)
	if !ok {
		e.fail(ctx, run, xynerrors.Internal(xynerrors.KindBlueprintNotFound, "blueprint %q not found", run.BlueprintRef))
		return
	}

	timeout := bp.WallClockTimeout
	if timeout <= 0 {
		timeout = defaultWallClockTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// xyn.run.started is already emitted transactionally by ClaimNextRun
	// when the run was claimed off the queue; emitting it again here would
	// duplicate the event.
	outputs, err := e.execute(runCtx, bp, run)

	if runCtx.Err() != nil && err == nil {
		err = xynerrors.FailedPrecondition(xynerrors.KindRunDeadlineExceeded, "run %s exceeded wall clock timeout %s", run.ID, timeout)
	}

	if err != nil {
		e.handleFailure(ctx, run, bp, err)
		return
	}

	if completeErr := e.queue.Complete(ctx, run, outputs); completeErr != nil {
		log.WithError(completeErr).Error("failed to mark run completed")
		return
	}
	_, _ = e.emitter.Emit(ctx, nil, eventlog.EmitParams{
		EventName:     model.EventRunCompleted,
		Data:          map[string]json.RawMessage{"outputs": outputs},
		RunID:         &run.ID,
		CorrelationID: run.CorrelationID,
		Actor:         e.workerID,
	})
	log.Info("run completed")
}

// execute dispatches to the blueprint's hand-written Run function or its
// flat Steps plan, exactly one of which is set (see blueprints.Blueprint).
func (e *Executor) execute(ctx context.Context, bp *blueprints.Blueprint, run *model.Run) (json.RawMessage, error) {
	deps := blueprints.Deps{
		Store:    e.store,
		Emitter:  e.emitter,
		Handlers: e.handlers,
		WorkerID: e.workerID,
		Log:      e.log,
	}
	rc := blueprints.NewRunContext(deps, run, bp.MaxSteps)

	if bp.Run != nil {
		return bp.Run(ctx, rc, run.Inputs)
	}
	return e.runFlatPlan(ctx, rc, bp, run)
}

// runFlatPlan runs a blueprint's flat, kind-dispatched plan in order,
// resolving each step's inputs against the run's inputs and prior steps'
// outputs, per spec §4.4/§9. A gate step reports itself skipped and the
// plan continues; any other handler error fails the run.
func (e *Executor) runFlatPlan(ctx context.Context, rc *blueprints.RunContext, bp *blueprints.Blueprint, run *model.Run) (json.RawMessage, error) {
	tctx := template.Context{Inputs: run.Inputs, Steps: make(map[string]template.StepResult, len(bp.Steps))}

	var last json.RawMessage
	for _, def := range bp.Steps {
		resolvedInputs, err := template.Resolve(def.Inputs, tctx)
		if err != nil {
			return nil, err
		}

		outputs, err := rc.Step(ctx, def.Name, def.Kind, resolvedInputs, func(ctx context.Context) (json.RawMessage, error) {
			handler, ok := e.handlers.Get(string(def.Kind))
			if !ok {
				return nil, xynerrors.Internal(xynerrors.KindStepHandlerError, "no handler registered for step kind %q", def.Kind)
			}
			out, err := handler.Execute(ctx, handlers.StepInput{
				RunID:         run.ID,
				StepID:        def.ID,
				CorrelationID: run.CorrelationID,
				Inputs:        resolvedInputs,
			})
			return out.Outputs, err
		})

		if err != nil {
			if errors.Is(err, handlers.ErrGateSkipped) {
				tctx.Steps[def.ID] = template.StepResult{Outputs: json.RawMessage("{}")}
				continue
			}
			return nil, err
		}

		tctx.Steps[def.ID] = template.StepResult{Outputs: outputs}
		last = outputs
	}
	return last, nil
}

// handleFailure classifies a run failure and either schedules a retry
// (backoff per the blueprint's RetryPolicy) or fails terminally, per spec §4.3.
func (e *Executor) handleFailure(ctx context.Context, run *model.Run, bp *blueprints.Blueprint, cause error) {
	log := e.log.WithRunID(run.ID).WithError(cause)
	errPayload, _ := json.Marshal(map[string]string{"message": cause.Error(), "kind": string(xynerrors.KindOf(cause))})

	retried, err := e.queue.FailRetry(ctx, run, bp.RetryPolicy, errPayload)
	if err != nil {
		log.Error("failed to record run failure")
		return
	}

	if retried {
		_, _ = e.emitter.Emit(ctx, nil, eventlog.EmitParams{
			EventName:     model.EventRunRetryScheduled,
			Data:          map[string]string{"error": cause.Error()},
			RunID:         &run.ID,
			CorrelationID: run.CorrelationID,
			Actor:         e.workerID,
		})
		log.Info("run failed, retry scheduled")
		return
	}

	_, _ = e.emitter.Emit(ctx, nil, eventlog.EmitParams{
		EventName:     model.EventRunFailed,
		Data:          map[string]string{"error": cause.Error()},
		RunID:         &run.ID,
		CorrelationID: run.CorrelationID,
		Actor:         e.workerID,
	})
	log.Error("run failed terminally")
}

// fail fails run terminally without consulting a retry policy, for
// conditions detected before the blueprint even starts (e.g. unknown
// blueprint_ref).
func (e *Executor) fail(ctx context.Context, run *model.Run, cause error) {
	errPayload, _ := json.Marshal(map[string]string{"message": cause.Error(), "kind": string(xynerrors.KindOf(cause))})
	if err := e.queue.FailTerminal(ctx, run, errPayload); err != nil {
		e.log.WithRunID(run.ID).WithError(err).Error("failed to record terminal failure")
	}
	_, _ = e.emitter.Emit(ctx, nil, eventlog.EmitParams{
		EventName:     model.EventRunFailed,
		Data:          map[string]string{"error": cause.Error()},
		RunID:         &run.ID,
		CorrelationID: run.CorrelationID,
		Actor:         e.workerID,
	})
}

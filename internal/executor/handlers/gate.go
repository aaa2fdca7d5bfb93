package handlers

import (
	"context"
	"encoding/json"
)

// ErrGateSkipped signals to the executor that this step should be recorded
// skipped (xyn.step.skipped) rather than completed or failed. Manual-wait
// gate semantics are out of scope for the execution core, per spec §4.4.
var ErrGateSkipped = &skippedMarker{}

type skippedMarker struct{}

func (*skippedMarker) Error() string { return "gate: manual-wait not implemented in v0, step skipped" }

// GateHandler always reports itself skipped in v0; it never blocks a run.
type GateHandler struct{}

func (GateHandler) Kind() string { return "gate" }

func (GateHandler) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	return StepOutput{Outputs: json.RawMessage("{}")}, ErrGateSkipped
}

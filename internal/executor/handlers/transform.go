package handlers

import (
	"context"
	"encoding/json"
)

// TransformHandler is pure and in-process: its declared inputs have already
// been template-resolved by the executor, so it simply echoes them as
// outputs, per SPEC_FULL.md's "transform" step kind.
type TransformHandler struct{}

func (TransformHandler) Kind() string { return "transform" }

func (TransformHandler) Execute(ctx context.Context, in StepInput) (StepOutput, error) {
	var resolved json.RawMessage = in.Inputs
	if len(resolved) == 0 {
		resolved = json.RawMessage("{}")
	}
	return StepOutput{Outputs: resolved}, nil
}

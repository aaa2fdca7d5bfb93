// Package handlers implements the step-kind dispatch registry of spec §4.4,
// generalizing the teacher's AI-agent driver registry (pkg/driver.Registry,
// exec.RegisterDriver in cmd/executor/main.go) from "which agent CLI" to
// "which step kind".
package handlers

import (
	"context"
	"encoding/json"
)

// StepInput is what a handler receives: already template-resolved inputs
// plus identifying context for logging/correlation.
type StepInput struct {
	RunID         string
	StepID        string
	CorrelationID string
	Inputs        json.RawMessage
}

// StepOutput is the outcome of a successful handler invocation.
type StepOutput struct {
	Outputs json.RawMessage
}

// Handler executes one step kind. Implementations must not retain ctx past
// return and should respect ctx.Done() for cooperative cancellation
// (Open Question resolution, see SPEC_FULL.md).
type Handler interface {
	Kind() string
	Execute(ctx context.Context, in StepInput) (StepOutput, error)
}

// Registry maps step kind to Handler, mirroring the teacher's Driver registry idiom.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, keyed by its own Kind().
func (r *Registry) Register(h Handler) {
	r.handlers[h.Kind()] = h
}

// Get looks up a handler by kind.
func (r *Registry) Get(kind string) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Package blueprints maps a blueprint name to an executable plan, per spec
// §4.4's "the plan is compiled to a linear sequence of step records before
// execution". Ordinary workflows declare a flat list of kind-dispatched
// steps (Steps); the pack-installation state machine and its upgrade
// sibling are instead hand-written Go functions (Run) in the shape of the
// original implementation's RunContext-driven blueprints
// (original_source/core/blueprints/runner.py, pack_upgrade.py) — their step
// bodies are direct store calls, not containerized or agent-dispatched
// work, so routing them through the generic handler registry would only
// add indirection.
package blueprints

import (
	"context"
	"encoding/json"
	"time"

	"agents-admin/internal/eventlog"
	"agents-admin/internal/executor/handlers"
	"agents-admin/internal/model"
	"agents-admin/internal/queue"
	"agents-admin/internal/store"
	"agents-admin/pkg/logging"
)

// Deps is what a hand-written blueprint function needs to drive its own
// step sequence, mirroring the original's RunContext(run, db, correlation_id, worker_id).
type Deps struct {
	Store    store.Store
	Emitter  eventlog.Emitter
	Handlers *handlers.Registry
	WorkerID string
	Log      *logging.Logger
}

// StepDef is one entry of a linear, kind-dispatched plan, per spec §4.4.
// Inputs may contain "{{inputs.x}}" / "{{steps.<id>.outputs.y}}" references,
// resolved by internal/executor/template immediately before the step runs.
type StepDef struct {
	ID     string
	Name   string
	Kind   model.StepKind
	Inputs json.RawMessage
}

// Func is a hand-written blueprint, given full control over its own step
// sequence via RunContext. Returns the run's final outputs.
type Func func(ctx context.Context, rc *RunContext, inputs json.RawMessage) (json.RawMessage, error)

// Blueprint is either a flat kind-dispatched plan (Steps set) or a
// hand-written state machine (Run set) — never both.
type Blueprint struct {
	Name             string
	Steps            []StepDef
	Run              Func
	RetryPolicy      queue.RetryPolicy
	MaxSteps         int
	WallClockTimeout time.Duration
}

// Registry maps blueprint name to its compiled plan, the teacher's
// driver-registry idiom applied one level up from step kind to blueprint.
type Registry struct {
	blueprints map[string]*Blueprint
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{blueprints: make(map[string]*Blueprint)}
}

// Register adds a blueprint, keyed by its own Name.
func (r *Registry) Register(bp *Blueprint) {
	r.blueprints[bp.Name] = bp
}

// Get looks up a blueprint by name.
func (r *Registry) Get(name string) (*Blueprint, bool) {
	bp, ok := r.blueprints[name]
	return bp, ok
}

package model

import (
	"encoding/json"
	"time"
)

// StepStatus is a step's lifecycle state.
type StepStatus string

const (
	StepStatusCreated   StepStatus = "created"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepKind decides which handler the executor dispatches to.
type StepKind string

const (
	StepKindActionTask StepKind = "action_task"
	StepKindAgentTask  StepKind = "agent_task"
	StepKindGate       StepKind = "gate"
	StepKindTransform  StepKind = "transform"
)

// Step is one atomic unit of execution within a run, strictly ordered by idx.
type Step struct {
	ID              string          `json:"id"`
	RunID           string          `json:"run_id"`
	Idx             int             `json:"idx"`
	Name            string          `json:"name"`
	Kind            StepKind        `json:"kind"`
	Status          StepStatus      `json:"status"`
	Inputs          json.RawMessage `json:"inputs,omitempty"`
	Outputs         json.RawMessage `json:"outputs,omitempty"`
	Error           json.RawMessage `json:"error,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	LogsArtifactID  *string         `json:"logs_artifact_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Package model defines the core domain entities: Run, Step, Event,
// Artifact, Pack, PackInstallation.
//
// These are plain semantic types, not bound to any storage implementation;
// internal/store maps them onto relational tables.
package model

import (
	"encoding/json"
	"time"
)

// RunStatus is a run's lifecycle state.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports the terminal statuses: completed/failed/cancelled.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run is one durable execution of a named workflow.
type Run struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	BlueprintRef  string          `json:"blueprint_ref,omitempty"`
	Status        RunStatus       `json:"status"`
	RunAt         time.Time       `json:"run_at"`
	Priority      int             `json:"priority"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   *int            `json:"max_attempts,omitempty"`
	QueuedAt      time.Time       `json:"queued_at"`
	LockedAt      *time.Time      `json:"locked_at,omitempty"`
	LockedBy      *string         `json:"locked_by,omitempty"`
	LeaseExpires  *time.Time      `json:"lease_expires_at,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	Inputs        json.RawMessage `json:"inputs,omitempty"`
	Outputs       json.RawMessage `json:"outputs,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
	ParentRunID   *string         `json:"parent_run_id,omitempty"`
	CancelRequest bool            `json:"cancel_requested,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsRunning reports whether the run currently holds a lease.
func (r *Run) IsRunning() bool {
	return r.Status == RunStatusRunning
}

// CanRetry reports whether an attempt is still available.
func (r *Run) CanRetry() bool {
	return r.MaxAttempts == nil || r.Attempt < *r.MaxAttempts
}

// RunEdgeRelation is a run_edges relation kind.
type RunEdgeRelation string

// RunEdge records a lineage relationship between two runs, allowing
// idempotent child-run creation via ChildKey.
type RunEdge struct {
	ParentRunID string          `json:"parent_run_id"`
	ChildRunID  string          `json:"child_run_id"`
	Relation    RunEdgeRelation `json:"relation"`
	ChildKey    *string         `json:"child_key,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

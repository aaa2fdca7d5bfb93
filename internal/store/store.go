// Package store defines the persistence interfaces that the executor, queue
// engine, and HTTP handlers depend on, rather than coupling directly to a
// concrete database implementation. (The metrics collector and the outbox
// publisher query the raw *sql.DB instead.)
package store

import (
	"context"
	"database/sql"
	"time"

	"agents-admin/internal/model"
)

// TxFunc runs inside a single transaction; returning an error rolls it back.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// Store is the core persistence interface: executor, queue engine, and
// apiserver depend on this rather than a concrete Postgres type.
type Store interface {
	// WithTx runs fn inside a single transaction, for operations that must
	// commit or roll back as one unit.
	WithTx(ctx context.Context, fn TxFunc) error

	RunStore
	StepStore
	EventStore
	ArtifactStore
	PackStore

	Close() error
	Ping(ctx context.Context) error
}

// RunStore persists Run entities and their queue/lease metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, status model.RunStatus, limit int, cursor *Cursor) ([]*model.Run, *Cursor, error)
	UpdateRun(ctx context.Context, run *model.Run) error

	// ClaimNextRun atomically flips one due, queued run to running.
	ClaimNextRun(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Run, bool, error)
	// RenewLease extends the lease; false means the worker already lost it.
	RenewLease(ctx context.Context, runID, workerID string, leaseDuration time.Duration) (bool, error)
	// ReclaimExpired puts running rows with an expired lease back to queued, returning their ids.
	ReclaimExpired(ctx context.Context) ([]string, error)
	// CompleteRun transitions to a terminal status (completed/failed/cancelled).
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, outputs, errPayload []byte) error
	// RescheduleRun puts a run back to queued with a new run_at, for retry.
	RescheduleRun(ctx context.Context, runID string, runAt time.Time) error
	// RequestCancel sets the cancel flag; a queued row goes terminal immediately, a running row is only marked.
	RequestCancel(ctx context.Context, runID string) (*model.Run, error)

	InsertRunEdge(ctx context.Context, edge *model.RunEdge) error
}

// StepStore persists Step entities.
type StepStore interface {
	CreateStep(ctx context.Context, step *model.Step) error
	UpdateStep(ctx context.Context, step *model.Step) error
	ListStepsByRun(ctx context.Context, runID string) ([]*model.Step, error)
	NextStepIdx(ctx context.Context, runID string) (int, error)
}

// EventStore persists the append-only event stream.
type EventStore interface {
	InsertEvent(ctx context.Context, tx *sql.Tx, event *model.Event) (*model.Event, error)
	GetEvent(ctx context.Context, id int64) (*model.Event, error)
	ListEvents(ctx context.Context, filter EventFilter, limit int, cursor *Cursor) ([]*model.Event, *Cursor, error)
	ListEventsByCorrelation(ctx context.Context, correlationID string) ([]*model.Event, error)
}

// EventFilter narrows ListEvents by optional fields.
type EventFilter struct {
	EventName     string
	RunID         string
	CorrelationID string
}

// ArtifactStore persists content-addressed artifact metadata (content bytes live in internal/artifactstore).
type ArtifactStore interface {
	CreateArtifact(ctx context.Context, artifact *model.Artifact) error
	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	GetArtifactBySHA256(ctx context.Context, sha256 string) (*model.Artifact, error)
}

// PackStore persists Pack catalog entries and PackInstallation state machine rows.
type PackStore interface {
	GetPackByRef(ctx context.Context, packRef string) (*model.Pack, error)

	// ClaimInstallation is the idempotent insert (ON CONFLICT DO NOTHING) that
	// resolves concurrent install attempts to exactly one claimant.
	ClaimInstallation(ctx context.Context, installation *model.PackInstallation) (bool, error)
	GetInstallation(ctx context.Context, id string) (*model.PackInstallation, error)
	GetInstallationByRef(ctx context.Context, packRef, envID string) (*model.PackInstallation, error)
	// GetInstallationByBaseRef finds the installation of any version of
	// baseRef (the pack_ref with its "@version" suffix stripped) in envID,
	// for the upgrade blueprint's "find the currently installed version"
	// lookup.
	GetInstallationByBaseRef(ctx context.Context, baseRef, envID string) (*model.PackInstallation, error)
	// ClaimUpgrade is ClaimInstallation's upgrade-path sibling: a CAS-style
	// UPDATE that only succeeds from status='installed', giving exactly one
	// upgrade attempt ownership of the row the same way the insert's
	// ON CONFLICT gives exactly one installer ownership of a fresh one.
	ClaimUpgrade(ctx context.Context, installationID, runID string) (bool, error)
	GetInstallationForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.PackInstallation, error)
	UpdateInstallationMigrationState(ctx context.Context, id, migrationState string) error
	FinalizeInstallation(ctx context.Context, tx *sql.Tx, installation *model.PackInstallation) error
	// FinalizeUpgrade is FinalizeInstallation's upgrade-path sibling: it also
	// repoints pack_id/pack_ref at the target pack version and carries
	// forward migration_state, since an upgrade moves an already-installed
	// row rather than completing a freshly claimed one.
	FinalizeUpgrade(ctx context.Context, tx *sql.Tx, installation *model.PackInstallation) error
	FailInstallation(ctx context.Context, id string, errPayload []byte) error

	// SchemaExists/ProvisionSchema/ApplyMigration each run as a short,
	// self-contained transaction; no lock is held across steps.
	SchemaExists(ctx context.Context, schemaName string) (bool, error)
	ProvisionSchema(ctx context.Context, schemaName string, manifest model.Manifest) error
	ApplyMigration(ctx context.Context, installationID, schemaName string, migration model.Migration) error

	RecordMigrationApplied(ctx context.Context, id string) error
	IsMigrationApplied(ctx context.Context, id string) (bool, error)
	AppliedMigrationIDs(ctx context.Context) ([]string, error)
}

// Cursor is an opaque keyset-pagination position: (sort_key, id).
type Cursor struct {
	SortKey string
	ID      string
}

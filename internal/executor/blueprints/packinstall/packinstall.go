// Package packinstall implements steps 3-6 of spec §4.4's pack-installation
// state machine (provision schema, apply migrations, finalize, fail path).
// Steps 1-2 (validate manifest, claim-insert) run synchronously in
// internal/apiserver's POST /packs/{pack_ref}/install handler so a
// conflicting state is visible in the HTTP response itself; this blueprint
// picks up from an already-claimed "installing" row. Grounded in the shape
// of original_source/core/blueprints/runner.py's RunContext.step() pattern.
package packinstall

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"agents-admin/internal/executor/blueprints"
	"agents-admin/internal/model"
	"agents-admin/internal/queue"
	"agents-admin/internal/xynerrors"
)

// Name is the blueprint_ref this package registers under.
const Name = "packinstall"

// New builds the packinstall blueprint for registration.
func New() *blueprints.Blueprint {
	return &blueprints.Blueprint{
		Name:             Name,
		Run:              run,
		MaxSteps:         10,
		WallClockTimeout: 30 * time.Minute,
		RetryPolicy:      queue.DefaultRetryPolicy(),
	}
}

type runInputs struct {
	InstallationID string `json:"installation_id"`
	PackRef        string `json:"pack_ref"`
	EnvID          string `json:"env_id"`
}

type runOutputs struct {
	InstallationID    string   `json:"installation_id"`
	SchemaName        string   `json:"schema_name"`
	InstalledVersion  string   `json:"installed_version"`
	MigrationsApplied []string `json:"migrations_applied"`
}

func run(ctx context.Context, rc *blueprints.RunContext, rawInputs json.RawMessage) (json.RawMessage, error) {
	var in runInputs
	if err := json.Unmarshal(rawInputs, &in); err != nil {
		return nil, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "decode packinstall inputs: %v", err)
	}

	outputs, err := execute(ctx, rc, in)
	if err != nil {
		failInstallation(ctx, rc, in.InstallationID, err)
		return nil, err
	}
	return outputs, nil
}

func execute(ctx context.Context, rc *blueprints.RunContext, in runInputs) (json.RawMessage, error) {
	pack, err := rc.Deps.Store.GetPackByRef(ctx, in.PackRef)
	if err != nil {
		return nil, err
	}
	installation, err := rc.Deps.Store.GetInstallation(ctx, in.InstallationID)
	if err != nil {
		return nil, err
	}
	if installation.SchemaName == nil {
		return nil, xynerrors.Internal(xynerrors.KindInvariantViolation, "installation %s has no schema_name", in.InstallationID)
	}
	schemaName := *installation.SchemaName

	if _, err := rc.Step(ctx, "Provision schema", model.StepKindTransform,
		mustJSON(map[string]string{"schema_name": schemaName}),
		func(ctx context.Context) (json.RawMessage, error) {
			if err := rc.Deps.Store.ProvisionSchema(ctx, schemaName, pack.Manifest); err != nil {
				return nil, xynerrors.Wrap(xynerrors.KindMigrationApplyFailed, err, err)
			}
			return mustJSON(map[string]string{"schema_name": schemaName}), nil
		}); err != nil {
		return nil, err
	}

	var applied []string
	if _, err := rc.Step(ctx, "Apply migrations", model.StepKindTransform,
		mustJSON(map[string]any{"pending": pack.Manifest.Migrations}),
		func(ctx context.Context) (json.RawMessage, error) {
			for _, migration := range pack.Manifest.Migrations {
				if installation.MigrationState != nil && migration.ID <= *installation.MigrationState {
					continue
				}
				if err := rc.Deps.Store.ApplyMigration(ctx, in.InstallationID, schemaName, migration); err != nil {
					return nil, xynerrors.Wrap(xynerrors.KindMigrationApplyFailed, err, err)
				}
				if err := rc.Deps.Store.RecordMigrationApplied(ctx, migration.ID); err != nil {
					return nil, xynerrors.Wrap(xynerrors.KindMigrationApplyFailed, err, err)
				}
				applied = append(applied, migration.ID)
			}
			return mustJSON(map[string]any{"migrations_applied": applied}), nil
		}); err != nil {
		return nil, err
	}

	finalizeOutputs, err := rc.Step(ctx, "Finalize installation", model.StepKindTransform,
		mustJSON(map[string]string{"installation_id": in.InstallationID}),
		func(ctx context.Context) (json.RawMessage, error) {
			return finalize(ctx, rc, in, pack.Version)
		})
	if err != nil {
		return nil, err
	}

	var fin runOutputs
	_ = json.Unmarshal(finalizeOutputs, &fin)
	fin.MigrationsApplied = applied
	if err := rc.Emit(ctx, model.EventPackInstallCompleted, fin); err != nil {
		return nil, err
	}
	return mustJSON(fin), nil
}

// finalize implements spec §4.4 step 5: a short row-locked transaction that
// verifies run ownership, enforces the non-null invariants, and flips the
// installation to installed.
func finalize(ctx context.Context, rc *blueprints.RunContext, in runInputs, version string) (json.RawMessage, error) {
	var result runOutputs
	err := rc.Deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		installation, err := rc.Deps.Store.GetInstallationForUpdate(ctx, tx, in.InstallationID)
		if err != nil {
			return err
		}

		if installation.InstalledByRunID == nil || *installation.InstalledByRunID != rc.Run.ID {
			return xynerrors.Conflict(xynerrors.KindOwnershipViolation,
				"installation %s is owned by a different run", in.InstallationID)
		}

		// Idempotency: another attempt by this same run already finished.
		if installation.Status == model.InstallationInstalled {
			result = runOutputs{
				InstallationID:   installation.ID,
				SchemaName:       valueOr(installation.SchemaName),
				InstalledVersion: valueOr(installation.InstalledVersion),
			}
			return nil
		}

		if installation.SchemaName == nil || *installation.SchemaName == "" {
			return xynerrors.Internal(xynerrors.KindInvariantViolation, "installation %s missing schema_name", in.InstallationID)
		}

		installation.InstalledVersion = &version
		installation.UpdatedByRunID = &rc.Run.ID
		if err := rc.Deps.Store.FinalizeInstallation(ctx, tx, installation); err != nil {
			return xynerrors.Wrap(xynerrors.KindInvariantViolation, err, err)
		}

		result = runOutputs{
			InstallationID:   installation.ID,
			SchemaName:       *installation.SchemaName,
			InstalledVersion: version,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mustJSON(result), nil
}

func valueOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func failInstallation(ctx context.Context, rc *blueprints.RunContext, installationID string, cause error) {
	payload, _ := json.Marshal(map[string]string{"message": cause.Error(), "kind": string(xynerrors.KindOf(cause))})
	_ = rc.Deps.Store.FailInstallation(ctx, installationID, payload)
	_ = rc.Emit(ctx, model.EventPackInstallFailed, map[string]string{"installation_id": installationID, "error": cause.Error()})
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

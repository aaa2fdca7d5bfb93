// Package packupgrade implements the pack-upgrade blueprint, supplemented
// from original_source/core/blueprints/pack_upgrade.py (a feature the
// distilled spec dropped but the original implements). It reuses
// packinstall's claim->migrate->finalize shape but starts from an
// already-"installed" row (claimed installed->upgrading synchronously in
// internal/apiserver's POST /packs/{pack_ref}/upgrade handler) instead of
// inserting a fresh one, applies only migrations strictly newer than the
// row's current migration_state, and finalizes by repointing pack_id/pack_ref
// at the target version and bumping installed_version.
package packupgrade

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
const Name = "packupgrade"

// New builds the packupgrade blueprint for registration.
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
	FromVersion       string   `json:"from_version"`
	ToVersion         string   `json:"to_version"`
	MigrationsApplied []string `json:"migrations_applied"`
	SchemaName        string   `json:"schema_name"`
}

func run(ctx context.Context, rc *blueprints.RunContext, rawInputs json.RawMessage) (json.RawMessage, error) {
	var in runInputs
	if err := json.Unmarshal(rawInputs, &in); err != nil {
		return nil, xynerrors.InvalidArgument(xynerrors.KindStepHandlerError, "decode packupgrade inputs: %v", err)
	}

	outputs, err := execute(ctx, rc, in)
	if err != nil {
		failUpgrade(ctx, rc, in.InstallationID, err)
		return nil, err
	}
	return outputs, nil
}

func execute(ctx context.Context, rc *blueprints.RunContext, in runInputs) (json.RawMessage, error) {
	var installation *model.PackInstallation
	if _, err := rc.Step(ctx, "Verify current installation", model.StepKindActionTask,
		mustJSON(map[string]string{"installation_id": in.InstallationID}),
		func(ctx context.Context) (json.RawMessage, error) {
			var err error
			installation, err = rc.Deps.Store.GetInstallation(ctx, in.InstallationID)
			if err != nil {
				return nil, err
			}
			if installation.Status != model.InstallationUpgrading {
				return nil, xynerrors.FailedPrecondition(xynerrors.KindUpgradeNotAllowed,
					"installation %s is in status %s, expected upgrading", installation.ID, installation.Status)
			}
			return mustJSON(map[string]any{
				"from_ref":               installation.PackRef,
				"from_version":           valueOr(installation.InstalledVersion),
				"current_migration_state": valueOr(installation.MigrationState),
			}), nil
		}); err != nil {
		return nil, err
	}
	fromVersion := valueOr(installation.InstalledVersion)

	var targetPack *model.Pack
	if _, err := rc.Step(ctx, "Fetch target pack", model.StepKindActionTask,
		mustJSON(map[string]string{"pack_ref": in.PackRef}),
		func(ctx context.Context) (json.RawMessage, error) {
			var err error
			targetPack, err = rc.Deps.Store.GetPackByRef(ctx, in.PackRef)
			if err != nil {
				return nil, err
			}
			return mustJSON(map[string]string{"target_pack_id": targetPack.ID, "to_version": targetPack.Version}), nil
		}); err != nil {
		return nil, err
	}
	toVersion := targetPack.Version

	if _, err := rc.Step(ctx, "Validate upgrade path", model.StepKindActionTask,
		mustJSON(map[string]string{"from_version": fromVersion, "to_version": toVersion}),
		func(ctx context.Context) (json.RawMessage, error) {
			upgradeType := "standard"
			if fromVersion == toVersion {
				upgradeType = "no-op"
			}
			return mustJSON(map[string]string{"upgrade_type": upgradeType}), nil
		}); err != nil {
		return nil, err
	}

	var pending []model.Migration
	if _, err := rc.Step(ctx, "Calculate migration delta", model.StepKindTransform,
		mustJSON(map[string]any{"last_applied": valueOrNil(installation.MigrationState)}),
		func(ctx context.Context) (json.RawMessage, error) {
			lastApplied := installation.MigrationState
			for _, m := range targetPack.Manifest.Migrations {
				if lastApplied == nil || m.ID > *lastApplied {
					pending = append(pending, m)
				}
			}
			ids := make([]string, len(pending))
			for i, m := range pending {
				ids[i] = m.ID
			}
			return mustJSON(map[string]any{"pending_migration_ids": ids}), nil
		}); err != nil {
		return nil, err
	}

	var applied []string
	migrationState := installation.MigrationState
	if len(pending) > 0 {
		if _, err := rc.Step(ctx, "Apply pending migrations", model.StepKindTransform,
			mustJSON(map[string]any{"pending": pending}),
			func(ctx context.Context) (json.RawMessage, error) {
				schemaName := valueOr(installation.SchemaName)
				for _, m := range pending {
					if err := rc.Deps.Store.ApplyMigration(ctx, in.InstallationID, schemaName, m); err != nil {
						return nil, xynerrors.Wrap(xynerrors.KindMigrationApplyFailed, err, err)
					}
					if err := rc.Deps.Store.RecordMigrationApplied(ctx, m.ID); err != nil {
						return nil, xynerrors.Wrap(xynerrors.KindMigrationApplyFailed, err, err)
					}
					applied = append(applied, m.ID)
					id := m.ID
					migrationState = &id
				}
				return mustJSON(map[string]any{"migrations_applied": applied}), nil
			}); err != nil {
			return nil, err
		}
	}

	finalizeOutputs, err := rc.Step(ctx, "Finalize upgrade", model.StepKindTransform,
		mustJSON(map[string]string{"installation_id": in.InstallationID}),
		func(ctx context.Context) (json.RawMessage, error) {
			return finalize(ctx, rc, in, targetPack, toVersion, migrationState)
		})
	if err != nil {
		return nil, err
	}

	var fin runOutputs
	_ = json.Unmarshal(finalizeOutputs, &fin)
	fin.FromVersion = fromVersion
	fin.MigrationsApplied = applied
	if err := rc.Emit(ctx, model.EventPackUpgradeCompleted, fin); err != nil {
		return nil, err
	}
	return mustJSON(fin), nil
}

// finalize mirrors packinstall's finalize (row-locked ownership/idempotency
// check, then the terminal write) but repoints pack_id/pack_ref at the
// target version and carries forward migration_state, via FinalizeUpgrade.
func finalize(ctx context.Context, rc *blueprints.RunContext, in runInputs, targetPack *model.Pack, toVersion string, migrationState *string) (json.RawMessage, error) {
	var result runOutputs
	err := rc.Deps.Store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		installation, err := rc.Deps.Store.GetInstallationForUpdate(ctx, tx, in.InstallationID)
		if err != nil {
			return err
		}

		if installation.UpdatedByRunID == nil || *installation.UpdatedByRunID != rc.Run.ID {
			return xynerrors.Conflict(xynerrors.KindOwnershipViolation,
				"installation %s is owned by a different run", in.InstallationID)
		}

		if installation.PackRef == targetPack.PackRef && installation.Status == model.InstallationInstalled {
			result = runOutputs{
				InstallationID: installation.ID,
				ToVersion:      valueOr(installation.InstalledVersion),
				SchemaName:     valueOr(installation.SchemaName),
			}
			return nil
		}

		if installation.SchemaName == nil || *installation.SchemaName == "" {
			return xynerrors.Internal(xynerrors.KindInvariantViolation, "installation %s missing schema_name", in.InstallationID)
		}

		installation.PackID = targetPack.ID
		installation.PackRef = targetPack.PackRef
		installation.InstalledVersion = &toVersion
		installation.MigrationState = migrationState
		installation.UpdatedByRunID = &rc.Run.ID
		if err := rc.Deps.Store.FinalizeUpgrade(ctx, tx, installation); err != nil {
			return xynerrors.Wrap(xynerrors.KindInvariantViolation, err, err)
		}

		result = runOutputs{
			InstallationID: installation.ID,
			ToVersion:      toVersion,
			SchemaName:     *installation.SchemaName,
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

func valueOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func failUpgrade(ctx context.Context, rc *blueprints.RunContext, installationID string, cause error) {
	payload, _ := json.Marshal(map[string]string{"message": cause.Error(), "kind": string(xynerrors.KindOf(cause))})
	_ = rc.Deps.Store.FailInstallation(ctx, installationID, payload)
	_ = rc.Emit(ctx, model.EventPackUpgradeFailed, map[string]string{"installation_id": installationID, "error": cause.Error()})
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

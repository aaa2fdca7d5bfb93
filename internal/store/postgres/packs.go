package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"agents-admin/internal/model"
	"agents-admin/internal/xynerrors"
)

const installationColumns = `id, pack_id, pack_ref, env_id, status, schema_mode, schema_name,
	migration_provider, migration_state, installed_version, installed_at, installed_by_run_id,
	updated_by_run_id, error, last_error_at, created_at, updated_at`

func scanInstallation(row interface{ Scan(...any) error }) (*model.PackInstallation, error) {
	i := &model.PackInstallation{}
	var errPayload []byte
	if err := row.Scan(&i.ID, &i.PackID, &i.PackRef, &i.EnvID, &i.Status, &i.SchemaMode, &i.SchemaName,
		&i.MigrationProvider, &i.MigrationState, &i.InstalledVersion, &i.InstalledAt, &i.InstalledByRunID,
		&i.UpdatedByRunID, &errPayload, &i.LastErrorAt, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	i.Error = json.RawMessage(errPayload)
	return i, nil
}

// GetPackByRef fetches a catalog entry, see spec §3.
func (s *Store) GetPackByRef(ctx context.Context, packRef string) (*model.Pack, error) {
	query := `SELECT id, pack_ref, version, manifest, pack_type, dependencies, created_at FROM packs WHERE pack_ref=$1`
	p := &model.Pack{}
	var manifest []byte
	var deps []byte
	err := s.db.QueryRowContext(ctx, query, packRef).Scan(&p.ID, &p.PackRef, &p.Version, &manifest, &p.PackType, &deps, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("pack %s not found", packRef)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(manifest, &p.Manifest); err != nil {
		return nil, err
	}
	if len(deps) > 0 {
		_ = json.Unmarshal(deps, &p.Dependencies)
	}
	return p, nil
}

// ClaimInstallation performs the idempotent insert of spec §4.4 step 2:
// ON CONFLICT (pack_ref, env_id) DO NOTHING. A false return means another
// installation already owns this (pack_ref, env_id) pair; the caller re-reads
// and classifies per the spec's conflict taxonomy.
func (s *Store) ClaimInstallation(ctx context.Context, installation *model.PackInstallation) (bool, error) {
	query := `INSERT INTO pack_installations
		(id, pack_id, pack_ref, env_id, status, schema_mode, schema_name, migration_provider,
		 installed_by_run_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,'installing',$5,$6,$7,$8,$9,$9)
		ON CONFLICT (pack_ref, env_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query,
		installation.ID, installation.PackID, installation.PackRef, installation.EnvID,
		installation.SchemaMode, installation.SchemaName, installation.MigrationProvider,
		installation.InstalledByRunID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimUpgrade is ClaimInstallation's upgrade-path sibling: a CAS-style
// UPDATE that only succeeds against a row currently in status='installed',
// so exactly one concurrent upgrade attempt gets ownership.
func (s *Store) ClaimUpgrade(ctx context.Context, installationID, runID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pack_installations SET status='upgrading', updated_by_run_id=$1, updated_at=now()
		 WHERE id=$2 AND status='installed'`,
		runID, installationID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetInstallation fetches an installation row by id without taking a lock,
// for read-only bookkeeping between the short transactions of spec §4.4
// steps 3-4 (the row lock of step 5 is acquired separately, only for the
// finalize critical section).
func (s *Store) GetInstallation(ctx context.Context, id string) (*model.PackInstallation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+installationColumns+` FROM pack_installations WHERE id=$1`, id)
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("installation %s not found", id)
	}
	return i, err
}

// GetInstallationByRef re-reads the existing row after a failed claim, for the classification of spec §4.4 step 2.
func (s *Store) GetInstallationByRef(ctx context.Context, packRef, envID string) (*model.PackInstallation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+installationColumns+` FROM pack_installations WHERE pack_ref=$1 AND env_id=$2`, packRef, envID)
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("installation for %s/%s not found", packRef, envID)
	}
	return i, err
}

// GetInstallationByBaseRef finds the installation row for any version of
// baseRef (pack_ref stripped of its "@version" suffix) in envID, for the
// upgrade blueprint's "locate the currently installed version" step.
func (s *Store) GetInstallationByBaseRef(ctx context.Context, baseRef, envID string) (*model.PackInstallation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+installationColumns+` FROM pack_installations WHERE pack_ref LIKE $1 AND env_id=$2`,
		baseRef+"@%", envID)
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("no installation of %s found in env %s", baseRef, envID)
	}
	return i, err
}

// GetInstallationForUpdate takes the row lock of spec §4.4 step 5 (finalize's short critical section).
func (s *Store) GetInstallationForUpdate(ctx context.Context, tx *sql.Tx, id string) (*model.PackInstallation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+installationColumns+` FROM pack_installations WHERE id=$1 FOR UPDATE`, id)
	i, err := scanInstallation(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("installation %s not found", id)
	}
	return i, err
}

// UpdateInstallationMigrationState records progress after each migration DDL applies, per spec §4.4 step 4.
func (s *Store) UpdateInstallationMigrationState(ctx context.Context, id, migrationState string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pack_installations SET migration_state=$1, updated_at=now() WHERE id=$2`, migrationState, id)
	return err
}

// FinalizeInstallation writes the installed terminal state inside the caller's
// already-open, row-locked transaction, per spec §4.4 step 5. The database
// check constraint (status='installed' implies the four non-null fields) is
// the second line of defense if this code has a bug.
func (s *Store) FinalizeInstallation(ctx context.Context, tx *sql.Tx, installation *model.PackInstallation) error {
	query := `UPDATE pack_installations SET status='installed', error=NULL,
		installed_at=now(), installed_version=$1, updated_by_run_id=$2, updated_at=now() WHERE id=$3`
	_, err := tx.ExecContext(ctx, query, installation.InstalledVersion, installation.UpdatedByRunID, installation.ID)
	return err
}

// FinalizeUpgrade is FinalizeInstallation's upgrade-path sibling: besides
// flipping status to installed, it repoints pack_id/pack_ref at the target
// version and records the migration_state reached, inside the caller's
// already row-locked transaction.
func (s *Store) FinalizeUpgrade(ctx context.Context, tx *sql.Tx, installation *model.PackInstallation) error {
	query := `UPDATE pack_installations SET status='installed', error=NULL,
		pack_id=$1, pack_ref=$2, installed_version=$3, migration_state=$4,
		installed_at=COALESCE(installed_at, now()), updated_by_run_id=$5, updated_at=now() WHERE id=$6`
	_, err := tx.ExecContext(ctx, query,
		installation.PackID, installation.PackRef, installation.InstalledVersion,
		installation.MigrationState, installation.UpdatedByRunID, installation.ID)
	return err
}

// FailInstallation terminates an installation attempt in the failed state, per spec §4.4 step 6.
func (s *Store) FailInstallation(ctx context.Context, id string, errPayload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pack_installations SET status='failed', error=$1, last_error_at=now(), updated_at=now() WHERE id=$2`,
		errPayload, id)
	return err
}

// RecordMigrationApplied idempotently records a migration in the ledger, per spec §3.
func (s *Store) RecordMigrationApplied(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (id, applied_at) VALUES ($1, now()) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

// IsMigrationApplied checks the ledger.
func (s *Store) IsMigrationApplied(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

// AppliedMigrationIDs lists every migration id recorded in the ledger. No
// startup path calls it: XYN_REQUIRED_MIGRATIONS is read into config but is
// not checked against the ledger.
func (s *Store) AppliedMigrationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

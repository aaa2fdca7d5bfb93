package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agents-admin/internal/model"
)

// SchemaExists checks whether a schema namespace has already been provisioned.
func (s *Store) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name=$1)`, schemaName).Scan(&exists)
	return exists, err
}

// ProvisionSchema creates the per-pack schema namespace if it does not exist,
// per spec §4.4 step 3. It creates no tables: manifest is not read, and a
// pack's tables come only from its migrations' DDL (ApplyMigration).
// schemaName must already be validated by ValidateIdentifier.
func (s *Store) ProvisionSchema(ctx context.Context, schemaName string, manifest model.Manifest) error {
	if err := ValidateIdentifier(schemaName); err != nil {
		return err
	}
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdentifier(schemaName))); err != nil {
			return fmt.Errorf("create schema %s: %w", schemaName, err)
		}
		return nil
	})
}

// ApplyMigration runs one manifest migration's DDL transactionally and
// records the migration_state bump on success, per spec §4.4 step 4.
func (s *Store) ApplyMigration(ctx context.Context, installationID, schemaName string, migration model.Migration) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", QuoteIdentifier(schemaName))); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.DDL); err != nil {
			return fmt.Errorf("apply migration %s: %w", migration.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE pack_installations SET migration_state=$1, updated_at=now() WHERE id=$2`,
			migration.ID, installationID); err != nil {
			return fmt.Errorf("record migration_state %s: %w", migration.ID, err)
		}
		return nil
	})
}

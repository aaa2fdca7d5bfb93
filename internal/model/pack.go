package model

import (
	"encoding/json"
	"time"
)

// InstallationStatus is PackInstallation's state machine.
type InstallationStatus string

const (
	InstallationAvailable    InstallationStatus = "available"
	InstallationInstalling   InstallationStatus = "installing"
	InstallationInstalled    InstallationStatus = "installed"
	InstallationUpgrading    InstallationStatus = "upgrading"
	InstallationFailed       InstallationStatus = "failed"
	InstallationUninstalling InstallationStatus = "uninstalling"
)

// SchemaMode decides a pack's schema isolation strategy.
type SchemaMode string

const (
	SchemaModePerPack SchemaMode = "per_pack"
	SchemaModeShared  SchemaMode = "shared"
)

// Migration is one ordered migration inside a pack manifest.
type Migration struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	DDL         string `json:"ddl"`
}

// Manifest lists the tables and migrations a pack declares.
type Manifest struct {
	Tables     []string    `json:"tables"`
	Migrations []Migration `json:"migrations"`
}

// Pack is one catalog entry.
type Pack struct {
	ID           string    `json:"id"`
	PackRef      string    `json:"pack_ref"`
	Version      string    `json:"version"`
	Manifest     Manifest  `json:"manifest"`
	PackType     string    `json:"pack_type"`
	Dependencies []string  `json:"dependencies,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PackInstallation is one pack's deployment record in one environment.
type PackInstallation struct {
	ID                string             `json:"id"`
	PackID            string             `json:"pack_id"`
	PackRef           string             `json:"pack_ref"`
	EnvID             string             `json:"env_id"`
	Status            InstallationStatus `json:"status"`
	SchemaMode        SchemaMode         `json:"schema_mode"`
	SchemaName        *string            `json:"schema_name,omitempty"`
	MigrationProvider string             `json:"migration_provider,omitempty"`
	MigrationState    *string            `json:"migration_state,omitempty"`
	InstalledVersion  *string            `json:"installed_version,omitempty"`
	InstalledAt       *time.Time         `json:"installed_at,omitempty"`
	InstalledByRunID  *string            `json:"installed_by_run_id,omitempty"`
	UpdatedByRunID    *string            `json:"updated_by_run_id,omitempty"`
	Error             json.RawMessage    `json:"error,omitempty"`
	LastErrorAt       *time.Time         `json:"last_error_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsInstalled reports whether this record satisfies the installed-state
// check-constraint invariant (schema_name/installed_version/installed_at/
// installed_by_run_id all set).
func (p *PackInstallation) IsInstalled() bool {
	return p.Status == InstallationInstalled &&
		p.SchemaName != nil && p.InstalledVersion != nil &&
		p.InstalledAt != nil && p.InstalledByRunID != nil
}

// SchemaMigrationRecord is one row of the migration ledger.
type SchemaMigrationRecord struct {
	ID        string    `json:"id"`
	AppliedAt time.Time `json:"applied_at"`
}

package packinstall_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agents-admin/internal/eventlog"
	"agents-admin/internal/executor/blueprints"
	"agents-admin/internal/executor/blueprints/packinstall"
	"agents-admin/internal/executor/handlers"
	"agents-admin/internal/model"
	"agents-admin/internal/store/postgres"
	"agents-admin/pkg/logging"
	"agents-admin/tests/testutil"
)

func openTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	cfg := testutil.TestConfig(t)
	s, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("cannot connect to test database: %v\nrun ./scripts/test-env.sh setup first", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedPack inserts a minimal catalog entry with a single idempotent migration.
func seedPack(t *testing.T, store *postgres.Store, rawDB *sql.DB, packRef, tableName string) *model.Pack {
	t.Helper()
	manifest := model.Manifest{
		Tables: []string{tableName},
		Migrations: []model.Migration{
			{ID: packRef + "-0001", Description: "create table", DDL: fmt.Sprintf("CREATE TABLE %s (id serial primary key)", tableName)},
		},
	}
	manifestJSON, err := json.Marshal(manifest)
	require.NoError(t, err)

	id := packRef + "-id"
	_, err = rawDB.ExecContext(context.Background(),
		`INSERT INTO packs (id, pack_ref, version, manifest, pack_type, created_at)
		 VALUES ($1,$2,'1.0.0',$3,'domain',now())
		 ON CONFLICT (id) DO NOTHING`,
		id, packRef, manifestJSON)
	require.NoError(t, err)

	pack, err := store.GetPackByRef(context.Background(), packRef)
	require.NoError(t, err)
	return pack
}

// seedRun inserts a minimal run row, since pack_installations.installed_by_run_id
// references runs(id).
func seedRun(t *testing.T, store *postgres.Store, runID string) *model.Run {
	t.Helper()
	now := time.Now().UTC()
	run := &model.Run{
		ID:            runID,
		Name:          "packinstall-test",
		Status:        model.RunStatusRunning,
		RunAt:         now,
		QueuedAt:      now,
		CorrelationID: runID,
		Inputs:        json.RawMessage(`{}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

func newRunContext(store *postgres.Store, run *model.Run) *blueprints.RunContext {
	deps := blueprints.Deps{
		Store:    store,
		Emitter:  eventlog.New(store),
		Handlers: handlers.NewRegistry(),
		WorkerID: "test-worker",
		Log:      logging.Default("packinstall-test"),
	}
	return blueprints.NewRunContext(deps, run, 10)
}

// TestInstallHappyPathFinalizesInstallation drives packinstall's Run
// function end to end: provision schema, apply the one migration, finalize.
func TestInstallHappyPathFinalizesInstallation(t *testing.T) {
	store := openTestStore(t)
	rawDB := testutil.TestDB(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	packRef := fmt.Sprintf("test.pack.%d", suffix)
	schemaName := fmt.Sprintf("pack_test_%d", suffix)
	tableName := "widgets"
	runID := fmt.Sprintf("run-%d", suffix)

	pack := seedPack(t, store, rawDB, packRef, tableName)
	t.Cleanup(func() {
		rawDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
	})
	run := seedRun(t, store, runID)

	installation := &model.PackInstallation{
		ID:                fmt.Sprintf("install-%d", suffix),
		PackID:            pack.ID,
		PackRef:           packRef,
		EnvID:             "test-env",
		SchemaMode:        model.SchemaModePerPack,
		SchemaName:        &schemaName,
		MigrationProvider: "sql",
		InstalledByRunID:  &runID,
	}
	claimed, err := store.ClaimInstallation(ctx, installation)
	require.NoError(t, err)
	require.True(t, claimed)

	bp := packinstall.New()
	rawInputs, _ := json.Marshal(map[string]string{
		"installation_id": installation.ID,
		"pack_ref":        packRef,
		"env_id":          "test-env",
	})

	outputs, err := bp.Run(ctx, newRunContext(store, run), rawInputs)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(outputs, &decoded))
	assert.Equal(t, schemaName, decoded["schema_name"])
	assert.Equal(t, "1.0.0", decoded["installed_version"])

	final, err := store.GetInstallation(ctx, installation.ID)
	require.NoError(t, err)
	assert.True(t, final.IsInstalled())
	assert.Equal(t, model.InstallationInstalled, final.Status)
	require.NotNil(t, final.InstalledByRunID)
	assert.Equal(t, runID, *final.InstalledByRunID)
}

// TestInstallUnknownPackRefFailsInstallation covers the failure path: an
// execute() error before any step runs still flips the installation to
// failed, per spec §4.4 step 6.
func TestInstallUnknownPackRefFailsInstallation(t *testing.T) {
	store := openTestStore(t)
	rawDB := testutil.TestDB(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	// A real catalog entry backs pack_installations.pack_id's FK; the run's
	// inputs then reference a *different*, nonexistent pack_ref so
	// GetPackByRef fails before any step runs.
	validPackRef := fmt.Sprintf("test.other.%d", suffix)
	missingPackRef := fmt.Sprintf("no.such.pack.%d", suffix)
	schemaName := fmt.Sprintf("pack_missing_%d", suffix)
	runID := fmt.Sprintf("run-missing-%d", suffix)
	installationID := fmt.Sprintf("install-missing-%d", suffix)

	pack := seedPack(t, store, rawDB, validPackRef, "widgets_other")
	run := seedRun(t, store, runID)

	installation := &model.PackInstallation{
		ID:                installationID,
		PackID:            pack.ID,
		PackRef:           validPackRef,
		EnvID:             "test-env",
		SchemaMode:        model.SchemaModePerPack,
		SchemaName:        &schemaName,
		MigrationProvider: "sql",
		InstalledByRunID:  &runID,
	}
	claimed, err := store.ClaimInstallation(ctx, installation)
	require.NoError(t, err)
	require.True(t, claimed)

	bp := packinstall.New()
	rawInputs, _ := json.Marshal(map[string]string{
		"installation_id": installationID,
		"pack_ref":        missingPackRef,
		"env_id":          "test-env",
	})

	_, err = bp.Run(ctx, newRunContext(store, run), rawInputs)
	require.Error(t, err)

	failed, err := store.GetInstallation(ctx, installationID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallationFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
}

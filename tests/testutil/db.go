// Package testutil provides shared test infrastructure.
//
// Two kinds of helper live here:
//   - InProcEnv: an in-process test environment (for apiserver/integration tests)
//   - E2EClient: an external HTTP client (for acceptance tests, see e2e.go)
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agents-admin/internal/config"
	"agents-admin/internal/shared/infra"
)

// TestConfig returns the test-environment config (configs/test.yaml + .env.test).
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	os.Setenv("APP_ENV", "test")
	return config.Load()
}

// TestDB returns a raw connection to the test database.
// Run ./scripts/test-env.sh setup first.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	os.Setenv("APP_ENV", "test")
	cfg := config.Load()
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("cannot connect to test database: %v\nrun ./scripts/test-env.sh setup first", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("test database ping failed: %v\nrun ./scripts/test-env.sh setup first", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	t.Logf("test database: %s", cfg.String())
	return db
}

// TestInfra connects every test-environment dependency (Postgres, Redis,
// MinIO, Docker) and tears them all down on test cleanup.
func TestInfra(t *testing.T) *infra.Infrastructure {
	t.Helper()

	os.Setenv("APP_ENV", "test")
	cfg := config.Load()

	i, err := infra.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("cannot connect test infrastructure: %v\nrun ./scripts/test-env.sh setup first", err)
	}
	t.Cleanup(func() {
		i.Close()
	})

	t.Logf("test infra: %s", cfg.String())
	return i
}

// CleanupTables truncates the given tables.
func CleanupTables(t *testing.T, db *sql.DB, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("warning: failed to truncate table %s: %v", table, err)
		}
	}
}

// CleanupAllTables truncates every table in the public schema.
func CleanupAllTables(t *testing.T, db *sql.DB) {
	t.Helper()

	rows, err := db.Query(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
	`)
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			continue
		}
		tables = append(tables, table)
	}

	CleanupTables(t, db, tables...)
}

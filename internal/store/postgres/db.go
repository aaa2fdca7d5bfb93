// Package postgres implements internal/store.Store in the teacher's
// internal/storage.PostgresStore shape: a *sql.DB opened via
// sql.Open("pgx", dsn), raw SQL, context threaded through every call.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agents-admin/internal/store"
)

// Store is the PostgreSQL implementation of internal/store.Store.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection pool and returns a Store.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for callers that need it directly, such
// as the event outbox publisher tailing the events table outside of the
// store.Store interface.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a single transaction, committing on success, rolling back on error or panic.
// This is the mechanism behind spec §4.1's "composite writes commit atomically" contract.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)

// Package infra is the basic-infrastructure aggregation layer, carried over
// from the teacher's shape (one struct holding every outward connection,
// one Close() that tears all of them down) but rebound to the job-runtime's
// stack: Postgres is the single source of truth (internal/store), Redis is
// the event outbox's downstream publisher only,
// MinIO is the artifact blob store, and Docker plus the agent-driver
// registry back the step handlers.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agents-admin/internal/artifactstore"
	"agents-admin/internal/config"
	"agents-admin/internal/eventlog/outbox"
	"agents-admin/internal/store"
	"agents-admin/internal/store/postgres"
	"agents-admin/pkg/docker"
	"agents-admin/pkg/driver"
	"agents-admin/pkg/driver/claude"
	"agents-admin/pkg/driver/gemini"
	"agents-admin/pkg/driver/qwencode"
)

// Infrastructure aggregates every outward connection a worker or API
// server process needs, built once at startup and torn down on shutdown.
type Infrastructure struct {
	// Store is the relational source of truth for runs/steps/events/
	// artifacts/packs, see SPEC_FULL.md §4.1.
	Store store.Store

	// Redis is the outbox publisher's downstream (the xyn:events stream and
	// the xyn:run_ready pubsub channel, which nothing here subscribes to).
	// Never load-bearing for claim/lease correctness.
	Redis *redis.Client

	// Outbox tails the events table and republishes to Redis.
	Outbox *outbox.Publisher

	// Artifacts is the content-addressed blob store for step logs and
	// agent transcripts.
	Artifacts artifactstore.Store

	// Docker runs action_task and agent_task containers.
	Docker *docker.Client

	// Drivers is the agent CLI adapter registry used by the agent_task
	// step handler.
	Drivers *driver.Registry
}

// New connects every dependency described by cfg. Callers should call
// Close when done, even on a partial failure path (New cleans up whatever
// it already opened before returning an error).
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{}

	pgStore, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	infra.Store = pgStore

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	infra.Redis = redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := infra.Redis.Ping(pingCtx).Err(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	infra.Outbox = outbox.New(pgStore.DB(), infra.Redis)

	artifacts, err := artifactstore.NewMinIOStore(ctx, cfg.MinIO)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	infra.Artifacts = artifacts

	dockerClient, err := docker.NewClient()
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("connect docker: %w", err)
	}
	infra.Docker = dockerClient

	infra.Drivers = driver.NewRegistry()
	infra.Drivers.Register(claude.New())
	infra.Drivers.Register(gemini.New())
	infra.Drivers.Register(qwencode.New())

	return infra, nil
}

// Close tears down every connection that was successfully opened, returning
// the first error encountered.
func (i *Infrastructure) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if i.Docker != nil {
		record(i.Docker.Close())
	}
	if i.Artifacts != nil {
		record(i.Artifacts.Close())
	}
	if i.Redis != nil {
		record(i.Redis.Close())
	}
	if i.Store != nil {
		record(i.Store.Close())
	}

	return firstErr
}

// Package main is the worker process entry point: it claims runs off the
// queue, drives each through the executor, and runs the supporting
// background loops (lease renewal, reclaim, outbox publishing), mirroring
// the teacher's cmd/executor graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agents-admin/internal/config"
	"agents-admin/internal/eventlog"
	"agents-admin/internal/executor"
	"agents-admin/internal/executor/blueprints"
	"agents-admin/internal/executor/blueprints/flatplans"
	"agents-admin/internal/executor/blueprints/packinstall"
	"agents-admin/internal/executor/blueprints/packupgrade"
	"agents-admin/internal/executor/handlers"
	"agents-admin/internal/queue"
	"agents-admin/internal/shared/infra"
)

func main() {
	cfg := config.Load()
	log.Printf("Starting Worker... [env=%s worker_id=%s]", cfg.Env, cfg.Worker.ID)
	log.Printf("Config: %s", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infrastructure, err := infra.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer infrastructure.Close()
	log.Println("Connected to PostgreSQL, Redis, MinIO, Docker")

	emitter := eventlog.New(infrastructure.Store)
	queueEngine := queue.New(infrastructure.Store)

	handlerRegistry := handlers.NewRegistry()
	handlerRegistry.Register(handlers.GateHandler{})
	handlerRegistry.Register(handlers.TransformHandler{})
	handlerRegistry.Register(handlers.NewActionTaskHandler(infrastructure.Docker))
	handlerRegistry.Register(handlers.NewAgentTaskHandler(infrastructure.Docker, infrastructure.Drivers))

	blueprintRegistry := blueprints.NewRegistry()
	blueprintRegistry.Register(packinstall.New())
	blueprintRegistry.Register(packupgrade.New())
	blueprintRegistry.Register(flatplans.Noop())
	blueprintRegistry.Register(flatplans.ContainerTask())
	blueprintRegistry.Register(flatplans.AgentTask())

	exec := executor.New(infrastructure.Store, queueEngine, emitter, blueprintRegistry, handlerRegistry, cfg.Worker.ID)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		infrastructure.Outbox.Run(ctx, 500*time.Millisecond)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runReclaimLoop(ctx, queueEngine, cfg.Worker.LeaseDuration)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runClaimLoop(ctx, queueEngine, exec, cfg.Worker.ID, cfg.Worker.LeaseDuration, cfg.Worker.IdlePoll)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down Worker...")
	cancel()
	wg.Wait()
	log.Println("Worker stopped")
}

// runClaimLoop polls for a claimable run every idlePoll, jittered by up to
// 20% to keep a worker fleet from claiming in lockstep, and drives each
// claimed run to completion with a background lease-renewal goroutine
// alongside it, per spec §4.3.
func runClaimLoop(ctx context.Context, q *queue.Engine, exec *executor.Executor, workerID string, leaseDuration, idlePoll time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		run, ok, err := q.Claim(ctx, workerID, leaseDuration)
		if err != nil {
			log.Printf("claim failed: %v", err)
			sleepJittered(ctx, idlePoll)
			continue
		}
		if !ok {
			sleepJittered(ctx, idlePoll)
			continue
		}

		runCtx, stopRenewal := context.WithCancel(ctx)
		renewalDone := make(chan struct{})
		go func() {
			defer close(renewalDone)
			renewLease(runCtx, q, run.ID, workerID, leaseDuration)
		}()

		exec.Run(ctx, run)

		stopRenewal()
		<-renewalDone
	}
}

// renewLease renews a held lease at half the lease duration until ctx is
// cancelled (the run finished) or the lease is lost, in which case the
// executor's in-flight work is left to fail on its own next store write.
func renewLease(ctx context.Context, q *queue.Engine, runID, workerID string, leaseDuration time.Duration) {
	ticker := time.NewTicker(leaseDuration / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := q.Renew(ctx, runID, workerID, leaseDuration)
			if err != nil {
				log.Printf("lease renewal failed for run %s: %v", runID, err)
				continue
			}
			if !ok {
				return
			}
		}
	}
}

// runReclaimLoop sweeps expired leases back to queued on a fixed cadence,
// per spec §4.3's reclaim transition.
func runReclaimLoop(ctx context.Context, q *queue.Engine, leaseDuration time.Duration) {
	interval := leaseDuration
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := q.Reclaim(ctx)
			if err != nil {
				log.Printf("reclaim failed: %v", err)
				continue
			}
			if len(reclaimed) > 0 {
				log.Printf("reclaimed %d run(s) with expired leases", len(reclaimed))
			}
		}
	}
}

func sleepJittered(ctx context.Context, base time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(base) / 5 + 1))
	select {
	case <-ctx.Done():
	case <-time.After(base + jitter):
	}
}

// Package main is the API server process entry point, mirroring the
// teacher's cmd/api-server graceful-shutdown shape (http.Server + signal
// channel), pared down to the HTTP/JSON surface of SPEC_FULL.md — no TLS
// termination, SPA hosting, or dev proxy, since those concerns belong to
// the teacher's separate web console, out of scope here.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agents-admin/internal/apiserver"
	"agents-admin/internal/config"
	"agents-admin/internal/metrics"
	"agents-admin/internal/shared/infra"
)

// dbPool exposes the raw *sql.DB a store.Store is backed by, for the metrics
// collector's direct aggregate queries (see internal/metrics.NewCollector).
type dbPool interface {
	DB() *sql.DB
}

func main() {
	cfg := config.Load()
	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infrastructure, err := infra.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer infrastructure.Close()
	log.Println("Connected to PostgreSQL, Redis, MinIO, Docker")

	m := metrics.New()
	pool, ok := infrastructure.Store.(dbPool)
	if !ok {
		log.Fatalf("store implementation does not expose a raw DB pool for metrics collection")
	}
	collector := metrics.NewCollector(pool.DB(), m)
	go collector.Run(ctx, cfg.Metrics.Interval)

	srv := apiserver.New(infrastructure.Store, m)

	httpServer := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      m.Middleware(srv.Router()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down API Server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	log.Println("API Server stopped")
}

// Package apiserver is the HTTP/JSON surface over the job runtime:
// create/inspect/cancel runs, read the event log, and kick off pack
// installs. Routing follows the teacher's Go 1.22+ method-prefixed
// http.ServeMux style (internal/apiserver/server/handler.go), collapsed
// into one package since this domain has far fewer resources than the
// teacher's kanban API.
package apiserver

import (
	"net/http"

	"agents-admin/internal/metrics"
	"agents-admin/internal/store"
	"agents-admin/pkg/logging"
)

// Server is the HTTP API entry point, analogous to the teacher's
// server.Handler: it owns the store connection and wires every route.
type Server struct {
	store   store.Store
	metrics *metrics.Metrics
	log     *logging.Logger
}

// New builds a Server over an already-connected store.
func New(s store.Store, m *metrics.Metrics) *Server {
	return &Server{store: s, metrics: m, log: logging.Default("apiserver")}
}

// Router assembles the full route table.
//
// Health:
//   - GET  /health
//
// Runs:
//   - POST   /runs
//   - GET    /runs
//   - GET    /runs/{id}
//   - POST   /runs/{id}/cancel
//   - GET    /runs/{id}/steps
//
// Events:
//   - GET  /events
//   - GET  /events/{id}
//
// Packs:
//   - POST /packs/{pack_ref}/install
//   - POST /packs/{pack_ref}/upgrade
//   - GET  /packs/{pack_ref}/status
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /runs", s.CreateRun)
	mux.HandleFunc("GET /runs", s.ListRuns)
	mux.HandleFunc("GET /runs/{id}", s.GetRun)
	mux.HandleFunc("POST /runs/{id}/cancel", s.CancelRun)
	mux.HandleFunc("GET /runs/{id}/steps", s.ListSteps)

	mux.HandleFunc("GET /events", s.ListEvents)
	mux.HandleFunc("GET /events/{id}", s.GetEvent)

	mux.HandleFunc("POST /packs/{pack_ref}/install", s.InstallPack)
	mux.HandleFunc("POST /packs/{pack_ref}/upgrade", s.UpgradePack)
	mux.HandleFunc("GET /packs/{pack_ref}/status", s.InstallStatus)

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}
	return corsMiddleware(handler)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

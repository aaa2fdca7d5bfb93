package apiserver

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"agents-admin/internal/executor/blueprints/flatplans"
	"agents-admin/internal/model"
	"agents-admin/internal/store"
)

// generateID mirrors the teacher's prefix-xxxxxxxxxxxx id scheme
// (internal/apiserver/server/common.go's generateID).
func generateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}

// createRunRequest is the POST /runs body.
type createRunRequest struct {
	Name          string          `json:"name"`
	BlueprintRef  string          `json:"blueprint_ref"`
	Inputs        json.RawMessage `json:"inputs,omitempty"`
	Priority      int             `json:"priority"`
	RunAt         *time.Time      `json:"run_at,omitempty"`
	MaxAttempts   *int            `json:"max_attempts,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	ParentRunID   *string         `json:"parent_run_id,omitempty"`
}

// CreateRun enqueues a new run. POST /runs
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}

	// blueprint_ref is optional per spec §6/§3; a blueprint-less run is
	// routed to the default single-step plan.
	blueprintRef := req.BlueprintRef
	if blueprintRef == "" {
		blueprintRef = flatplans.DefaultName
	}

	id := generateID("run")
	now := time.Now()
	runAt := now
	if req.RunAt != nil {
		runAt = *req.RunAt
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = id
	}

	run := &model.Run{
		ID:            id,
		Name:          req.Name,
		BlueprintRef:  blueprintRef,
		Status:        model.RunStatusQueued,
		RunAt:         runAt,
		Priority:      req.Priority,
		MaxAttempts:   req.MaxAttempts,
		QueuedAt:      now,
		Actor:         req.Actor,
		CorrelationID: correlationID,
		Inputs:        req.Inputs,
		ParentRunID:   req.ParentRunID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeError(w, err)
		return
	}
	s.log.WithContext(r.Context()).Info("run created", "run_id", id, "blueprint_ref", blueprintRef)
	writeJSON(w, http.StatusCreated, run)
}

// ListRuns lists runs by status with keyset pagination. GET /runs?status=&limit=&cursor=
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	status := model.RunStatus(r.URL.Query().Get("status"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var cursor *store.Cursor
	if v := r.URL.Query().Get("cursor"); v != "" {
		c, err := store.DecodeCursor(v)
		if err != nil {
			badRequest(w, "invalid cursor")
			return
		}
		cursor = c
	}

	runs, next, err := s.store.ListRuns(r.Context(), status, limit, cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"runs": runs}
	if next != nil {
		resp["next_cursor"] = store.EncodeCursor(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRun returns one run by id. GET /runs/{id}
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// CancelRun requests cancellation, per spec §4.3's queued-vs-running split.
// POST /runs/{id}/cancel
func (s *Server) CancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.RequestCancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// ListSteps lists a run's steps in idx order. GET /runs/{id}/steps
func (s *Server) ListSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.store.ListStepsByRun(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"steps": steps})
}

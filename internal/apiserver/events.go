package apiserver

import (
	"net/http"
	"strconv"

	"agents-admin/internal/store"
)

// ListEvents lists the append-only event log filtered by run/correlation/name.
// GET /events?run_id=&correlation_id=&event_name=&limit=&cursor=
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EventFilter{
		EventName:     q.Get("event_name"),
		RunID:         q.Get("run_id"),
		CorrelationID: q.Get("correlation_id"),
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var cursor *store.Cursor
	if v := q.Get("cursor"); v != "" {
		c, err := store.DecodeCursor(v)
		if err != nil {
			badRequest(w, "invalid cursor")
			return
		}
		cursor = c
	}

	events, next, err := s.store.ListEvents(r.Context(), filter, limit, cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]interface{}{"events": events}
	if next != nil {
		resp["next_cursor"] = store.EncodeCursor(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvent returns one event by its sequential id. GET /events/{id}
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "id must be an integer")
		return
	}
	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

package apiserver

import (
	"encoding/json"
	"net/http"

	"agents-admin/internal/xynerrors"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps a domain error to an HTTP status and a typed-error body
// carrying the spec §7 taxonomy kind, the way the teacher's writeError
// helper maps to a plain {"error": msg} body but with the kind preserved
// for programmatic retry logic.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := xynerrors.KindOf(err)

	switch {
	case xynerrors.IsNotFound(err):
		status = http.StatusNotFound
	case xynerrors.IsConflict(err):
		status = http.StatusConflict
	case kind == xynerrors.KindTemplateResolutionError, isInvalidArgument(err):
		status = http.StatusBadRequest
	}

	body := map[string]string{"error": err.Error()}
	if kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}

func isInvalidArgument(err error) bool {
	switch xynerrors.KindOf(err) {
	case xynerrors.KindInvalidIdentifier, xynerrors.KindStepHandlerError:
		return true
	default:
		return false
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"agents-admin/internal/apiserver"
	"agents-admin/internal/config"
	"agents-admin/internal/metrics"
	"agents-admin/internal/store"
	"agents-admin/internal/store/postgres"
)

// InProcEnv is an in-process test environment (httptest + a real Postgres
// connection) for apiserver handler tests. It intentionally does not connect
// Docker/Redis/MinIO — those are exercised by the worker's own integration
// tests, not the HTTP surface.
type InProcEnv struct {
	Store  store.Store
	Server *apiserver.Server
	Router http.Handler
}

// SetupInProcEnv connects to the test database and wires an apiserver.Server
// over it. A non-nil error means the database is unavailable; callers should
// skip the test.
func SetupInProcEnv() (*InProcEnv, error) {
	os.Setenv("APP_ENV", "test")
	cfg := config.Load()

	pgStore, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	srv := apiserver.New(pgStore, metrics.New())

	fmt.Fprintf(os.Stderr, "test env: database=%s\n", cfg.DatabaseURL)

	return &InProcEnv{
		Store:  pgStore,
		Server: srv,
		Router: srv.Router(),
	}, nil
}

// Close releases the environment's resources.
func (e *InProcEnv) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

// SkipIfNoDatabase skips t if the environment failed to connect.
func (e *InProcEnv) SkipIfNoDatabase(t *testing.T) {
	t.Helper()
	if e == nil || e.Store == nil {
		t.Skip("database not available")
	}
}

// MakeRequest builds and executes an HTTP request against the environment's router.
func (e *InProcEnv) MakeRequest(method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// MakeRequestWithString builds a request with a raw string body.
func (e *InProcEnv) MakeRequestWithString(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// ParseJSONResponse decodes a recorded response body into a map.
func ParseJSONResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}

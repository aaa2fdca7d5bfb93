// Package testutil provides shared E2E test infrastructure.
//
// E2EClient wraps a plain HTTP client pointed at a running API server, for
// reuse across the tests/e2e/ subpackages. The runtime has no auth layer
// (spec §1 Non-goals), so this is simpler than the teacher's cookie-jar,
// TLS-skip-verify, login-on-setup client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// E2EClient is the shared end-to-end test client.
type E2EClient struct {
	BaseURL string
	Client  *http.Client
}

// SetupE2EClient reads API_BASE_URL (default http://localhost:8080), builds
// an HTTP client, and waits for the server to answer /health. A non-nil
// error means the server never came up; callers should skip the test.
func SetupE2EClient() (*E2EClient, error) {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	c := &E2EClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}

	if !c.waitForAPI(15 * time.Second) {
		return nil, fmt.Errorf("API Server not ready at %s", baseURL)
	}

	fmt.Fprintf(os.Stderr, "e2e: connected to %s\n", baseURL)
	return c, nil
}

func (c *E2EClient) waitForAPI(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.Client.Get(c.BaseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

// ---- HTTP request helpers ----

// Get sends a GET request.
func (c *E2EClient) Get(path string) (*http.Response, error) {
	return c.Client.Get(c.BaseURL + path)
}

// Post sends a POST request with a JSON body.
func (c *E2EClient) Post(path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	}
	return c.Client.Post(c.BaseURL+path, "application/json", reader)
}

// PostString sends a POST request with a raw string body.
func (c *E2EClient) PostString(path, body string) (*http.Response, error) {
	return c.Client.Post(c.BaseURL+path, "application/json", bytes.NewBufferString(body))
}

// Do executes an arbitrary request.
func (c *E2EClient) Do(method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.Client.Do(req)
}

// Delete sends a DELETE request.
func (c *E2EClient) Delete(path string) (*http.Response, error) {
	return c.Do("DELETE", path, nil)
}

// Patch sends a PATCH request.
func (c *E2EClient) Patch(path string, body interface{}) (*http.Response, error) {
	return c.Do("PATCH", path, body)
}

// Put sends a PUT request.
func (c *E2EClient) Put(path string, body interface{}) (*http.Response, error) {
	return c.Do("PUT", path, body)
}

// ---- response parsing helpers ----

// ReadJSON decodes a JSON response into a map and closes the body.
func ReadJSON(resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result
}

// ReadJSONKeepBody decodes a JSON response without closing the body (caller must close it).
func ReadJSONKeepBody(resp *http.Response) map[string]interface{} {
	var result map[string]interface{}
	body, _ := io.ReadAll(resp.Body)
	json.Unmarshal(body, &result)
	return result
}

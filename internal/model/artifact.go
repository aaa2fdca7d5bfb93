package model

import (
	"encoding/json"
	"time"
)

// Artifact is an immutable binary object, content-addressed by sha256.
type Artifact struct {
	ID          string          `json:"id"`
	SHA256      string          `json:"sha256"`
	Name        string          `json:"name"`
	Kind        string          `json:"kind"`
	ContentType string          `json:"content_type"`
	ByteLength  int64           `json:"byte_length"`
	CreatedBy   string          `json:"created_by,omitempty"`
	RunID       *string         `json:"run_id,omitempty"`
	StepID      *string         `json:"step_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	StoragePath string          `json:"storage_path"`
	CreatedAt   time.Time       `json:"created_at"`
}

// StorageKey returns the two-level sha256[:2]/sha256[2:4]/sha256 tree key, see spec §6.
func (a *Artifact) StorageKey() string {
	return StorageKeyFor(a.SHA256)
}

// StorageKeyFor computes the two-level content-addressed key for a sha256 hex digest.
func StorageKeyFor(sha256Hex string) string {
	if len(sha256Hex) < 4 {
		return sha256Hex
	}
	return sha256Hex[:2] + "/" + sha256Hex[2:4] + "/" + sha256Hex
}

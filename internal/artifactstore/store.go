// Package artifactstore puts and gets content-addressed blobs (step logs,
// agent transcripts, pack-install error payloads) referenced by
// internal/model.Artifact, backed by MinIO the same way the teacher's
// internal/shared/minio client backs session volume archives.
package artifactstore

import (
	"context"
	"io"
)

// Store puts and gets artifact bytes keyed by their storage path
// (internal/model.StorageKeyFor's sha256 fan-out layout).
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

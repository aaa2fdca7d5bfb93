package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"agents-admin/internal/model"
	"agents-admin/internal/xynerrors"
)

const artifactColumns = `id, sha256, name, kind, content_type, byte_length, created_by, run_id,
	step_id, metadata, storage_path, created_at`

func scanArtifact(row interface{ Scan(...any) error }) (*model.Artifact, error) {
	a := &model.Artifact{}
	var createdBy sql.NullString
	var metadata []byte
	if err := row.Scan(&a.ID, &a.SHA256, &a.Name, &a.Kind, &a.ContentType, &a.ByteLength, &createdBy,
		&a.RunID, &a.StepID, &metadata, &a.StoragePath, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedBy = createdBy.String
	a.Metadata = json.RawMessage(metadata)
	return a, nil
}

// CreateArtifact records immutable artifact metadata, see spec §3 and §6.
func (s *Store) CreateArtifact(ctx context.Context, artifact *model.Artifact) error {
	query := `INSERT INTO artifacts (id, sha256, name, kind, content_type, byte_length, created_by,
		run_id, step_id, metadata, storage_path, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.db.ExecContext(ctx, query, artifact.ID, artifact.SHA256, artifact.Name, artifact.Kind,
		artifact.ContentType, artifact.ByteLength, nullableString(artifact.CreatedBy), artifact.RunID,
		artifact.StepID, artifact.Metadata, artifact.StoragePath, artifact.CreatedAt)
	return err
}

// GetArtifact fetches an artifact by id.
func (s *Store) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id=$1`, id)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("artifact %s not found", id)
	}
	return a, err
}

// GetArtifactBySHA256 looks up an artifact by its content digest (content addressing).
func (s *Store) GetArtifactBySHA256(ctx context.Context, sha256 string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE sha256=$1`, sha256)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("artifact with sha256 %s not found", sha256)
	}
	return a, err
}

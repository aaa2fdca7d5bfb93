package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"agents-admin/internal/model"
)

const stepColumns = `id, run_id, idx, name, kind, status, inputs, outputs, error, started_at,
	completed_at, logs_artifact_id, created_at, updated_at`

func scanStep(row interface{ Scan(...any) error }) (*model.Step, error) {
	st := &model.Step{}
	var inputs, outputs, errPayload []byte
	if err := row.Scan(&st.ID, &st.RunID, &st.Idx, &st.Name, &st.Kind, &st.Status, &inputs, &outputs,
		&errPayload, &st.StartedAt, &st.CompletedAt, &st.LogsArtifactID, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.Inputs = json.RawMessage(inputs)
	st.Outputs = json.RawMessage(outputs)
	st.Error = json.RawMessage(errPayload)
	return st, nil
}

// CreateStep inserts the step row with status=created, per spec §4.4 execution contract step 1.
func (s *Store) CreateStep(ctx context.Context, step *model.Step) error {
	query := `INSERT INTO steps (id, run_id, idx, name, kind, status, inputs, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.db.ExecContext(ctx, query, step.ID, step.RunID, step.Idx, step.Name, step.Kind,
		step.Status, step.Inputs, step.CreatedAt, step.UpdatedAt)
	return err
}

// UpdateStep persists a step's status/outputs/error transitions.
func (s *Store) UpdateStep(ctx context.Context, step *model.Step) error {
	query := `UPDATE steps SET status=$1, outputs=$2, error=$3, started_at=$4, completed_at=$5,
		logs_artifact_id=$6, updated_at=now() WHERE id=$7`
	_, err := s.db.ExecContext(ctx, query, step.Status, step.Outputs, step.Error, step.StartedAt,
		step.CompletedAt, step.LogsArtifactID, step.ID)
	return err
}

// ListStepsByRun returns a run's steps ordered by idx ascending, per spec §6 (GET /runs/{id}/steps).
func (s *Store) ListStepsByRun(ctx context.Context, runID string) ([]*model.Step, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE run_id=$1 ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*model.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// NextStepIdx returns the next 0-based idx for a run, enforced unique by the steps(run_id, idx) index.
func (s *Store) NextStepIdx(ctx context.Context, runID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(idx) FROM steps WHERE run_id=$1`, runID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

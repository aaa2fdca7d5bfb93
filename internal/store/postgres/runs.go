package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"agents-admin/internal/model"
	"agents-admin/internal/store"
	"agents-admin/internal/xynerrors"
)

const runColumns = `id, name, blueprint_ref, status, run_at, priority, attempt, max_attempts,
	queued_at, locked_at, locked_by, lease_expires_at, started_at, completed_at, actor,
	correlation_id, inputs, outputs, error, parent_run_id, cancel_requested, created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (*model.Run, error) {
	r := &model.Run{}
	var blueprintRef, actor sql.NullString
	var inputs, outputs, errPayload []byte
	if err := row.Scan(
		&r.ID, &r.Name, &blueprintRef, &r.Status, &r.RunAt, &r.Priority, &r.Attempt, &r.MaxAttempts,
		&r.QueuedAt, &r.LockedAt, &r.LockedBy, &r.LeaseExpires, &r.StartedAt, &r.CompletedAt, &actor,
		&r.CorrelationID, &inputs, &outputs, &errPayload, &r.ParentRunID, &r.CancelRequest,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.BlueprintRef = blueprintRef.String
	r.Actor = actor.String
	r.Inputs = json.RawMessage(inputs)
	r.Outputs = json.RawMessage(outputs)
	r.Error = json.RawMessage(errPayload)
	return r, nil
}

// CreateRun inserts a new run with the caller's status (queued for every run
// submitted through POST /runs) and records xyn.run.created
// in the same transaction, per spec §6 (POST /runs) and §4.1's composite-write
// contract (a state transition and its event commit atomically together).
func (s *Store) CreateRun(ctx context.Context, run *model.Run) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query := `INSERT INTO runs (id, name, blueprint_ref, status, run_at, priority, attempt,
			max_attempts, queued_at, actor, correlation_id, inputs, parent_run_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
		if _, err := tx.ExecContext(ctx, query,
			run.ID, run.Name, nullableString(run.BlueprintRef), run.Status, run.RunAt, run.Priority, run.Attempt,
			run.MaxAttempts, run.QueuedAt, nullableString(run.Actor), run.CorrelationID, run.Inputs,
			run.ParentRunID, run.CreatedAt, run.UpdatedAt); err != nil {
			return err
		}

		event := &model.Event{
			EventName:     model.EventRunCreated,
			OccurredAt:    run.CreatedAt,
			CorrelationID: run.CorrelationID,
			RunID:         &run.ID,
			Actor:         run.Actor,
		}
		if _, err := s.InsertEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("emit %s: %w", model.EventRunCreated, err)
		}
		return nil
	})
}

// GetRun fetches a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("run %s not found", id)
	}
	return run, err
}

// ListRuns lists runs newest-first, optionally filtered by status, with keyset pagination on (queued_at, id).
func (s *Store) ListRuns(ctx context.Context, status model.RunStatus, limit int, cursor *store.Cursor) ([]*model.Run, *store.Cursor, error) {
	var query string
	args := []any{}
	n := 1

	where := []string{}
	if status != "" {
		where = append(where, fmt.Sprintf("status = $%d", n))
		args = append(args, status)
		n++
	}
	if cursor != nil {
		where = append(where, fmt.Sprintf("(queued_at, id) < ($%d, $%d)", n, n+1))
		args = append(args, cursor.SortKey, cursor.ID)
		n += 2
	}

	query = `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + joinAnd(where)
	}
	query += fmt.Sprintf(" ORDER BY queued_at DESC, id DESC LIMIT $%d", n)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *store.Cursor
	if len(runs) > limit {
		last := runs[limit-1]
		next = &store.Cursor{SortKey: last.QueuedAt.Format(time.RFC3339Nano), ID: last.ID}
		runs = runs[:limit]
	}
	return runs, next, nil
}

// UpdateRun persists an arbitrary run mutation of the columns listed below, outside the claim/complete paths.
func (s *Store) UpdateRun(ctx context.Context, run *model.Run) error {
	query := `UPDATE runs SET name=$1, blueprint_ref=$2, status=$3, run_at=$4, priority=$5,
		attempt=$6, max_attempts=$7, started_at=$8, completed_at=$9, outputs=$10, error=$11,
		cancel_requested=$12, updated_at=now() WHERE id=$13`
	_, err := s.db.ExecContext(ctx, query,
		run.Name, nullableString(run.BlueprintRef), run.Status, run.RunAt, run.Priority,
		run.Attempt, run.MaxAttempts, run.StartedAt, run.CompletedAt, run.Outputs, run.Error,
		run.CancelRequest, run.ID)
	return err
}

// ClaimNextRun implements the claim algorithm of spec §4.3 verbatim: a single
// atomic statement using a CTE + FOR UPDATE SKIP LOCKED to guarantee
// exactly-one-claimant, with xyn.run.started emitted in the same transaction.
func (s *Store) ClaimNextRun(ctx context.Context, workerID string, leaseDuration time.Duration) (*model.Run, bool, error) {
	var claimed *model.Run

	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		query := `WITH c AS (
			SELECT id FROM runs
			WHERE status = 'queued' AND run_at <= now()
			ORDER BY priority ASC, run_at ASC, queued_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE runs
		SET status = 'running',
		    locked_at = now(),
		    locked_by = $1,
		    lease_expires_at = now() + $2::interval,
		    started_at = coalesce(started_at, now()),
		    attempt = attempt + 1,
		    updated_at = now()
		FROM c WHERE runs.id = c.id
		RETURNING ` + runColumns

		row := tx.QueryRowContext(ctx, query, workerID, fmt.Sprintf("%f seconds", leaseDuration.Seconds()))
		run, err := scanRun(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		reclaimed := run.Attempt > 1
		data, _ := json.Marshal(map[string]any{"reclaimed": reclaimed})
		event := &model.Event{
			EventName:     model.EventRunStarted,
			OccurredAt:    time.Now().UTC(),
			CorrelationID: run.CorrelationID,
			RunID:         &run.ID,
			Actor:         workerID,
			Data:          data,
		}
		if _, err := s.InsertEvent(ctx, tx, event); err != nil {
			return fmt.Errorf("emit %s: %w", model.EventRunStarted, err)
		}

		claimed = run
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return claimed, claimed != nil, nil
}

// RenewLease extends a held lease. A false, nil return means the worker has
// lost the lease and MUST abort local execution without further writes, per spec §4.3.
func (s *Store) RenewLease(ctx context.Context, runID, workerID string, leaseDuration time.Duration) (bool, error) {
	query := `UPDATE runs SET lease_expires_at = now() + $1::interval, updated_at = now()
		WHERE id = $2 AND locked_by = $3 AND status = 'running'`
	res, err := s.db.ExecContext(ctx, query, fmt.Sprintf("%f seconds", leaseDuration.Seconds()), runID, workerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReclaimExpired implements crash recovery: running rows whose lease has
// expired return to queued so another worker can claim them, per spec §4.3.
func (s *Store) ReclaimExpired(ctx context.Context) ([]string, error) {
	query := `UPDATE runs SET status = 'queued', locked_by = NULL, lease_expires_at = NULL, updated_at = now()
		WHERE status = 'running' AND lease_expires_at < now()
		RETURNING id, correlation_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	type reclaimed struct{ id, correlationID string }
	var reclaimedRows []reclaimed
	for rows.Next() {
		var r reclaimed
		if err := rows.Scan(&r.id, &r.correlationID); err != nil {
			return nil, err
		}
		reclaimedRows = append(reclaimedRows, r)
		ids = append(ids, r.id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range reclaimedRows {
		event := &model.Event{
			EventName:     model.EventRunReclaimed,
			OccurredAt:    time.Now().UTC(),
			CorrelationID: r.correlationID,
			RunID:         &r.id,
		}
		if _, err := s.InsertEvent(ctx, nil, event); err != nil {
			return ids, fmt.Errorf("emit %s for %s: %w", model.EventRunReclaimed, r.id, err)
		}
	}
	return ids, nil
}

// CompleteRun transitions a running run to a terminal state, per spec §4.3.
func (s *Store) CompleteRun(ctx context.Context, runID string, status model.RunStatus, outputs, errPayload []byte) error {
	if !status.IsTerminal() {
		return xynerrors.InvalidArgument(xynerrors.KindConflict, "status %s is not terminal", status)
	}
	query := `UPDATE runs SET status=$1, outputs=$2, error=$3, completed_at=now(),
		locked_by=NULL, lease_expires_at=NULL, updated_at=now() WHERE id=$4`
	_, err := s.db.ExecContext(ctx, query, status, outputs, errPayload, runID)
	return err
}

// RescheduleRun implements fail_retry: running -> queued with a new run_at, per spec §4.3.
func (s *Store) RescheduleRun(ctx context.Context, runID string, runAt time.Time) error {
	query := `UPDATE runs SET status='queued', run_at=$1, locked_by=NULL, lease_expires_at=NULL,
		updated_at=now() WHERE id=$2`
	_, err := s.db.ExecContext(ctx, query, runAt, runID)
	return err
}

// RequestCancel implements the cancel transitions of spec §4.3: queued -> cancelled
// immediately; a running run only gets cancel_requested=true. The executor does
// not read that flag, so a running run goes on to its normal terminal status.
func (s *Store) RequestCancel(ctx context.Context, runID string) (*model.Run, error) {
	var result *model.Run
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1 FOR UPDATE`, runID)
		run, err := scanRun(row)
		if err == sql.ErrNoRows {
			return xynerrors.NotFound("run %s not found", runID)
		}
		if err != nil {
			return err
		}

		switch run.Status {
		case model.RunStatusQueued:
			if _, err := tx.ExecContext(ctx,
				`UPDATE runs SET status='cancelled', completed_at=now(), updated_at=now() WHERE id=$1`, runID); err != nil {
				return err
			}
			run.Status = model.RunStatusCancelled
			now := time.Now().UTC()
			run.CompletedAt = &now
			if _, err := s.InsertEvent(ctx, tx, &model.Event{
				EventName: model.EventRunCancelled, OccurredAt: now,
				CorrelationID: run.CorrelationID, RunID: &run.ID,
			}); err != nil {
				return err
			}
		case model.RunStatusRunning:
			if _, err := tx.ExecContext(ctx,
				`UPDATE runs SET cancel_requested=true, updated_at=now() WHERE id=$1`, runID); err != nil {
				return err
			}
			run.CancelRequest = true
		}
		result = run
		return nil
	})
	return result, err
}

// InsertRunEdge records a lineage edge; the caller is expected to have
// pre-checked the partial unique index (parent, child_key) where child_key is not null.
func (s *Store) InsertRunEdge(ctx context.Context, edge *model.RunEdge) error {
	query := `INSERT INTO run_edges (parent_run_id, child_run_id, relation, child_key, created_at)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := s.db.ExecContext(ctx, query, edge.ParentRunID, edge.ChildRunID, edge.Relation, edge.ChildKey, edge.CreatedAt)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

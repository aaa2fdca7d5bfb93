package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agents-admin/internal/model"
	"agents-admin/internal/store"
	"agents-admin/internal/xynerrors"
)

const eventColumns = `id, event_name, occurred_at, correlation_id, run_id, step_id, actor, data, resource_type, resource_id`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	e := &model.Event{}
	var actor sql.NullString
	var data []byte
	var resourceType, resourceID sql.NullString
	if err := row.Scan(&e.ID, &e.EventName, &e.OccurredAt, &e.CorrelationID, &e.RunID, &e.StepID,
		&actor, &data, &resourceType, &resourceID); err != nil {
		return nil, err
	}
	e.Actor = actor.String
	e.Data = json.RawMessage(data)
	if resourceType.Valid {
		e.Resource = &model.ResourceRef{Type: resourceType.String, ID: resourceID.String}
	}
	return e, nil
}

// InsertEvent appends an immutable event row, per spec §4.2. When tx is
// non-nil the insert joins the caller's transaction (the composite-write
// contract of spec §4.1); otherwise it runs in its own single-statement
// transaction. The event log never blocks on downstream consumers.
func (s *Store) InsertEvent(ctx context.Context, tx *sql.Tx, event *model.Event) (*model.Event, error) {
	query := `INSERT INTO events (event_name, occurred_at, correlation_id, run_id, step_id, actor, data, resource_type, resource_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`

	var resourceType, resourceID any
	if event.Resource != nil {
		resourceType, resourceID = event.Resource.Type, event.Resource.ID
	}

	exec := func(q string, args ...any) *sql.Row {
		if tx != nil {
			return tx.QueryRowContext(ctx, q, args...)
		}
		return s.db.QueryRowContext(ctx, q, args...)
	}

	row := exec(query, event.EventName, event.OccurredAt, event.CorrelationID, event.RunID, event.StepID,
		nullableString(event.Actor), event.Data, resourceType, resourceID)
	if err := row.Scan(&event.ID); err != nil {
		return nil, fmt.Errorf("insert event %s: %w", event.EventName, err)
	}
	return event, nil
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, xynerrors.NotFound("event %d not found", id)
	}
	return event, err
}

// ListEvents lists events newest-first, filtered and keyset-paginated on (occurred_at, id).
func (s *Store) ListEvents(ctx context.Context, filter store.EventFilter, limit int, cursor *store.Cursor) ([]*model.Event, *store.Cursor, error) {
	where := []string{}
	args := []any{}
	n := 1

	if filter.EventName != "" {
		where = append(where, fmt.Sprintf("event_name = $%d", n))
		args = append(args, filter.EventName)
		n++
	}
	if filter.RunID != "" {
		where = append(where, fmt.Sprintf("run_id = $%d", n))
		args = append(args, filter.RunID)
		n++
	}
	if filter.CorrelationID != "" {
		where = append(where, fmt.Sprintf("correlation_id = $%d", n))
		args = append(args, filter.CorrelationID)
		n++
	}
	if cursor != nil {
		where = append(where, fmt.Sprintf("(occurred_at, id) < ($%d, $%d)", n, n+1))
		args = append(args, cursor.SortKey, cursor.ID)
		n += 2
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += " WHERE " + joinAnd(where)
	}
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", n)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *store.Cursor
	if len(events) > limit {
		last := events[limit-1]
		next = &store.Cursor{SortKey: last.OccurredAt.Format(eventCursorFormat), ID: fmt.Sprint(last.ID)}
		events = events[:limit]
	}
	return events, next, nil
}

const eventCursorFormat = "2006-01-02T15:04:05.999999999Z07:00"

// ListEventsByCorrelation returns every event for a correlation id, ordered (occurred_at, id) ascending, per spec §4.2.
func (s *Store) ListEventsByCorrelation(ctx context.Context, correlationID string) ([]*model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE correlation_id=$1 ORDER BY occurred_at ASC, id ASC`, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

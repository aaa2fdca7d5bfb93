// Package outbox implements the downstream half of the transactional outbox
// pattern named in spec §9: the events table is the durable record, and this
// cooperative goroutine tails it by increasing id and republishes each row to
// a Redis stream for low-latency subscribers. Publish failures are logged and
// retried next tick; they never block the emitting transaction.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"agents-admin/internal/model"
	"agents-admin/pkg/logging"
)

const streamKey = "xyn:events"

// Publisher tails events and republishes them to Redis.
type Publisher struct {
	db     *sql.DB
	rdb    *redis.Client
	log    *logging.Logger
	cursor int64
}

// New constructs a Publisher. db is the raw *sql.DB underlying the store
// (the outbox reads events directly rather than through the Store interface,
// since it needs its own cursor bookkeeping table).
func New(db *sql.DB, rdb *redis.Client) *Publisher {
	return &Publisher{db: db, rdb: rdb, log: logging.Default("eventlog.outbox")}
}

// Run polls for new events on interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	if err := p.loadCursor(ctx); err != nil {
		p.log.WithError(err).Warn("outbox: failed to load cursor, starting from 0")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.log.WithError(err).Warn("outbox: tick failed, will retry next interval")
			}
		}
	}
}

func (p *Publisher) loadCursor(ctx context.Context) error {
	row := p.db.QueryRowContext(ctx, `SELECT last_event_id FROM event_outbox_cursor WHERE id = 1`)
	var last sql.NullInt64
	if err := row.Scan(&last); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	if last.Valid {
		p.cursor = last.Int64
	}
	return nil
}

func (p *Publisher) tick(ctx context.Context) error {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, event_name, occurred_at, correlation_id, run_id, step_id, actor, data
		 FROM events WHERE id > $1 ORDER BY id ASC LIMIT 500`, p.cursor)
	if err != nil {
		return err
	}
	defer rows.Close()

	var last int64 = p.cursor
	count := 0
	for rows.Next() {
		var e model.Event
		var actor sql.NullString
		var data []byte
		if err := rows.Scan(&e.ID, &e.EventName, &e.OccurredAt, &e.CorrelationID, &e.RunID, &e.StepID, &actor, &data); err != nil {
			return err
		}
		e.Actor = actor.String
		e.Data = json.RawMessage(data)

		payload, err := json.Marshal(&e)
		if err != nil {
			return err
		}

		if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: streamKey,
			Values: map[string]any{"event": string(payload)},
		}).Err(); err != nil {
			// Publish failed; stop here so this row is retried next tick.
			// The emitting transaction already committed, so correctness never depends on this succeeding.
			return err
		}

		if err := p.rdb.Publish(ctx, "xyn:run_ready", e.EventName).Err(); err != nil {
			p.log.WithError(err).Debug("outbox: run_ready pubsub hint publish failed")
		}

		last = e.ID
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO event_outbox_cursor (id, last_event_id) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET last_event_id = $1`, last); err != nil {
		return err
	}
	p.cursor = last
	return nil
}

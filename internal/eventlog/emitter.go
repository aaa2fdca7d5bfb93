// Package eventlog wraps internal/store's raw InsertEvent behind a
// purpose-built Emit contract, matching spec §4.2's emission contract:
// one row per call, mandatory correlation_id, never blocking on consumers.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"agents-admin/internal/model"
	"agents-admin/internal/store"
)

// EmitParams is the input to Emit, mirroring spec §4.2's emit signature.
type EmitParams struct {
	EventName     string
	Data          any
	RunID         *string
	StepID        *string
	CorrelationID string
	Actor         string
	Resource      *model.ResourceRef
}

// Emitter persists events, optionally joining a caller-supplied transaction
// for the composite-write atomicity contract of spec §4.1.
type Emitter interface {
	Emit(ctx context.Context, tx *sql.Tx, params EmitParams) (*model.Event, error)
}

// StoreEmitter is the Store-backed Emitter.
type StoreEmitter struct {
	store store.EventStore
}

// New builds a StoreEmitter over the given EventStore.
func New(s store.EventStore) *StoreEmitter {
	return &StoreEmitter{store: s}
}

// Emit persists one event row. correlation_id is mandatory, per spec §4.2.
func (e *StoreEmitter) Emit(ctx context.Context, tx *sql.Tx, params EmitParams) (*model.Event, error) {
	if params.CorrelationID == "" {
		panic("eventlog: Emit called without correlation_id")
	}

	var data json.RawMessage
	if params.Data != nil {
		encoded, err := json.Marshal(params.Data)
		if err != nil {
			return nil, err
		}
		data = encoded
	}

	event := &model.Event{
		EventName:     params.EventName,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: params.CorrelationID,
		RunID:         params.RunID,
		StepID:        params.StepID,
		Actor:         params.Actor,
		Data:          data,
		Resource:      params.Resource,
	}
	return e.store.InsertEvent(ctx, tx, event)
}

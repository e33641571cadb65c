package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/world"
)

// EventRecord represents the DB model for a simulation event.
type EventRecord struct {
	ID        string                 `json:"id"`
	Seq       uint64                 `json:"seq"`
	Tick      int64                  `json:"tick"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	ActorID   string                 `json:"actor_id"`
	TargetID  string                 `json:"target_id"`
	Payload   map[string]interface{} `json:"payload"`
}

// RecordFrom flattens a log event into its stored form.
// Typed payloads are round-tripped through JSON so queries see plain maps.
func RecordFrom(e events.SimEvent) (EventRecord, error) {
	rec := EventRecord{
		ID:        e.ID,
		Seq:       e.Seq,
		Tick:      e.Tick,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Payload:   map[string]interface{}{},
	}
	if e.Payload == nil {
		return rec, nil
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return rec, fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &rec.Payload); err != nil {
		// Scalar payloads are kept under a single key.
		var v interface{}
		if err2 := json.Unmarshal(raw, &v); err2 != nil {
			return rec, fmt.Errorf("failed to decode payload: %w", err)
		}
		rec.Payload = map[string]interface{}{"value": v}
	}
	return rec, nil
}

// EventRepository defines the contract for the persistent event store.
type EventRepository interface {
	Append(ctx context.Context, event EventRecord) error
	GetAll(ctx context.Context) ([]EventRecord, error)
	GetByActorID(ctx context.Context, actorID string) ([]EventRecord, error)
	GetByTargetID(ctx context.Context, targetID string) ([]EventRecord, error)
	GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error)
	GetByTickRange(ctx context.Context, from, to int64) ([]EventRecord, error)
	LastTick(ctx context.Context) (int64, error)
}

// SnapshotRepository stores the materialized world for fast boot.
type SnapshotRepository interface {
	Save(ctx context.Context, snap world.Snapshot, tick int64) error
	Load(ctx context.Context) (world.Snapshot, int64, error)
}

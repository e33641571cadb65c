package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/domain/proofset"
	"github.com/monyverse/cyberpunk/internal/world"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

// Append stores one event. Re-appending the same id is a no-op.
func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, seq, tick, timestamp, event_type, actor_id, target_id, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, int64(event.Seq), event.Tick, event.Timestamp, event.EventType,
		event.ActorID, event.TargetID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const selectEvents = `SELECT id, seq, tick, timestamp, event_type, actor_id, target_id, payload FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, where string, args ...interface{}) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectEvents+" "+where+" ORDER BY tick ASC, seq ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		var seq int64
		var payloadStr string
		if err := rows.Scan(&e.ID, &seq, &e.Tick, &e.Timestamp, &e.EventType, &e.ActorID, &e.TargetID, &payloadStr); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetAll(ctx context.Context) ([]EventRecord, error) {
	return r.getMany(ctx, "")
}

func (r *SQLiteEventRepository) GetByActorID(ctx context.Context, actorID string) ([]EventRecord, error) {
	return r.getMany(ctx, "WHERE actor_id = ?", actorID)
}

func (r *SQLiteEventRepository) GetByTargetID(ctx context.Context, targetID string) ([]EventRecord, error) {
	return r.getMany(ctx, "WHERE target_id = ?", targetID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, eventType string) ([]EventRecord, error) {
	return r.getMany(ctx, "WHERE event_type = ?", eventType)
}

// GetByTickRange returns events with from <= tick <= to.
func (r *SQLiteEventRepository) GetByTickRange(ctx context.Context, from, to int64) ([]EventRecord, error) {
	return r.getMany(ctx, "WHERE tick >= ? AND tick <= ?", from, to)
}

// LastTick is the highest persisted SIM_TICK, or zero.
func (r *SQLiteEventRepository) LastTick(ctx context.Context) (int64, error) {
	var tick int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(tick), 0) FROM events WHERE event_type = 'SIM_TICK'`,
	).Scan(&tick)
	return tick, err
}

// ---------------------------------------------------------
// SQLiteSnapshotRepository
// ---------------------------------------------------------

type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

// Save upserts every collection in one transaction and prunes rows the world no longer has.
func (r *SQLiteSnapshotRepository) Save(ctx context.Context, snap world.Snapshot, tick int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	ids := make([]string, 0, len(snap.Drones))
	for i, d := range snap.Drones {
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("drone %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO drones (id, position, model, status, battery, body, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position=excluded.position,
				model=excluded.model,
				status=excluded.status,
				battery=excluded.battery,
				body=excluded.body,
				last_updated=excluded.last_updated
		`, d.ID, i, d.Model, string(d.Status), d.Battery, string(body), now)
		if err != nil {
			return fmt.Errorf("failed to upsert drone %s: %w", d.ID, err)
		}
		ids = append(ids, d.ID)
	}
	if err := prune(ctx, tx, "drones", ids); err != nil {
		return err
	}

	ids = ids[:0]
	for i, m := range snap.Missions {
		body, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("mission %s: %w", m.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO missions (id, position, drone_id, status, assigned_agent_id, body, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position=excluded.position,
				drone_id=excluded.drone_id,
				status=excluded.status,
				assigned_agent_id=excluded.assigned_agent_id,
				body=excluded.body,
				last_updated=excluded.last_updated
		`, m.ID, i, m.DroneID, string(m.Status), m.AssignedAgentID, string(body), now)
		if err != nil {
			return fmt.Errorf("failed to upsert mission %s: %w", m.ID, err)
		}
		ids = append(ids, m.ID)
	}
	if err := prune(ctx, tx, "missions", ids); err != nil {
		return err
	}

	ids = ids[:0]
	for i, a := range snap.Agents {
		body, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("agent %s: %w", a.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO agents (id, position, name, status, level, experience, reputation, body, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position=excluded.position,
				name=excluded.name,
				status=excluded.status,
				level=excluded.level,
				experience=excluded.experience,
				reputation=excluded.reputation,
				body=excluded.body,
				last_updated=excluded.last_updated
		`, a.ID, i, a.Name, string(a.Status), a.Level, a.Experience, a.Reputation, string(body), now)
		if err != nil {
			return fmt.Errorf("failed to upsert agent %s: %w", a.ID, err)
		}
		ids = append(ids, a.ID)
	}
	if err := prune(ctx, tx, "agents", ids); err != nil {
		return err
	}

	ids = ids[:0]
	for i, p := range snap.Proofs {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("proof set %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO proof_sets (id, position, mission_id, status, hash, body, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				position=excluded.position,
				mission_id=excluded.mission_id,
				status=excluded.status,
				hash=excluded.hash,
				body=excluded.body,
				last_updated=excluded.last_updated
		`, p.ID, i, p.MissionID, string(p.Status), p.Hash, string(body), now)
		if err != nil {
			return fmt.Errorf("failed to upsert proof set %s: %w", p.ID, err)
		}
		ids = append(ids, p.ID)
	}
	if err := prune(ctx, tx, "proof_sets", ids); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sim_state (id, tick, last_updated) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tick=excluded.tick, last_updated=excluded.last_updated
	`, tick, now)
	if err != nil {
		return fmt.Errorf("failed to store tick: %w", err)
	}

	return tx.Commit()
}

// prune deletes every row of table whose id is not in keep.
// table is always one of the fixed names above.
func prune(ctx context.Context, tx *sql.Tx, table string, keep []string) error {
	query := "DELETE FROM " + table
	args := make([]interface{}, len(keep))
	if len(keep) > 0 {
		query += " WHERE id NOT IN (" + strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",") + ")"
		for i, id := range keep {
			args[i] = id
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}

// Load reads the stored world back. A database that was never saved returns an empty
// snapshot and tick zero.
func (r *SQLiteSnapshotRepository) Load(ctx context.Context) (world.Snapshot, int64, error) {
	var snap world.Snapshot

	var tick int64
	err := r.db.QueryRowContext(ctx, `SELECT tick FROM sim_state WHERE id = 1`).Scan(&tick)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, 0, fmt.Errorf("failed to read tick: %w", err)
	}

	err = loadBodies(ctx, r.db, "drones", func(raw []byte) error {
		var d drone.Drone
		if err := json.Unmarshal(raw, &d); err != nil {
			return err
		}
		snap.Drones = append(snap.Drones, d)
		return nil
	})
	if err != nil {
		return snap, 0, err
	}
	err = loadBodies(ctx, r.db, "missions", func(raw []byte) error {
		var m mission.Mission
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		snap.Missions = append(snap.Missions, m)
		return nil
	})
	if err != nil {
		return snap, 0, err
	}
	err = loadBodies(ctx, r.db, "agents", func(raw []byte) error {
		var a agent.Agent
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		snap.Agents = append(snap.Agents, a)
		return nil
	})
	if err != nil {
		return snap, 0, err
	}
	err = loadBodies(ctx, r.db, "proof_sets", func(raw []byte) error {
		var p proofset.ProofSet
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		snap.Proofs = append(snap.Proofs, p)
		return nil
	})
	if err != nil {
		return snap, 0, err
	}

	return snap, tick, nil
}

func loadBodies(ctx context.Context, db *sql.DB, table string, fn func([]byte) error) error {
	rows, err := db.QueryContext(ctx, "SELECT id, body FROM "+table+" ORDER BY position ASC")
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return err
		}
		if err := fn([]byte(body)); err != nil {
			return fmt.Errorf("%s %s: %w", table, id, err)
		}
	}
	return rows.Err()
}

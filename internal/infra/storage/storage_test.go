package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/world"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "fleet.db"), 1, 1)
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func appendAll(t *testing.T, repo *SQLiteEventRepository, evs ...events.SimEvent) {
	t.Helper()
	ctx := context.Background()
	for i, e := range evs {
		if e.ID == "" {
			e.ID = events.GenerateEventID()
		}
		e.Seq = uint64(i + 1)
		if e.Timestamp.IsZero() {
			e.Timestamp = time.Now()
		}
		rec, err := RecordFrom(e)
		if err != nil {
			t.Fatalf("RecordFrom: %v", err)
		}
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestEventRepositoryQueries(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()

	appendAll(t, repo,
		events.SimEvent{Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 1},
		events.SimEvent{Type: events.EventTypeMissionAssigned, ActorID: "agent-1", TargetID: "mission-4", Tick: 2,
			Payload: events.MissionPayload{MissionID: "mission-4", DroneID: "drone-1", AgentID: "agent-1", Status: "active"}},
		events.SimEvent{Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 2},
		events.SimEvent{Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 3},
	)

	ticks, err := repo.GetByEventType(ctx, string(events.EventTypeSimTick))
	if err != nil {
		t.Fatalf("GetByEventType: %v", err)
	}
	if len(ticks) != 3 {
		t.Errorf("expected 3 ticks, got %d", len(ticks))
	}

	byActor, err := repo.GetByActorID(ctx, "agent-1")
	if err != nil {
		t.Fatalf("GetByActorID: %v", err)
	}
	if len(byActor) != 1 {
		t.Fatalf("expected 1 event for agent-1, got %d", len(byActor))
	}
	if byActor[0].Payload["drone_id"] != "drone-1" {
		t.Errorf("payload not decoded: %v", byActor[0].Payload)
	}

	ranged, err := repo.GetByTickRange(ctx, 2, 2)
	if err != nil {
		t.Fatalf("GetByTickRange: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("expected 2 events at tick 2, got %d", len(ranged))
	}

	last, err := repo.LastTick(ctx)
	if err != nil {
		t.Fatalf("LastTick: %v", err)
	}
	if last != 3 {
		t.Errorf("expected last tick 3, got %d", last)
	}
}

func TestEventAppendIsIdempotent(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	ctx := context.Background()

	rec, err := RecordFrom(events.SimEvent{ID: "e-1", Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 1, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("RecordFrom: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}
	}
	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 stored event, got %d", len(all))
	}
}

func TestLastTickEmptyDatabase(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	last, err := repo.LastTick(context.Background())
	if err != nil {
		t.Fatalf("LastTick: %v", err)
	}
	if last != 0 {
		t.Errorf("expected 0, got %d", last)
	}
}

func TestSnapshotSaveLoad(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteSnapshotRepository(db)
	ctx := context.Background()

	snap, tick, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty db: %v", err)
	}
	if !snap.Empty() || tick != 0 {
		t.Fatalf("expected empty snapshot at tick 0, got %+v tick %d", snap, tick)
	}

	w := world.New(geo.NewArena(500, nil))
	w.Seed(world.ScenarioDefault)
	want := w.Snapshot()

	if err := repo.Save(ctx, want, 42); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, tick, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tick != 42 {
		t.Errorf("expected tick 42, got %d", tick)
	}
	if len(got.Drones) != len(want.Drones) || len(got.Missions) != len(want.Missions) || len(got.Agents) != len(want.Agents) {
		t.Fatalf("collection sizes differ: got %d/%d/%d want %d/%d/%d",
			len(got.Drones), len(got.Missions), len(got.Agents),
			len(want.Drones), len(want.Missions), len(want.Agents))
	}
	for i := range want.Missions {
		if got.Missions[i].ID != want.Missions[i].ID {
			t.Errorf("mission order changed at %d: %s vs %s", i, got.Missions[i].ID, want.Missions[i].ID)
		}
	}
	if got.Agents[0].Experience != want.Agents[0].Experience {
		t.Errorf("agent experience lost: %d vs %d", got.Agents[0].Experience, want.Agents[0].Experience)
	}
	if len(got.Proofs) == 0 || got.Proofs[0].ID != "1" {
		t.Errorf("genesis proof set missing: %+v", got.Proofs)
	}

	// A reset world prunes the stored fleet.
	w.Reset()
	if err := repo.Save(ctx, w.Snapshot(), 43); err != nil {
		t.Fatalf("Save after reset: %v", err)
	}
	got, _, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reset: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected empty fleet after reset, got %d drones %d missions %d agents",
			len(got.Drones), len(got.Missions), len(got.Agents))
	}
	if len(got.Proofs) == 0 {
		t.Error("proof sets should survive a reset")
	}
}

func TestPersisterWritesThroughEventLog(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	log := events.NewEventLog(NewPersister(repo, time.Second))

	log.Append(events.SimEvent{Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 7, Payload: map[string]int64{"tick_number": 7}})
	log.Append(events.Notify("agent-1", "hello", events.SeverityInfo, 7))
	log.Close()

	all, err := repo.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 persisted events, got %d", len(all))
	}
	if all[1].Payload["message"] != "hello" {
		t.Errorf("notification payload lost: %v", all[1].Payload)
	}
}

func TestReconstructorTimelineAndRecap(t *testing.T) {
	repo := NewSQLiteEventRepository(openTestDB(t))
	appendAll(t, repo,
		events.SimEvent{Type: events.EventTypeMissionCreated, ActorID: events.ActorSystem, TargetID: "mission-9", Tick: 1,
			Payload: events.MissionPayload{MissionID: "mission-9", Status: "pending"}},
		events.SimEvent{Type: events.EventTypeMissionAssigned, ActorID: "agent-1", TargetID: "mission-9", Tick: 2,
			Payload: events.MissionPayload{MissionID: "mission-9", DroneID: "drone-1", AgentID: "agent-1", Status: "active"}},
		events.SimEvent{Type: events.EventTypeAgentInteraction, ActorID: "agent-2", TargetID: "agent-1", Tick: 3,
			Payload: events.InteractionPayload{AgentID: "agent-2", TargetID: "agent-1", Strategy: "trader"}},
		events.SimEvent{Type: events.EventTypeMissionCompleted, ActorID: "drone-1", TargetID: "mission-9", Tick: 5,
			Payload: events.MissionPayload{MissionID: "mission-9", DroneID: "drone-1", AgentID: "agent-1", Status: "completed", XP: 10}},
	)
	rc := NewReconstructor(repo)
	ctx := context.Background()

	tl, err := rc.MissionTimeline(ctx, "mission-9")
	if err != nil {
		t.Fatalf("MissionTimeline: %v", err)
	}
	if len(tl.Entries) != 3 {
		t.Fatalf("expected 3 timeline entries, got %d", len(tl.Entries))
	}
	if tl.Status != "completed" || tl.DroneID != "drone-1" || tl.AgentID != "agent-1" {
		t.Errorf("unexpected timeline head: %+v", tl)
	}
	if tl.Entries[1].Summary != "Assigned to drone-1 by agent-1" {
		t.Errorf("unexpected summary %q", tl.Entries[1].Summary)
	}

	recap, err := rc.AgentRecap(ctx, "agent-1", 0)
	if err != nil {
		t.Fatalf("AgentRecap: %v", err)
	}
	if recap.Assignments != 1 || recap.Interactions != 1 {
		t.Errorf("expected 1 assignment and 1 interaction, got %+v", recap)
	}
	if len(recap.Completed) != 1 || recap.Completed[0] != "mission-9" || recap.XPEarned != 10 {
		t.Errorf("completion not credited: %+v", recap)
	}

	late, err := rc.AgentRecap(ctx, "agent-1", 4)
	if err != nil {
		t.Fatalf("AgentRecap since 4: %v", err)
	}
	if late.Assignments != 0 || len(late.Completed) != 1 {
		t.Errorf("since filter not applied: %+v", late)
	}
}

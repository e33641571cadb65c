package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/infra/archive"
	"github.com/monyverse/cyberpunk/internal/infra/storage"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/world"
)

type stores struct {
	dataDir string
	events  *storage.SQLiteEventRepository
	snaps   *storage.SQLiteSnapshotRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.InitSQLite(filepath.Join(dir, "fleet.db"), 1, 1)
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return stores{
		dataDir: dir,
		events:  storage.NewSQLiteEventRepository(db),
		snaps:   storage.NewSQLiteSnapshotRepository(db),
	}
}

func TestRestoreSeedsEmptyStore(t *testing.T) {
	s := newStores(t)
	w := world.New(geo.NewArena(500, nil))

	tick, source := restoreWorld(context.Background(), w, s.snaps, s.events, s.dataDir, logger.NewLogger())
	if source != bootSeed || tick != 0 {
		t.Fatalf("expected seed at tick 0, got %s at %d", source, tick)
	}
	if c := w.Counts(); c.Drones != 3 || c.Missions != 4 || c.Agents != 3 {
		t.Errorf("default scenario not loaded: %+v", c)
	}
}

func TestRestorePrefersSQLite(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	saved := world.New(geo.NewArena(500, nil))
	saved.Seed(world.ScenarioBusy)
	if err := saveWorld(ctx, saved, s.snaps, 40); err != nil {
		t.Fatalf("saveWorld: %v", err)
	}
	other := world.New(geo.NewArena(500, nil))
	other.Seed(world.ScenarioAllPending)
	if _, err := archive.WriteSnapshot(archive.SnapshotDir(s.dataDir), 90, other.Snapshot()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	// A later SIM_TICK in the event log moves the clock past the backup.
	rec, err := storage.RecordFrom(events.SimEvent{ID: "t-55", Seq: 1, Type: events.EventTypeSimTick, ActorID: events.ActorSystem, Tick: 55, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("RecordFrom: %v", err)
	}
	if err := s.events.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	w := world.New(geo.NewArena(500, nil))
	tick, source := restoreWorld(ctx, w, s.snaps, s.events, s.dataDir, logger.NewLogger())
	if source != bootSQLite {
		t.Fatalf("expected sqlite, got %s", source)
	}
	if tick != 55 {
		t.Errorf("expected clock at 55, got %d", tick)
	}
	if c := w.Counts(); c.DronesByState["in-mission"] != 2 {
		t.Errorf("busy fleet not restored: %+v", c)
	}
}

func TestRestoreFallsBackToArchive(t *testing.T) {
	s := newStores(t)

	saved := world.New(geo.NewArena(500, nil))
	saved.Seed(world.ScenarioAllPending)
	if _, err := archive.WriteSnapshot(archive.SnapshotDir(s.dataDir), 90, saved.Snapshot()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	w := world.New(geo.NewArena(500, nil))
	tick, source := restoreWorld(context.Background(), w, s.snaps, s.events, s.dataDir, logger.NewLogger())
	if source != bootArchive || tick != 90 {
		t.Fatalf("expected archive at 90, got %s at %d", source, tick)
	}
	if c := w.Counts(); c.MissionsBy["pending"] != 2 {
		t.Errorf("pending fleet not restored: %+v", c)
	}
}

func TestAgentAddress(t *testing.T) {
	w := world.New(geo.NewArena(500, nil))
	a, err := w.CreateAgent(world.AgentInput{Name: "Chain", Type: "onchain", Address: "0xabc"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	resolve := agentAddress(w)
	if got := resolve(a.ID); got != "0xabc" {
		t.Errorf("expected on-chain address, got %q", got)
	}
	if got := resolve("agent-unknown"); got != "agent-unknown" {
		t.Errorf("unknown agents resolve to their id, got %q", got)
	}
}

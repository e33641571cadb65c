package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/world"
)

func TestEventWriterRotatesByHour(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	first := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	for i, at := range []time.Time{first, first.Add(time.Minute), second} {
		err := w.Append(events.SimEvent{
			ID:        events.GenerateEventID(),
			Seq:       uint64(i + 1),
			Timestamp: at,
			Type:      events.EventTypeSimTick,
			ActorID:   events.ActorSystem,
			Tick:      int64(i + 1),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "events", "events-2024-01-15-14.jsonl.zst")
	if w.PathForHour(first) != path {
		t.Errorf("unexpected path %s", w.PathForHour(first))
	}
	got, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events in first hour, got %d", len(got))
	}
	if got[1].Tick != 2 || got[1].Type != events.EventTypeSimTick {
		t.Errorf("unexpected event %+v", got[1])
	}

	later, err := ReadEvents(w.PathForHour(second))
	if err != nil {
		t.Fatalf("ReadEvents second hour: %v", err)
	}
	if len(later) != 1 || later[0].Tick != 3 {
		t.Errorf("unexpected second hour content %+v", later)
	}
}

func TestEventWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		w := NewEventWriter(dir)
		if err := w.Append(events.SimEvent{ID: events.GenerateEventID(), Timestamp: at, Type: events.EventTypeNotification, Tick: int64(i)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	got, err := ReadEvents(NewEventWriter(dir).PathForHour(at))
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected both frames to decode, got %d events", len(got))
	}
}

func TestSnapshotWriteAndLatest(t *testing.T) {
	dir := SnapshotDir(t.TempDir())

	if _, _, err := Latest(dir); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	w := world.New(geo.NewArena(500, nil))
	w.Seed(world.ScenarioDefault)

	if _, err := WriteSnapshot(dir, 300, w.Snapshot()); err != nil {
		t.Fatalf("WriteSnapshot 300: %v", err)
	}
	w.Seed(world.ScenarioAllPending)
	want := w.Snapshot()
	if _, err := WriteSnapshot(dir, 1200, want); err != nil {
		t.Fatalf("WriteSnapshot 1200: %v", err)
	}
	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, tick, err := Latest(dir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if tick != 1200 || path != SnapshotPath(dir, 1200) {
		t.Errorf("expected tick 1200, got %d at %s", tick, path)
	}

	f, err := LoadLatest(dir)
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if f.Header.Tick != 1200 || f.Header.Version != SnapshotVersion {
		t.Errorf("unexpected header %+v", f.Header)
	}
	if len(f.World.Missions) != len(want.Missions) || len(f.World.Drones) != len(want.Drones) {
		t.Errorf("world mismatch: %d missions %d drones", len(f.World.Missions), len(f.World.Drones))
	}
	if _, err := os.Stat(SnapshotPath(dir, 1200) + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

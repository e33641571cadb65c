package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/monyverse/cyberpunk/internal/infra/archive"
	"github.com/monyverse/cyberpunk/internal/infra/storage"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/world"
)

// bootSource names where the world came from at startup.
type bootSource string

const (
	bootSQLite  bootSource = "sqlite"
	bootArchive bootSource = "archive"
	bootSeed    bootSource = "seed"
)

// restoreWorld loads the newest persisted world into w and returns the tick to resume from.
// SQLite wins over the zstd snapshots; an empty store is seeded with the default scenario.
func restoreWorld(ctx context.Context, w *world.World, snaps storage.SnapshotRepository, eventRepo storage.EventRepository, dataDir string, log *logger.Logger) (int64, bootSource) {
	var (
		tick   int64
		source bootSource
	)

	snap, savedTick, err := snaps.Load(ctx)
	if err != nil {
		log.Warnf("SQLite snapshot unreadable: %v", err)
	}
	switch {
	case err == nil && !snap.Empty():
		w.Restore(snap)
		tick, source = savedTick, bootSQLite
		log.Info(fmt.Sprintf("Reconstructed fleet from SQLite: %d drones, %d missions, %d agents", len(snap.Drones), len(snap.Missions), len(snap.Agents)))
	default:
		f, aerr := archive.LoadLatest(archive.SnapshotDir(dataDir))
		if aerr == nil && !f.World.Empty() {
			w.Restore(f.World)
			tick, source = f.Header.Tick, bootArchive
			log.Info(fmt.Sprintf("Reconstructed fleet from snapshot at tick %d", f.Header.Tick))
			break
		}
		if aerr != nil && !errors.Is(aerr, archive.ErrNoSnapshot) {
			log.Warnf("Archive snapshot unreadable: %v", aerr)
		}
		log.Info("Database empty. Seeding the default scenario...")
		w.Seed(world.ScenarioDefault)
		source = bootSeed
	}

	// The event log may be ahead of the last backup.
	if last, err := eventRepo.LastTick(ctx); err != nil {
		log.Warnf("Failed to read last tick: %v", err)
	} else if last > tick {
		tick = last
	}
	return tick, source
}

// saveWorld upserts the world into SQLite.
func saveWorld(ctx context.Context, w *world.World, snaps storage.SnapshotRepository, tick int64) error {
	if err := snaps.Save(ctx, w.Snapshot(), tick); err != nil {
		return fmt.Errorf("save world at tick %d: %w", tick, err)
	}
	return nil
}

// agentAddress resolves an agent id to its on-chain account, falling back to the id.
func agentAddress(w *world.World) func(string) string {
	return func(id string) string {
		if a, err := w.Agent(id); err == nil && a.Address != "" {
			return a.Address
		}
		return id
	}
}

// Package main is the entry point for the drone fleet simulation server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/engine"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/infra/archive"
	"github.com/monyverse/cyberpunk/internal/infra/chain"
	"github.com/monyverse/cyberpunk/internal/infra/storage"
	"github.com/monyverse/cyberpunk/internal/network"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/platform/metrics"
	"github.com/monyverse/cyberpunk/internal/platform/optimization"
	"github.com/monyverse/cyberpunk/internal/protocol"
	"github.com/monyverse/cyberpunk/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config.yaml (optional)")
		addr       = flag.String("addr", "", "http listen address (overrides server.addr)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides server.data_dir)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides server.db_path)")
		profile    = flag.String("profile", "", "optimization profile: default, stress or low")
		relayURL   = flag.String("relay", "", "chain relayer url (overrides chain.relay_url)")
		autoStart  = flag.Bool("autostart", false, "start ticking immediately")
	)
	flag.Parse()

	log.Println("[SIM-SERVER] Initializing drone fleet simulation server...")
	appLogger := logger.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *profile != "" {
		cfg.Profile = *profile
	}
	if *relayURL != "" {
		cfg.Chain.RelayURL = *relayURL
	}
	if *autoStart {
		cfg.Simulation.AutoStart = true
	}
	if err := cfg.Validate(); err != nil {
		appLogger.Errorf("Invalid config: %v", err)
		os.Exit(1)
	}

	tuning, err := optimization.Preset(cfg.Profile)
	if err != nil {
		appLogger.Errorf("%v", err)
		os.Exit(1)
	}
	if err := protocol.Init(); err != nil {
		appLogger.Errorf("Failed to compile request schemas: %v", err)
		os.Exit(1)
	}

	appLogger.Infof("Initializing SQLite database %q...", cfg.Server.DBPath)
	db, err := storage.InitSQLite(cfg.Server.DBPath, tuning.DBMaxOpenConns, tuning.DBMaxIdleConns)
	if err != nil {
		appLogger.Errorf("Failed to initialize SQLite: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	eventRepo := storage.NewSQLiteEventRepository(db)
	snapRepo := storage.NewSQLiteSnapshotRepository(db)

	appLogger.Info("Bootstrapping EventLog...")
	eventArchive := archive.NewEventWriter(cfg.Server.DataDir)
	eventLog := events.NewEventLog(
		storage.Fanout{storage.NewPersister(eventRepo, 5*time.Second), eventArchive},
		events.WithRetain(cfg.Persistence.EventRetain),
		events.WithBuffer(tuning.EventChannelBuffer),
		events.WithPersistHook(metrics.Get().RecordEventWrite),
	)

	ctx, cancel := signalContext()
	defer cancel()

	w := world.New(cfg.BuildArena())
	tick, source := restoreWorld(ctx, w, snapRepo, eventRepo, cfg.Server.DataDir, appLogger)

	apiOpts := []network.APIOption{network.WithHistory(storage.NewReconstructor(eventRepo))}
	var (
		engineOpts  []engine.Option
		relayClient *chain.RelayClient
	)
	if cfg.Chain.RelayURL != "" {
		appLogger.Info("Bootstrapping chain relay at " + cfg.Chain.RelayURL)
		relayClient = chain.NewRelayClient(cfg.Chain.RelayURL, cfg.ChainTimeout())
		dispatcher := chain.NewDispatcher(relayClient, eventLog, appLogger, cfg.Chain.PerSecond, tuning.ChainQueue, cfg.ChainTimeout(), agentAddress(w))
		go dispatcher.Run(ctx)
		engineOpts = append(engineOpts, engine.WithChainRelay(dispatcher))
		apiOpts = append(apiOpts, network.WithRelay(dispatcher))
	}

	appLogger.Info("Bootstrapping Engine Subsystems...")
	simEngine := engine.NewEngine(eventLog, w, cfg.Simulation, appLogger, engineOpts...)
	simEngine.RestoreClock(tick)
	if source == bootSeed {
		eventLog.Append(events.SimEvent{
			Type:    events.EventTypeDemoSeeded,
			ActorID: events.ActorSystem,
			Payload: events.SeedPayload{Scenario: world.ScenarioDefault},
			Tick:    tick,
		})
	}

	snapDir := archive.SnapshotDir(cfg.Server.DataDir)
	writeSnapshot := func(tick int64, snap world.Snapshot) {
		if path, err := archive.WriteSnapshot(snapDir, tick, snap); err != nil {
			appLogger.Errorf("Snapshot at tick %d failed: %v", tick, err)
		} else {
			appLogger.Infof("Snapshot written to %s", path)
		}
	}
	if every := int64(cfg.Persistence.SnapshotEveryTicks); every > 0 {
		simEngine.OnTick(func(tp engine.TickPayload) {
			if tp.TickNumber%every == 0 {
				go writeSnapshot(tp.TickNumber, w.Snapshot())
			}
		})
	}

	simEngine.Start(ctx)
	if cfg.Simulation.AutoStart {
		simEngine.Resume()
	}

	// Automated State Backup Routine
	go func() {
		backupTicker := time.NewTicker(cfg.BackupInterval())
		defer backupTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-backupTicker.C:
				if err := saveWorld(ctx, w, snapRepo, simEngine.CurrentTick()); err != nil {
					appLogger.Errorf("Backup failed: %v", err)
				}
			}
		}
	}()

	api := network.NewAPI(simEngine, appLogger, network.URLs{
		ProofStorage: cfg.Server.ProofStorageURL,
		Public:       cfg.Server.PublicURL,
	}, apiOpts...)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger, api, network.HubOptions{
		BroadcastBuffer:  tuning.BroadcastChannelBuffer,
		ClientSendBuffer: tuning.ClientSendBuffer,
		MaxClients:       tuning.MaxClients,
		FleetFrameEvery:  tuning.FleetFrameEvery,
		CommandInterval:  cfg.WSCommandInterval(),
	})
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, eventLog, w)

	// Setup API Routes
	apiMux := http.NewServeMux()
	api.RegisterRoutes(apiMux)
	network.NewReplayHandler(eventLog, appLogger).RegisterRoutes(apiMux)
	limiter := network.NewIPLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst)

	mux := http.NewServeMux()
	mux.Handle("/api/", limiter.Middleware(apiMux))
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewAdmin(simEngine, func(ctx context.Context) (int64, error) {
		tick := simEngine.CurrentTick()
		snap := w.Snapshot()
		if err := snapRepo.Save(ctx, snap, tick); err != nil {
			return tick, err
		}
		_, err := archive.WriteSnapshot(snapDir, tick, snap)
		return tick, err
	}).RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/metrics", metrics.PrometheusHandler())
	mux.HandleFunc("/metrics.json", metrics.Handler(metricsExtra(cfg.Profile, tuning, hub.ClientCount, relayClient)))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.Printf("[SIM-SERVER] HTTP API & WS Server listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLogger.Errorf("Server failed: %v", err)
		cancel()
	}

	log.Println("[SIM-SERVER] Shutting down...")
	simEngine.Pause()
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := saveWorld(saveCtx, w, snapRepo, simEngine.CurrentTick()); err != nil {
		appLogger.Errorf("Final backup failed: %v", err)
	}
	saveCancel()
	eventLog.Close()
	if err := eventArchive.Close(); err != nil {
		appLogger.Errorf("Closing event archive: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

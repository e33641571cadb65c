// Package config loads the simulation server configuration.
// A YAML file is layered over Default(); flags in cmd/sim-server override the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
)

type Config struct {
	Server      Server      `yaml:"server"`
	Simulation  Simulation  `yaml:"simulation"`
	Arena       Arena       `yaml:"arena"`
	Persistence Persistence `yaml:"persistence"`
	Limits      Limits      `yaml:"limits"`
	Chain       Chain       `yaml:"chain"`
	Profile     string      `yaml:"profile"` // default | stress | low
}

type Server struct {
	Addr            string `yaml:"addr"`
	DataDir         string `yaml:"data_dir"`
	DBPath          string `yaml:"db_path"`
	ProofStorageURL string `yaml:"proof_storage_url"`
	PublicURL       string `yaml:"public_url"`
}

type Simulation struct {
	TickMs                 int                              `yaml:"tick_ms"`
	AgentEveryTicks        int                              `yaml:"agent_every_ticks"`
	AgentActionProbability float64                          `yaml:"agent_action_probability"`
	AgentWalk              float64                          `yaml:"agent_walk"`
	Seed                   int64                            `yaml:"seed"`
	LowBatteryThreshold    float64                          `yaml:"low_battery_threshold"`
	ArrivalRadius          float64                          `yaml:"arrival_radius"`
	CollisionRadius        float64                          `yaml:"collision_radius"`
	CollisionNudge         float64                          `yaml:"collision_nudge"`
	ChargeRate             float64                          `yaml:"charge_rate"`
	ChargerStep            float64                          `yaml:"charger_step"`
	ChargingStation        geo.Vector3                      `yaml:"charging_station"`
	Profiles               map[mission.Type]mission.Profile `yaml:"profiles"`
	AutoStart              bool                             `yaml:"auto_start"`
}

type Arena struct {
	HalfExtent float64         `yaml:"half_extent"`
	NoFly      [][]geo.Vector3 `yaml:"no_fly"`
}

type Persistence struct {
	BackupIntervalMs   int `yaml:"backup_interval_ms"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	EventRetain        int `yaml:"event_retain"`
}

type Limits struct {
	RequestsPerSecond   float64 `yaml:"requests_per_second"`
	Burst               int     `yaml:"burst"`
	WSCommandIntervalMs int     `yaml:"ws_command_interval_ms"`
}

type Chain struct {
	RelayURL  string  `yaml:"relay_url"`
	PerSecond float64 `yaml:"per_second"`
	TimeoutMs int     `yaml:"timeout_ms"`
}

// Default returns the configuration the dashboard simulation ran with.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			DataDir:         "data",
			DBPath:          "data/fleet.db",
			ProofStorageURL: "https://your-storage.com",
			PublicURL:       "https://yourapp.com",
		},
		Simulation: Simulation{
			TickMs:                 1000,
			AgentEveryTicks:        2,
			AgentActionProbability: 0.3,
			AgentWalk:              2,
			Seed:                   1,
			LowBatteryThreshold:    10,
			ArrivalRadius:          1,
			CollisionRadius:        5,
			CollisionNudge:         2,
			ChargeRate:             2,
			ChargerStep:            2,
			ChargingStation:        geo.Origin,
			Profiles:               mission.DefaultProfiles(),
		},
		Arena: Arena{
			HalfExtent: 500,
		},
		Persistence: Persistence{
			BackupIntervalMs:   5000,
			SnapshotEveryTicks: 300,
			EventRetain:        10000,
		},
		Limits: Limits{
			RequestsPerSecond:   20,
			Burst:               40,
			WSCommandIntervalMs: 250,
		},
		Chain: Chain{
			PerSecond: 1,
			TimeoutMs: 15000,
		},
		Profile: "default",
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	// Profiles given in the file only override the types they name.
	merged := mission.DefaultProfiles()
	for t, p := range cfg.Simulation.Profiles {
		merged[t] = p
	}
	cfg.Simulation.Profiles = merged
	return cfg, cfg.Validate()
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.TickMs <= 0 {
		errs = append(errs, errors.New("simulation.tick_ms must be positive"))
	}
	if s.AgentEveryTicks <= 0 {
		errs = append(errs, errors.New("simulation.agent_every_ticks must be positive"))
	}
	if s.AgentActionProbability < 0 || s.AgentActionProbability > 1 {
		errs = append(errs, errors.New("simulation.agent_action_probability must be within [0,1]"))
	}
	if s.LowBatteryThreshold < 0 || s.LowBatteryThreshold > 100 {
		errs = append(errs, errors.New("simulation.low_battery_threshold must be within [0,100]"))
	}
	if s.ArrivalRadius <= 0 || s.CollisionRadius < 0 || s.ChargeRate <= 0 || s.ChargerStep <= 0 {
		errs = append(errs, errors.New("simulation radii, charge_rate and charger_step must be positive"))
	}
	for t, p := range s.Profiles {
		if _, err := mission.ParseType(string(t)); err != nil {
			errs = append(errs, fmt.Errorf("simulation.profiles: %w", err))
			continue
		}
		if p.Speed <= 0 || p.BatteryDrain < 0 {
			errs = append(errs, fmt.Errorf("simulation.profiles.%s: speed must be positive and drain non-negative", t))
		}
	}
	for i, zone := range c.Arena.NoFly {
		if len(zone) < 3 {
			errs = append(errs, fmt.Errorf("arena.no_fly[%d]: need at least 3 corners", i))
		}
	}
	if c.Persistence.BackupIntervalMs <= 0 {
		errs = append(errs, errors.New("persistence.backup_interval_ms must be positive"))
	}
	if c.Limits.RequestsPerSecond <= 0 || c.Limits.Burst <= 0 {
		errs = append(errs, errors.New("limits.requests_per_second and limits.burst must be positive"))
	}
	switch c.Profile {
	case "default", "stress", "low":
	default:
		errs = append(errs, fmt.Errorf("profile %q: want default, stress or low", c.Profile))
	}
	return errors.Join(errs...)
}

// TickInterval is the wall-clock period of one simulation tick.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Simulation.TickMs) * time.Millisecond
}

// BackupInterval is how often the world is upserted into SQLite.
func (c Config) BackupInterval() time.Duration {
	return time.Duration(c.Persistence.BackupIntervalMs) * time.Millisecond
}

// WSCommandInterval is the minimum spacing between websocket commands from one client.
func (c Config) WSCommandInterval() time.Duration {
	return time.Duration(c.Limits.WSCommandIntervalMs) * time.Millisecond
}

// ChainTimeout bounds a single relay call.
func (c Config) ChainTimeout() time.Duration {
	return time.Duration(c.Chain.TimeoutMs) * time.Millisecond
}

// BuildArena turns the arena section into the geometry used for target validation.
func (c Config) BuildArena() geo.Arena {
	arena := geo.NewArena(c.Arena.HalfExtent, nil)
	for _, corners := range c.Arena.NoFly {
		arena.NoFly = append(arena.NoFly, geo.Zone(corners))
	}
	return arena
}

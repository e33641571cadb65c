// Package optimization provides concurrency tuning for high load.
// Presets size the event queue, broadcast buffers, the SQLite pool and the chain relay queue.
package optimization

import (
	"fmt"
	"runtime"
)

// Config holds tuned parameters for high-load scenarios.
type Config struct {
	// Channel buffer sizes
	EventChannelBuffer     int `json:"event_channel_buffer"`
	BroadcastChannelBuffer int `json:"broadcast_channel_buffer"`
	ClientSendBuffer       int `json:"client_send_buffer"`
	ChainQueue             int `json:"chain_queue"`

	// Connection pools
	DBMaxOpenConns int `json:"db_max_open_conns"`
	DBMaxIdleConns int `json:"db_max_idle_conns"`

	// Fan-out
	FleetFrameEvery int `json:"fleet_frame_every"` // ticks between websocket fleet frames
	MaxClients      int `json:"max_clients"`
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		EventChannelBuffer:     1024, // Handle bursts
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64, // Per WebSocket
		ChainQueue:             128,

		// SQLite serialises writers; extra conns only help readers.
		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		FleetFrameEvery: 1,
		MaxClients:      200,
	}
}

// StressTestConfig returns aggressive settings for stress testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		EventChannelBuffer:     4096,
		BroadcastChannelBuffer: 512,
		ClientSendBuffer:       128,
		ChainQueue:             512,

		DBMaxOpenConns: numCPU * 4,
		DBMaxIdleConns: numCPU * 2,

		FleetFrameEvery: 2,
		MaxClients:      500,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		EventChannelBuffer:     64,
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,
		ChainQueue:             16,

		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		FleetFrameEvery: 5,
		MaxClients:      20,
	}
}

// Preset resolves a profile name from the config file.
func Preset(name string) (*Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("unknown optimization profile %q", name)
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseEventBuffer     bool     `json:"increase_event_buffer"`
	IncreaseBroadcastBuffer bool     `json:"increase_broadcast_buffer"`
	IncreaseDBConnections   bool     `json:"increase_db_connections"`
	IncreaseChainQueue      bool     `json:"increase_chain_queue"`
	Notes                   []string `json:"notes"`
}

// Analyze examines current metrics and returns optimization recommendations.
func Analyze(metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check tick latency
	if tick, ok := metrics["tick"].(map[string]interface{}); ok {
		if maxLat, ok := tick["max_latency_ms"].(float64); ok && maxLat > 100 {
			rec.IncreaseEventBuffer = true
			rec.Notes = append(rec.Notes, "Tick latency exceeds 100ms - fleet too large for the tick interval")
		}
	}

	// Check event write latency
	if events, ok := metrics["events"].(map[string]interface{}); ok {
		if maxLat, ok := events["max_write_lat_ms"].(float64); ok && maxLat > 50 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write latency exceeds 50ms - increase DB connections")
		}
		if errors, ok := events["errors"].(int64); ok && errors > 0 {
			rec.IncreaseDBConnections = true
			rec.Notes = append(rec.Notes, "Event write errors detected - check DB connection pool")
		}
		if dropped, ok := events["dropped"].(int64); ok && dropped > 0 {
			rec.IncreaseEventBuffer = true
			rec.Notes = append(rec.Notes, "Events dropped before persistence - increase event channel buffer")
		}
	}

	// Check WebSocket backpressure
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseBroadcastBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
	}

	// Check relay health
	if chain, ok := metrics["chain"].(map[string]interface{}); ok {
		if failures, ok := chain["failures"].(int64); ok && failures > 0 {
			rec.IncreaseChainQueue = true
			rec.Notes = append(rec.Notes, "Chain relay failures detected - check relayer and queue depth")
		}
	}

	return rec
}

// ApplyRecommendations modifies config based on recommendations.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	if rec.IncreaseEventBuffer {
		config.EventChannelBuffer *= 2
	}
	if rec.IncreaseBroadcastBuffer {
		config.BroadcastChannelBuffer *= 2
		config.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		config.DBMaxOpenConns = int(float64(config.DBMaxOpenConns) * 1.5)
		config.DBMaxIdleConns = int(float64(config.DBMaxIdleConns) * 1.5)
	}
	if rec.IncreaseChainQueue {
		config.ChainQueue *= 2
	}
	return config
}

// Package chain relays on-chain agent actions to a transaction relayer.
// The simulation never talks to a node directly: a relayer signs and submits for it.
package chain

import (
	"context"
	"time"
)

// Client is the agnostic interface for settlement backends.
// The agent scheduler uses it without knowing which relayer is behind it.
type Client interface {
	// AssignMission records that missionID was handed to the drone at droneAddress.
	AssignMission(ctx context.Context, droneAddress, missionID string) (txID string, err error)

	// Interact records a message sent to the agent at targetAddress.
	Interact(ctx context.Context, targetAddress, message string) (txID string, err error)

	// Name returns the backend name (for logging).
	Name() string

	// IsAvailable checks if the backend is configured.
	IsAvailable() bool
}

// Stats tracks relayer usage.
type Stats struct {
	TotalRequests int           `json:"total_requests"`
	Failures      int           `json:"failures"`
	TotalLatency  time.Duration `json:"total_latency"`
	LastTxID      string        `json:"last_tx_id,omitempty"`
}

// Package protocol defines the websocket messages and validates request bodies
// against the embedded JSON schemas.
package protocol

import (
	"encoding/json"

	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/events"
)

// Server -> client frame types.
const (
	TypeEvent = "event"
	TypeFleet = "fleet"
	TypeError = "error"
)

// Client -> server command types.
const (
	CmdSimStart = "SIM_START"
	CmdSimStop  = "SIM_STOP"
	CmdAssign   = "ASSIGN"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type string `json:"type"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// EventMsg wraps one log event.
type EventMsg struct {
	Type  string          `json:"type"`
	Event events.SimEvent `json:"event"`
}

// FleetMsg is the periodic full drone list.
type FleetMsg struct {
	Type   string        `json:"type"`
	Tick   int64         `json:"tick"`
	Drones []drone.Drone `json:"drones"`
}

// ErrorMsg answers a rejected command.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Command is a client request on the websocket.
type Command struct {
	Type      string `json:"type"`
	DroneID   string `json:"droneId,omitempty"`
	MissionID string `json:"missionId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`
}

// Error codes sent in ErrorMsg.
const (
	ErrBadRequest = "E_BAD_REQUEST"
	ErrRateLimit  = "E_RATE_LIMIT"
	ErrConflict   = "E_CONFLICT"
	ErrNotFound   = "E_NOT_FOUND"
)

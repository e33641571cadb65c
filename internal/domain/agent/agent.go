// Package agent defines the autonomous operators that dispatch drones.
// This package is PURE and must NOT import any infrastructure packages.
package agent

import (
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

// Type says where the agent's decisions are settled.
type Type string

const (
	TypeOnchain  Type = "onchain"
	TypeOffchain Type = "offchain"
	TypeHybrid   Type = "hybrid"
)

// Status is the agent's availability.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusActive  Status = "active"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Strategy selects what an idle agent does on its turn.
type Strategy string

const (
	StrategyAssigner Strategy = "assigner" // Hands pending missions to idle drones
	StrategyTrader   Strategy = "trader"   // Interacts with a random peer
	StrategySocial   Strategy = "social"   // Interacts with a random peer
	StrategyDefault  Strategy = "default"  // Does nothing
)

// XPPerLevel is the experience required for each level.
const XPPerLevel = 100

// Skill is a trained capability.
type Skill struct {
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Experience int    `json:"experience"`
}

// LogEntry is one line of the agent's activity log.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Action is the last thing an agent did.
type Action struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Agent is an operator in the world.
type Agent struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Type           Type                   `json:"type"`
	Status         Status                 `json:"status"`
	Location       geo.Vector3            `json:"location"`
	Strategy       Strategy               `json:"strategy,omitempty"`
	Address        string                 `json:"address,omitempty"` // on-chain account, when any
	Level          int                    `json:"level"`
	Experience     int                    `json:"experience"`
	Reputation     int                    `json:"reputation"`
	Skills         []Skill                `json:"skills"`
	Logs           []LogEntry             `json:"logs"`
	MissionHistory []string               `json:"missionHistory"`
	LastAction     *Action                `json:"lastAction,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// NewAgent creates an idle level 1 agent with empty history.
func NewAgent(id, name string, typ Type, strategy Strategy, location geo.Vector3) *Agent {
	return &Agent{
		ID:             id,
		Name:           name,
		Type:           typ,
		Status:         StatusIdle,
		Location:       location,
		Strategy:       strategy,
		Level:          1,
		Skills:         []Skill{},
		Logs:           []LogEntry{},
		MissionHistory: []string{},
	}
}

// ParseType validates a wire agent type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeOnchain, TypeOffchain, TypeHybrid:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}

// ParseStatus validates a wire agent status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIdle, StatusActive, StatusBusy, StatusOffline:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown agent status %q", s)
}

// ParseStrategy validates a wire strategy. Empty means default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyDefault, nil
	case StrategyAssigner, StrategyTrader, StrategySocial, StrategyDefault:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown agent strategy %q", s)
}

// LevelFor returns the level earned by an experience total.
func LevelFor(experience int) int {
	return experience/XPPerLevel + 1
}

// SettlesOnChain reports whether the agent's actions are mirrored to the chain relay.
func (a *Agent) SettlesOnChain() bool {
	return a.Type == TypeOnchain || a.Type == TypeHybrid
}

// IsOnline reports whether the agent still participates in the world.
func (a *Agent) IsOnline() bool {
	return a.Status != StatusOffline
}

// Log appends an activity line.
func (a *Agent) Log(now time.Time, action string, details map[string]interface{}) {
	a.Logs = append(a.Logs, LogEntry{Timestamp: now, Action: action, Details: details})
}

// Perform records an action and marks the agent active.
func (a *Agent) Perform(action Action) {
	a.LastAction = &action
	a.Status = StatusActive
}

// CreditMission rewards the agent for a completed mission.
// Level never decreases.
func (a *Agent) CreditMission(missionID string, xp, reputation int, now time.Time) {
	a.Experience += xp
	a.Reputation += reputation
	if lvl := LevelFor(a.Experience); a.Level < lvl {
		a.Level = lvl
	}
	a.MissionHistory = append(a.MissionHistory, missionID)
	a.Log(now, "Completed mission", map[string]interface{}{
		"missionId":        missionID,
		"xpGained":         xp,
		"reputationGained": reputation,
	})
}

// Clone returns a copy safe to hand outside the world lock.
func (a *Agent) Clone() Agent {
	c := *a
	c.Skills = append([]Skill{}, a.Skills...)
	c.Logs = append([]LogEntry{}, a.Logs...)
	c.MissionHistory = append([]string{}, a.MissionHistory...)
	if a.LastAction != nil {
		la := *a.LastAction
		c.LastAction = &la
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

package events

import "github.com/monyverse/cyberpunk/internal/domain/geo"

// SimStatePayload accompanies SIM_STATE_CHANGED.
type SimStatePayload struct {
	Running bool  `json:"running"`
	Tick    int64 `json:"tick"`
}

// DronePayload accompanies DRONE_* and COLLISION_AVOIDED events.
type DronePayload struct {
	DroneID  string      `json:"drone_id"`
	Status   string      `json:"status"`
	Location geo.Vector3 `json:"location"`
	Battery  float64     `json:"battery"`
	NearID   string      `json:"near_id,omitempty"` // the drone that triggered a collision nudge
}

// MissionPayload accompanies MISSION_* events.
type MissionPayload struct {
	MissionID string  `json:"mission_id"`
	DroneID   string  `json:"drone_id,omitempty"`
	AgentID   string  `json:"agent_id,omitempty"`
	Status    string  `json:"status"`
	Reward    float64 `json:"reward,omitempty"`
	XP        int     `json:"xp,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// AgentPayload accompanies AGENT_CREATED, AGENT_UPDATED and AGENT_REMOVED.
type AgentPayload struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Level   int    `json:"level"`
}

// InteractionPayload accompanies AGENT_INTERACTION.
type InteractionPayload struct {
	AgentID  string `json:"agent_id"`
	TargetID string `json:"target_id"`
	Strategy string `json:"strategy"`
}

// ProofPayload accompanies PROOF_SEALED.
type ProofPayload struct {
	ProofID   string `json:"proof_id"`
	MissionID string `json:"mission_id"`
	Hash      string `json:"hash"`
}

// SeedPayload accompanies DEMO_SEEDED and DEMO_RESET.
type SeedPayload struct {
	Scenario string `json:"scenario,omitempty"`
	Reset    bool   `json:"reset,omitempty"`
}

// ChainTxPayload accompanies CHAIN_TX.
type ChainTxPayload struct {
	Kind    string `json:"kind"` // assign | interact
	TxID    string `json:"tx_id"`
	AgentID string `json:"agent_id"`
	Ref     string `json:"ref"` // mission id or target agent id
}

// Package storage persists the fleet in SQLite and rebuilds history from the event log.
// State is a function of events: the reconstructor reads only persisted events, never the live world.
package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/monyverse/cyberpunk/internal/events"
)

// Reconstructor rebuilds mission and agent history from the event log.
// Used by the recap endpoints and for auditing after a restart.
type Reconstructor struct {
	eventRepo EventRepository
}

func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// TimelineEntry is one step in a mission's life.
type TimelineEntry struct {
	Tick      int64     `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	ActorID   string    `json:"actor_id"`
	Summary   string    `json:"summary"`
}

// MissionTimeline is the ordered history of one mission.
type MissionTimeline struct {
	MissionID string          `json:"mission_id"`
	Status    string          `json:"status"`
	DroneID   string          `json:"drone_id,omitempty"`
	AgentID   string          `json:"agent_id,omitempty"`
	Entries   []TimelineEntry `json:"entries"`
}

// AgentRecap summarizes what an agent did since a given tick.
type AgentRecap struct {
	AgentID      string          `json:"agent_id"`
	SinceTick    int64           `json:"since_tick"`
	Assignments  int             `json:"assignments"`
	Interactions int             `json:"interactions"`
	Completed    []string        `json:"completed"`
	XPEarned     int             `json:"xp_earned"`
	ChainTxs     int             `json:"chain_txs"`
	Entries      []TimelineEntry `json:"entries"`
}

// MissionTimeline collects every event that names missionID as actor or target.
func (r *Reconstructor) MissionTimeline(ctx context.Context, missionID string) (*MissionTimeline, error) {
	byTarget, err := r.eventRepo.GetByTargetID(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for mission: %w", err)
	}
	byActor, err := r.eventRepo.GetByActorID(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for mission: %w", err)
	}

	// Proof sets are targeted by their own id, so they are matched on the payload.
	sealed, err := r.eventRepo.GetByEventType(ctx, string(events.EventTypeProofSealed))
	if err != nil {
		return nil, fmt.Errorf("failed to get proof events: %w", err)
	}
	var proofs []EventRecord
	for _, e := range sealed {
		if id, _ := e.Payload["mission_id"].(string); id == missionID {
			proofs = append(proofs, e)
		}
	}

	all := merge(merge(byTarget, byActor), proofs)
	tl := &MissionTimeline{MissionID: missionID, Entries: []TimelineEntry{}}
	for _, e := range all {
		if id, _ := e.Payload["mission_id"].(string); id != "" && id != missionID {
			continue
		}
		if s, ok := e.Payload["status"].(string); ok && s != "" {
			tl.Status = s
		}
		if d, ok := e.Payload["drone_id"].(string); ok && d != "" {
			tl.DroneID = d
		}
		if a, ok := e.Payload["agent_id"].(string); ok && a != "" {
			tl.AgentID = a
		}
		tl.Entries = append(tl.Entries, entry(e, r.summarizeMission(e)))
	}
	return tl, nil
}

// AgentRecap builds the recap for agentID from sinceTick onwards.
func (r *Reconstructor) AgentRecap(ctx context.Context, agentID string, sinceTick int64) (*AgentRecap, error) {
	byActor, err := r.eventRepo.GetByActorID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for agent: %w", err)
	}
	byTarget, err := r.eventRepo.GetByTargetID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for agent: %w", err)
	}
	completed, err := r.eventRepo.GetByEventType(ctx, string(events.EventTypeMissionCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to get completions: %w", err)
	}

	recap := &AgentRecap{AgentID: agentID, SinceTick: sinceTick, Completed: []string{}, Entries: []TimelineEntry{}}

	for _, e := range merge(byActor, byTarget) {
		if e.Tick < sinceTick {
			continue
		}
		switch events.EventType(e.EventType) {
		case events.EventTypeMissionAssigned:
			if e.ActorID == agentID {
				recap.Assignments++
			}
		case events.EventTypeAgentInteraction:
			recap.Interactions++
		case events.EventTypeChainTx:
			recap.ChainTxs++
		case events.EventTypeNotification:
			continue
		}
		recap.Entries = append(recap.Entries, entry(e, r.summarizeAgent(e, agentID)))
	}

	// Completions are emitted by the drone, so they are matched on the payload.
	for _, e := range completed {
		if e.Tick < sinceTick {
			continue
		}
		if id, _ := e.Payload["agent_id"].(string); id != agentID {
			continue
		}
		missionID, _ := e.Payload["mission_id"].(string)
		recap.Completed = append(recap.Completed, missionID)
		if xp, ok := e.Payload["xp"].(float64); ok {
			recap.XPEarned += int(xp)
		}
		recap.Entries = append(recap.Entries, entry(e, fmt.Sprintf("Mission %s completed", missionID)))
	}

	sort.SliceStable(recap.Entries, func(i, j int) bool {
		return recap.Entries[i].Tick < recap.Entries[j].Tick
	})
	return recap, nil
}

// merge joins two ordered result sets, dropping duplicates by id.
func merge(a, b []EventRecord) []EventRecord {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]EventRecord, 0, len(a)+len(b))
	for _, list := range [][]EventRecord{a, b} {
		for _, e := range list {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tick != out[j].Tick {
			return out[i].Tick < out[j].Tick
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func entry(e EventRecord, summary string) TimelineEntry {
	return TimelineEntry{
		Tick:      e.Tick,
		Timestamp: e.Timestamp,
		EventType: e.EventType,
		ActorID:   e.ActorID,
		Summary:   summary,
	}
}

func (r *Reconstructor) summarizeMission(e EventRecord) string {
	drone, _ := e.Payload["drone_id"].(string)
	switch events.EventType(e.EventType) {
	case events.EventTypeMissionCreated:
		return "Mission created"
	case events.EventTypeMissionAssigned:
		return fmt.Sprintf("Assigned to %s by %s", drone, e.ActorID)
	case events.EventTypeMissionCompleted:
		return fmt.Sprintf("Completed by %s", drone)
	case events.EventTypeMissionFailed:
		reason, _ := e.Payload["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		return "Failed: " + reason
	case events.EventTypeMissionUpdated:
		return "Updated"
	case events.EventTypeProofSealed:
		return "Proof sealed"
	default:
		return e.EventType
	}
}

func (r *Reconstructor) summarizeAgent(e EventRecord, agentID string) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeAgentCreated:
		return "Joined the fleet"
	case events.EventTypeAgentUpdated:
		return "Profile updated"
	case events.EventTypeAgentRemoved:
		return "Went offline"
	case events.EventTypeMissionAssigned:
		return fmt.Sprintf("Assigned mission %s", e.TargetID)
	case events.EventTypeAgentInteraction:
		if e.TargetID == agentID {
			return "Was contacted by " + e.ActorID
		}
		return "Interacted with " + e.TargetID
	case events.EventTypeChainTx:
		tx, _ := e.Payload["tx_id"].(string)
		return "Settled on chain " + tx
	default:
		return e.EventType
	}
}

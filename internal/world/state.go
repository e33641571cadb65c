// Package world holds the authoritative in-memory fleet: drones, missions, agents and proof sets.
// All access goes through World, which serialises writers behind one lock.
package world

import (
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/domain/proofset"
)

// State is the mutable view handed to World.Mutate callbacks.
// Slices keep insertion order; "first pending" and "first idle" rely on it.
type State struct {
	Drones   []*drone.Drone
	Missions []*mission.Mission
	Agents   []*agent.Agent
	Proofs   []proofset.ProofSet
}

// Completion describes the side effects of completing a mission.
// Both fields are detached copies.
type Completion struct {
	Agent *agent.Agent
	Proof *proofset.ProofSet
}

func (s *State) Drone(id string) *drone.Drone {
	for _, d := range s.Drones {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (s *State) Mission(id string) *mission.Mission {
	for _, m := range s.Missions {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *State) Agent(id string) *agent.Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *State) Proof(id string) (proofset.ProofSet, bool) {
	for _, p := range s.Proofs {
		if p.ID == id {
			return p, true
		}
	}
	return proofset.ProofSet{}, false
}

// FirstPendingMission returns the oldest mission waiting for a drone.
func (s *State) FirstPendingMission() *mission.Mission {
	for _, m := range s.Missions {
		if m.IsPending() {
			return m
		}
	}
	return nil
}

// FirstIdleDrone returns the first drone that can take a mission.
func (s *State) FirstIdleDrone() *drone.Drone {
	for _, d := range s.Drones {
		if d.IsAvailable() {
			return d
		}
	}
	return nil
}

// Assign binds a pending mission to an idle drone.
func (s *State) Assign(d *drone.Drone, m *mission.Mission, agentID string, now time.Time) error {
	if !d.IsAvailable() {
		return ErrDroneBusy
	}
	if !m.IsPending() {
		return ErrMissionNotPending
	}
	d.Status = drone.StatusInMission
	d.LastMissionID = m.ID
	d.UpdatedAt = now
	m.Start(d.ID, agentID, now)
	m.AppendLog(now, "Mission assigned", map[string]interface{}{
		"droneId": d.ID,
		"agentId": agentID,
	})
	return nil
}

// Complete is the single completion path used by both the simulation and the API.
// The assigned agent is credited and the mission is sealed into a proof set.
func (s *State) Complete(m *mission.Mission, now time.Time) Completion {
	m.Finish(mission.StatusCompleted, now)
	m.AppendLog(now, "Mission completed", map[string]interface{}{
		"agentId":    m.AssignedAgentID,
		"reward":     m.Reward,
		"xp":         m.XPReward,
		"reputation": m.ReputationReward,
	})

	var c Completion
	if m.AssignedAgentID != "" {
		if a := s.Agent(m.AssignedAgentID); a != nil {
			a.CreditMission(m.ID, m.XPReward, m.ReputationReward, now)
			credited := a.Clone()
			c.Agent = &credited
		}
	}
	if p, err := proofset.Seal(m.Clone(), now); err == nil {
		s.putProof(p)
		c.Proof = &p
	}
	return c
}

// Fail aborts a mission.
func (s *State) Fail(m *mission.Mission, reason string, now time.Time) {
	m.Finish(mission.StatusFailed, now)
	m.AppendLog(now, "Mission failed", map[string]interface{}{
		"reason":  reason,
		"droneId": m.DroneID,
	})
}

// release returns the drone flying m to idle, if any.
func (s *State) release(m *mission.Mission, now time.Time) {
	for _, d := range s.Drones {
		if d.Status == drone.StatusInMission && d.LastMissionID == m.ID {
			d.Status = drone.StatusIdle
			d.LastMissionID = ""
			d.UpdatedAt = now
		}
	}
}

func (s *State) putProof(p proofset.ProofSet) {
	for i := range s.Proofs {
		if s.Proofs[i].ID == p.ID {
			s.Proofs[i] = p
			return
		}
	}
	s.Proofs = append(s.Proofs, p)
}

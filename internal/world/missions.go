package world

import (
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
)

// MissionInput is the body of a create request.
type MissionInput struct {
	DroneID          string                 `json:"droneId"`
	Pilot            string                 `json:"pilot"`
	Description      string                 `json:"description"`
	Type             string                 `json:"type"`
	Reward           float64                `json:"reward"`
	Difficulty       string                 `json:"difficulty"`
	XPReward         int                    `json:"xpReward"`
	ReputationReward int                    `json:"reputationReward"`
	Metadata         map[string]interface{} `json:"metadata"`
	Target           *geo.Vector3           `json:"target"`
}

// MissionPatch carries the fields a PATCH may change. Nil means untouched.
type MissionPatch struct {
	ID               string                 `json:"id"`
	DroneID          *string                `json:"droneId"`
	Pilot            *string                `json:"pilot"`
	Description      *string                `json:"description"`
	Type             *string                `json:"type"`
	Status           *string                `json:"status"`
	Reward           *float64               `json:"reward"`
	Difficulty       *string                `json:"difficulty"`
	XPReward         *int                   `json:"xpReward"`
	ReputationReward *int                   `json:"reputationReward"`
	Metadata         map[string]interface{} `json:"metadata"`
	Target           *geo.Vector3           `json:"target"`
	AssignedAgentID  *string                `json:"assignedAgentId"`
}

// PatchResult is what a mission PATCH changed.
type PatchResult struct {
	Mission   mission.Mission
	Completed bool
	Failed    bool
	Completion
}

// Assignment is the outcome of binding a mission to a drone.
type Assignment struct {
	Mission mission.Mission
	Drone   drone.Drone
}

func parseDifficulty(s string) (mission.Difficulty, error) {
	switch d := mission.Difficulty(s); d {
	case "", mission.DifficultyEasy, mission.DifficultyMedium, mission.DifficultyHard:
		return d, nil
	}
	return "", invalid(fmt.Errorf("unknown difficulty %q", s))
}

// CreateMission queues a pending mission. Missing type means mapping.
func (w *World) CreateMission(in MissionInput) (mission.Mission, error) {
	typ := mission.TypeMapping
	if in.Type != "" {
		t, err := mission.ParseType(in.Type)
		if err != nil {
			return mission.Mission{}, invalid(err)
		}
		typ = t
	}
	difficulty, err := parseDifficulty(in.Difficulty)
	if err != nil {
		return mission.Mission{}, err
	}
	if in.Target != nil {
		if err := w.arena.Allows(*in.Target); err != nil {
			return mission.Mission{}, invalid(err)
		}
	}

	var out mission.Mission
	w.Mutate(func(s *State, now time.Time) {
		m := &mission.Mission{
			ID:               uniqueID("mission", now, func(id string) bool { return s.Mission(id) != nil }),
			DroneID:          in.DroneID,
			Pilot:            in.Pilot,
			Description:      in.Description,
			Type:             typ,
			Status:           mission.StatusPending,
			Reward:           in.Reward,
			Difficulty:       difficulty,
			XPReward:         in.XPReward,
			ReputationReward: in.ReputationReward,
			Log:              []mission.LogEntry{},
			Metadata:         in.Metadata,
		}
		if m.Metadata == nil {
			m.Metadata = map[string]interface{}{}
		}
		if in.Target != nil {
			t := *in.Target
			m.Target = &t
		}
		s.Missions = append(s.Missions, m)
		out = m.Clone()
	})
	return out, nil
}

// PatchMission applies p. A transition into completed runs the completion path
// before the remaining fields are applied.
func (w *World) PatchMission(p MissionPatch) (PatchResult, error) {
	var (
		typ        mission.Type
		status     mission.Status
		difficulty mission.Difficulty
		err        error
	)
	if p.Type != nil {
		if typ, err = mission.ParseType(*p.Type); err != nil {
			return PatchResult{}, invalid(err)
		}
	}
	if p.Status != nil {
		if status, err = mission.ParseStatus(*p.Status); err != nil {
			return PatchResult{}, invalid(err)
		}
	}
	if p.Difficulty != nil {
		if difficulty, err = parseDifficulty(*p.Difficulty); err != nil {
			return PatchResult{}, err
		}
	}
	if p.Target != nil {
		if err := w.arena.Allows(*p.Target); err != nil {
			return PatchResult{}, invalid(err)
		}
	}

	var res PatchResult
	err = ErrMissionNotFound
	w.Mutate(func(s *State, now time.Time) {
		m := s.Mission(p.ID)
		if m == nil {
			return
		}
		err = nil

		if p.Status != nil && status != m.Status {
			switch status {
			case mission.StatusCompleted:
				// Failed missions may still be completed by an operator; the agent is credited.
				s.release(m, now)
				res.Completion = s.Complete(m, now)
				res.Completed = true
			case mission.StatusFailed:
				s.release(m, now)
				s.Fail(m, "cancelled", now)
				res.Failed = true
			case mission.StatusPending:
				if m.IsFlying() {
					s.release(m, now)
					m.DroneID = ""
				}
				m.Status = status
			default:
				m.Status = status
			}
		}
		if p.DroneID != nil {
			m.DroneID = *p.DroneID
		}
		if p.Pilot != nil {
			m.Pilot = *p.Pilot
		}
		if p.Description != nil {
			m.Description = *p.Description
		}
		if p.Type != nil {
			m.Type = typ
		}
		if p.Reward != nil {
			m.Reward = *p.Reward
		}
		if p.Difficulty != nil {
			m.Difficulty = difficulty
		}
		if p.XPReward != nil {
			m.XPReward = *p.XPReward
		}
		if p.ReputationReward != nil {
			m.ReputationReward = *p.ReputationReward
		}
		if p.Metadata != nil {
			m.Metadata = p.Metadata
		}
		if p.Target != nil {
			t := *p.Target
			m.Target = &t
		}
		if p.AssignedAgentID != nil {
			m.AssignedAgentID = *p.AssignedAgentID
		}
		res.Mission = m.Clone()
	})
	return res, err
}

// AssignMission binds a pending mission to an idle drone on behalf of agentID.
// agentID may be empty for operator assignments.
func (w *World) AssignMission(droneID, missionID, agentID string) (Assignment, error) {
	var res Assignment
	var err error
	w.Mutate(func(s *State, now time.Time) {
		d := s.Drone(droneID)
		if d == nil {
			err = ErrDroneNotFound
			return
		}
		m := s.Mission(missionID)
		if m == nil {
			err = ErrMissionNotFound
			return
		}
		var a *agent.Agent
		if agentID != "" {
			if a = s.Agent(agentID); a == nil {
				err = ErrAgentNotFound
				return
			}
		}
		if err = s.Assign(d, m, agentID, now); err != nil {
			return
		}
		if a != nil {
			a.Perform(agent.Action{
				Type:      "assign_mission",
				Timestamp: now,
				Details:   map[string]interface{}{"missionId": m.ID, "droneId": d.ID},
			})
		}
		res = Assignment{Mission: m.Clone(), Drone: d.Clone()}
	})
	return res, err
}

package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

// ErrInvalidInput wraps every rejected field value.
var ErrInvalidInput = errors.New("invalid input")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// AgentInput is the body of a create request.
type AgentInput struct {
	Name     string                 `json:"name"`
	Type     string                 `json:"type"`
	Strategy string                 `json:"strategy"`
	Location *geo.Vector3           `json:"location"`
	Address  string                 `json:"address"`
	Skills   []agent.Skill          `json:"skills"`
	Metadata map[string]interface{} `json:"metadata"`
}

// AgentPatch carries the fields a PATCH may change. Nil means untouched.
type AgentPatch struct {
	ID         string                 `json:"id"`
	Name       *string                `json:"name"`
	Type       *string                `json:"type"`
	Status     *string                `json:"status"`
	Strategy   *string                `json:"strategy"`
	Location   *geo.Vector3           `json:"location"`
	Address    *string                `json:"address"`
	Level      *int                   `json:"level"`
	Experience *int                   `json:"experience"`
	Reputation *int                   `json:"reputation"`
	Skills     []agent.Skill          `json:"skills"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CreateAgent adds an idle level 1 agent.
func (w *World) CreateAgent(in AgentInput) (agent.Agent, error) {
	typ, err := agent.ParseType(in.Type)
	if err != nil {
		return agent.Agent{}, invalid(err)
	}
	strategy, err := agent.ParseStrategy(in.Strategy)
	if err != nil {
		return agent.Agent{}, invalid(err)
	}
	loc := geo.Origin
	if in.Location != nil {
		loc = *in.Location
	}

	var out agent.Agent
	w.Mutate(func(s *State, now time.Time) {
		id := uniqueID("agent", now, func(id string) bool { return s.Agent(id) != nil })
		a := agent.NewAgent(id, in.Name, typ, strategy, loc)
		a.Address = in.Address
		if in.Skills != nil {
			a.Skills = append(a.Skills, in.Skills...)
		}
		a.Metadata = in.Metadata
		s.Agents = append(s.Agents, a)
		out = a.Clone()
	})
	return out, nil
}

// PatchAgent applies the non-nil fields of p.
func (w *World) PatchAgent(p AgentPatch) (agent.Agent, error) {
	var (
		typ      agent.Type
		status   agent.Status
		strategy agent.Strategy
		err      error
	)
	if p.Type != nil {
		if typ, err = agent.ParseType(*p.Type); err != nil {
			return agent.Agent{}, invalid(err)
		}
	}
	if p.Status != nil {
		if status, err = agent.ParseStatus(*p.Status); err != nil {
			return agent.Agent{}, invalid(err)
		}
	}
	if p.Strategy != nil {
		if strategy, err = agent.ParseStrategy(*p.Strategy); err != nil {
			return agent.Agent{}, invalid(err)
		}
	}

	var out agent.Agent
	err = ErrAgentNotFound
	w.Mutate(func(s *State, now time.Time) {
		a := s.Agent(p.ID)
		if a == nil {
			return
		}
		if p.Name != nil {
			a.Name = *p.Name
		}
		if p.Type != nil {
			a.Type = typ
		}
		if p.Status != nil {
			a.Status = status
		}
		if p.Strategy != nil {
			a.Strategy = strategy
		}
		if p.Location != nil {
			a.Location = *p.Location
		}
		if p.Address != nil {
			a.Address = *p.Address
		}
		if p.Level != nil {
			a.Level = *p.Level
		}
		if p.Experience != nil {
			a.Experience = *p.Experience
		}
		if p.Reputation != nil {
			a.Reputation = *p.Reputation
		}
		if p.Skills != nil {
			a.Skills = append([]agent.Skill{}, p.Skills...)
		}
		if p.Metadata != nil {
			a.Metadata = p.Metadata
		}
		a.Log(now, "Updated", nil)
		out = a.Clone()
		err = nil
	})
	return out, err
}

// RemoveAgent takes an agent offline. Agents are never deleted so history stays resolvable.
func (w *World) RemoveAgent(id string) (agent.Agent, error) {
	var out agent.Agent
	err := ErrAgentNotFound
	w.Mutate(func(s *State, now time.Time) {
		a := s.Agent(id)
		if a == nil {
			return
		}
		a.Status = agent.StatusOffline
		a.Log(now, "Removed", nil)
		out = a.Clone()
		err = nil
	})
	return out, err
}

package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/world"
)

// ChainRelay receives settlement requests for on-chain agents.
// Implementations must not block the tick.
type ChainRelay interface {
	SubmitAssignment(agentID, droneID, missionID string, tick int64)
	SubmitInteraction(agentID, targetID, message string, tick int64)
}

// AgentSystem runs agent decisions on agent-phase ticks.
type AgentSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	world    *world.World
	cfg      config.Simulation
	rng      *rand.Rand
	relay    ChainRelay
}

// NewAgentSystem creates the agent scheduler. Its RNG is seeded from cfg.Seed so runs are reproducible.
func NewAgentSystem(eventLog *events.EventLog, w *world.World, cfg config.Simulation, log *logger.Logger) *AgentSystem {
	return &AgentSystem{
		eventLog: eventLog,
		logger:   log,
		world:    w,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
}

// OnTimeTick lets idle agents act and walks active ones.
func (as *AgentSystem) OnTimeTick(tick TickPayload) {
	if !tick.AgentPhase {
		return
	}

	var emitted []events.SimEvent
	var settle []func()
	emit := func(e events.SimEvent) {
		e.Tick = tick.TickNumber
		emitted = append(emitted, e)
	}

	as.world.Mutate(func(s *world.State, now time.Time) {
		for _, a := range s.Agents {
			if a.Status == agent.StatusIdle && as.rng.Float64() < as.cfg.AgentActionProbability {
				if fn := as.act(s, a, now, tick.TickNumber, emit); fn != nil {
					settle = append(settle, fn)
				}
			}
			if a.Status == agent.StatusActive {
				a.Location.X += as.walk()
				a.Location.Z += as.walk()
			}
		}
	})

	for _, e := range emitted {
		as.eventLog.Append(e)
	}
	for _, fn := range settle {
		fn()
	}
}

// walk is a uniform step in [-AgentWalk, AgentWalk).
func (as *AgentSystem) walk() float64 {
	return (as.rng.Float64()*2 - 1) * as.cfg.AgentWalk
}

// act performs one decision and returns the chain settlement to run after the world lock is released.
func (as *AgentSystem) act(s *world.State, a *agent.Agent, now time.Time, tick int64, emit func(events.SimEvent)) func() {
	switch a.Strategy {
	case agent.StrategyAssigner:
		m := s.FirstPendingMission()
		d := s.FirstIdleDrone()
		if m == nil || d == nil {
			return nil
		}
		if err := s.Assign(d, m, a.ID, now); err != nil {
			as.logger.Warn(fmt.Sprintf("%s could not assign %s to %s: %v", a.ID, m.ID, d.ID, err))
			return nil
		}
		a.LastAction = &agent.Action{
			Type:      "assign_mission",
			Timestamp: now,
			Details:   map[string]interface{}{"missionId": m.ID, "droneId": d.ID},
		}
		a.Log(now, "Assigned mission", map[string]interface{}{"missionId": m.ID, "droneId": d.ID})

		emit(events.SimEvent{
			Type:     events.EventTypeMissionAssigned,
			ActorID:  a.ID,
			TargetID: m.ID,
			Payload:  events.MissionPayload{MissionID: m.ID, DroneID: d.ID, AgentID: a.ID, Status: string(m.Status)},
		})
		emit(events.Notify(a.ID, fmt.Sprintf("%s (assigner) assigned mission %q to %s", a.Name, m.Description, d.Model), events.SeverityInfo, tick))
		as.logger.Event(string(events.EventTypeMissionAssigned), a.ID, m.ID+" -> "+d.ID)

		if as.relay == nil || !a.SettlesOnChain() {
			return nil
		}
		agentID, droneID, missionID := a.ID, d.ID, m.ID
		return func() { as.relay.SubmitAssignment(agentID, droneID, missionID, tick) }

	case agent.StrategyTrader, agent.StrategySocial:
		var peers []*agent.Agent
		for _, other := range s.Agents {
			if other.ID != a.ID && other.IsOnline() {
				peers = append(peers, other)
			}
		}
		if len(peers) == 0 {
			return nil
		}
		target := peers[as.rng.Intn(len(peers))]
		a.LastAction = &agent.Action{
			Type:      "interact",
			Timestamp: now,
			Details:   map[string]interface{}{"targetId": target.ID},
		}
		a.Log(now, "Interacted", map[string]interface{}{"targetId": target.ID, "strategy": string(a.Strategy)})

		message := fmt.Sprintf("%s (%s) interacted with %s", a.Name, a.Strategy, target.Name)
		emit(events.SimEvent{
			Type:     events.EventTypeAgentInteraction,
			ActorID:  a.ID,
			TargetID: target.ID,
			Payload:  events.InteractionPayload{AgentID: a.ID, TargetID: target.ID, Strategy: string(a.Strategy)},
		})
		emit(events.Notify(a.ID, message, events.SeverityInfo, tick))

		if as.relay == nil || !a.SettlesOnChain() {
			return nil
		}
		agentID, targetID := a.ID, target.ID
		return func() { as.relay.SubmitInteraction(agentID, targetID, message, tick) }
	}
	return nil
}

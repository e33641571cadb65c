package world

import (
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
)

// Demo scenarios.
const (
	ScenarioDefault      = "default"
	ScenarioEmpty        = "empty"
	ScenarioAllCompleted = "all-completed"
	ScenarioAllPending   = "all-pending"
	ScenarioBusy         = "busy"
)

// Scenarios lists the names Seed understands.
var Scenarios = []string{ScenarioDefault, ScenarioEmpty, ScenarioAllCompleted, ScenarioAllPending, ScenarioBusy}

// Seed replaces drones, missions and agents with a demo scenario.
// Unknown names fall back to default. The scenario actually loaded is returned.
func (w *World) Seed(scenario string) string {
	applied := scenario
	w.Mutate(func(s *State, now time.Time) {
		var f fixture
		switch scenario {
		case ScenarioEmpty:
			f = fixture{}
		case ScenarioAllCompleted:
			f = allCompleted(now)
		case ScenarioAllPending:
			f = allPending(now)
		case ScenarioBusy:
			f = busy(now)
		default:
			applied = ScenarioDefault
			f = defaultFixture(now)
		}
		s.Drones, s.Missions, s.Agents = f.drones, f.missions, f.agents
	})
	return applied
}

// Reset clears drones, missions and agents. Proof sets survive.
func (w *World) Reset() {
	w.Mutate(func(s *State, _ time.Time) {
		s.Drones, s.Missions, s.Agents = nil, nil, nil
	})
}

type fixture struct {
	drones   []*drone.Drone
	missions []*mission.Mission
	agents   []*agent.Agent
}

func seedAgent(id, name string, typ agent.Type, status agent.Status, loc geo.Vector3, strategy agent.Strategy, level, xp, rep int, history ...string) *agent.Agent {
	a := agent.NewAgent(id, name, typ, strategy, loc)
	a.Status = status
	a.Level = level
	a.Experience = xp
	a.Reputation = rep
	a.MissionHistory = append(a.MissionHistory, history...)
	return a
}

func seedMission(id, droneID, pilot, desc string, typ mission.Type, status mission.Status, reward float64, diff mission.Difficulty, xp, rep int, target geo.Vector3) *mission.Mission {
	t := target
	return &mission.Mission{
		ID:               id,
		DroneID:          droneID,
		Pilot:            pilot,
		Description:      desc,
		Type:             typ,
		Status:           status,
		Reward:           reward,
		Difficulty:       diff,
		XPReward:         xp,
		ReputationReward: rep,
		Log:              []mission.LogEntry{},
		Metadata:         map[string]interface{}{},
		Target:           &t,
	}
}

func seedDrone(id string, loc geo.Vector3, battery float64, now time.Time) *drone.Drone {
	d := drone.NewDrone(id, DefaultModel, "", loc, now)
	d.Battery = battery
	return d
}

func fly(d *drone.Drone, m *mission.Mission, now time.Time) {
	d.Status = drone.StatusInMission
	d.LastMissionID = m.ID
	start := now
	m.StartTime = &start
}

func finished(m *mission.Mission, at time.Time) *mission.Mission {
	end := at
	m.EndTime = &end
	return m
}

func alpha(status agent.Status, level, xp, rep int, history ...string) *agent.Agent {
	return seedAgent("agent-1", "Alpha", agent.TypeOnchain, status, geo.Vector3{}, agent.StrategyAssigner, level, xp, rep, history...)
}

func beta(status agent.Status, history ...string) *agent.Agent {
	return seedAgent("agent-2", "Beta", agent.TypeOffchain, status, geo.Vector3{X: 10, Z: 10}, agent.StrategyTrader, 1, 30, 2, history...)
}

var (
	targetA = geo.Vector3{X: 40, Z: 40}
	targetB = geo.Vector3{X: -30, Z: 25}
	targetC = geo.Vector3{X: 60, Z: -45}
	targetD = geo.Vector3{X: -50, Z: -20}
)

func defaultFixture(now time.Time) fixture {
	day := 24 * time.Hour
	m1 := finished(seedMission("mission-1", "drone-1", "user-1", "Map sector A", mission.TypeMapping, mission.StatusCompleted, 100, mission.DifficultyEasy, 10, 1, targetA), now.Add(-2*day))
	m2 := finished(seedMission("mission-2", "drone-2", "user-2", "Deliver package B", mission.TypeDelivery, mission.StatusCompleted, 80, mission.DifficultyMedium, 15, 2, targetB), now.Add(-day))
	m3 := seedMission("mission-3", "drone-3", "user-3", "Surveillance C", mission.TypeSurveillance, mission.StatusActive, 120, mission.DifficultyHard, 20, 3, targetC)
	m4 := seedMission("mission-4", "", "user-4", "Custom mission D", mission.TypeCustom, mission.StatusPending, 50, mission.DifficultyEasy, 5, 1, targetD)

	d3 := seedDrone("drone-3", geo.Vector3{X: 20, Z: -15}, 100, now)
	fly(d3, m3, now)

	return fixture{
		drones: []*drone.Drone{
			seedDrone("drone-1", geo.Vector3{}, 100, now),
			seedDrone("drone-2", geo.Vector3{X: 12, Z: -8}, 64, now),
			d3,
		},
		missions: []*mission.Mission{m1, m2, m3, m4},
		agents: []*agent.Agent{
			alpha(agent.StatusActive, 2, 120, 5, "mission-1", "mission-2"),
			beta(agent.StatusIdle, "mission-3"),
			seedAgent("agent-3", "Gamma", agent.TypeHybrid, agent.StatusActive, geo.Vector3{X: -10, Z: -10}, agent.StrategySocial, 1, 10, 1),
		},
	}
}

func allCompleted(now time.Time) fixture {
	day := 24 * time.Hour
	m1 := finished(seedMission("mission-1", "drone-1", "user-1", "Map sector A", mission.TypeMapping, mission.StatusCompleted, 100, mission.DifficultyEasy, 10, 1, targetA), now.Add(-2*day))
	m2 := finished(seedMission("mission-2", "drone-2", "user-2", "Deliver package B", mission.TypeDelivery, mission.StatusCompleted, 80, mission.DifficultyMedium, 15, 2, targetB), now.Add(-day))
	return fixture{
		drones: []*drone.Drone{
			seedDrone("drone-1", geo.Vector3{}, 100, now),
			seedDrone("drone-2", geo.Vector3{X: 12, Z: -8}, 100, now),
		},
		missions: []*mission.Mission{m1, m2},
		agents:   []*agent.Agent{alpha(agent.StatusActive, 2, 120, 5, "mission-1", "mission-2")},
	}
}

func allPending(now time.Time) fixture {
	return fixture{
		drones: []*drone.Drone{
			seedDrone("drone-1", geo.Vector3{}, 100, now),
			seedDrone("drone-2", geo.Vector3{X: 12, Z: -8}, 100, now),
		},
		missions: []*mission.Mission{
			seedMission("mission-1", "", "user-1", "Map sector A", mission.TypeMapping, mission.StatusPending, 100, mission.DifficultyEasy, 10, 1, targetA),
			seedMission("mission-2", "", "user-2", "Deliver package B", mission.TypeDelivery, mission.StatusPending, 80, mission.DifficultyMedium, 15, 2, targetB),
		},
		agents: []*agent.Agent{alpha(agent.StatusIdle, 1, 0, 0)},
	}
}

func busy(now time.Time) fixture {
	m1 := seedMission("mission-1", "drone-1", "user-1", "Map sector A", mission.TypeMapping, mission.StatusActive, 100, mission.DifficultyEasy, 10, 1, targetA)
	m2 := seedMission("mission-2", "drone-2", "user-2", "Deliver package B", mission.TypeDelivery, mission.StatusActive, 80, mission.DifficultyMedium, 15, 2, targetB)
	m1.AssignedAgentID = "agent-1"
	m2.AssignedAgentID = "agent-2"
	d1 := seedDrone("drone-1", geo.Vector3{}, 100, now)
	d2 := seedDrone("drone-2", geo.Vector3{X: 12, Z: -8}, 100, now)
	fly(d1, m1, now)
	fly(d2, m2, now)
	return fixture{
		drones:   []*drone.Drone{d1, d2},
		missions: []*mission.Mission{m1, m2},
		agents: []*agent.Agent{
			alpha(agent.StatusActive, 2, 120, 5, "mission-1"),
			beta(agent.StatusActive, "mission-2"),
		},
	}
}

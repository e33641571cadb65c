package engine

import (
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/world"
)

// FlightSystem flies in-mission drones toward their targets.
// Arrival completes the mission; a flat battery aborts it and sends the drone home.
type FlightSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	world    *world.World
	cfg      config.Simulation
}

// NewFlightSystem creates the flight controller.
func NewFlightSystem(eventLog *events.EventLog, w *world.World, cfg config.Simulation, log *logger.Logger) *FlightSystem {
	return &FlightSystem{
		eventLog: eventLog,
		logger:   log,
		world:    w,
		cfg:      cfg,
	}
}

// OnTimeTick advances every in-mission drone by one step.
func (fs *FlightSystem) OnTimeTick(tick TickPayload) {
	var emitted []events.SimEvent
	emit := func(e events.SimEvent) {
		e.Tick = tick.TickNumber
		emitted = append(emitted, e)
	}

	fs.world.Mutate(func(s *world.State, now time.Time) {
		for _, d := range s.Drones {
			if d.Status != drone.StatusInMission {
				continue
			}
			m := s.Mission(d.LastMissionID)
			if m == nil || m.Target == nil {
				continue
			}
			fs.step(s, d, m, now, emit)
		}
	})

	for _, e := range emitted {
		fs.eventLog.Append(e)
	}
}

func (fs *FlightSystem) step(s *world.State, d *drone.Drone, m *mission.Mission, now time.Time, emit func(events.SimEvent)) {
	target := *m.Target
	profile := mission.ProfileFor(fs.cfg.Profiles, m.Type)

	heading := geo.Heading(d.Location, target)
	d.Location = geo.MoveToward(d.Location, target, profile.Speed)
	d.Drain(profile.BatteryDrain)
	d.Record(now, profile.Altitude, profile.Speed, heading)

	if geo.Near(d.Location, target, fs.cfg.ArrivalRadius) {
		d.Status = drone.StatusIdle
		d.LastMissionID = ""
		if m.IsTerminal() {
			return
		}
		c := s.Complete(m, now)
		emit(events.SimEvent{
			Type:     events.EventTypeMissionCompleted,
			ActorID:  d.ID,
			TargetID: m.ID,
			Payload: events.MissionPayload{
				MissionID: m.ID,
				DroneID:   d.ID,
				AgentID:   m.AssignedAgentID,
				Status:    string(m.Status),
				Reward:    m.Reward,
				XP:        m.XPReward,
			},
		})
		emit(events.Notify(d.ID, fmt.Sprintf("%s completed mission %q", d.Model, m.Description), events.SeveritySuccess, 0))
		if c.Proof != nil {
			emit(events.SimEvent{
				Type:     events.EventTypeProofSealed,
				ActorID:  events.ActorSystem,
				TargetID: c.Proof.ID,
				Payload:  events.ProofPayload{ProofID: c.Proof.ID, MissionID: m.ID, Hash: c.Proof.Hash},
			})
		}
		fs.logger.Event(string(events.EventTypeMissionCompleted), d.ID, m.ID)
		return
	}

	if d.Battery < fs.cfg.LowBatteryThreshold {
		d.Status = drone.StatusCharging
		if !m.IsTerminal() {
			s.Fail(m, "low battery", now)
			emit(events.SimEvent{
				Type:     events.EventTypeMissionFailed,
				ActorID:  d.ID,
				TargetID: m.ID,
				Payload: events.MissionPayload{
					MissionID: m.ID,
					DroneID:   d.ID,
					AgentID:   m.AssignedAgentID,
					Status:    string(m.Status),
					Reason:    "low battery",
				},
			})
		}
		emit(events.SimEvent{
			Type:    events.EventTypeDroneReturning,
			ActorID: d.ID,
			Payload: events.DronePayload{DroneID: d.ID, Status: string(d.Status), Location: d.Location, Battery: d.Battery},
		})
		emit(events.Notify(d.ID, fmt.Sprintf("%s battery low (%.1f%%), returning to charge", d.Model, d.Battery), events.SeverityError, 0))
		fs.logger.Warn(fmt.Sprintf("%s aborted %s at %.1f%% battery", d.ID, m.ID, d.Battery))
	}
}

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

// ChargingSystem brings charging drones back to the pad and tops them up.
type ChargingSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	world    *world.World
	cfg      config.Simulation
}

// NewChargingSystem creates the charging manager.
func NewChargingSystem(eventLog *events.EventLog, w *world.World, cfg config.Simulation, log *logger.Logger) *ChargingSystem {
	return &ChargingSystem{
		eventLog: eventLog,
		logger:   log,
		world:    w,
		cfg:      cfg,
	}
}

// OnTimeTick moves or charges every charging drone.
func (cs *ChargingSystem) OnTimeTick(tick TickPayload) {
	station := cs.cfg.ChargingStation
	cruise := mission.ProfileFor(cs.cfg.Profiles, mission.TypeMapping).Altitude
	var charged []events.SimEvent

	cs.world.Mutate(func(s *world.State, now time.Time) {
		for _, d := range s.Drones {
			if d.Status != drone.StatusCharging {
				continue
			}
			if !geo.Near(d.Location, station, cs.cfg.ArrivalRadius) {
				heading := geo.Heading(d.Location, station)
				d.Location = geo.MoveToward(d.Location, station, cs.cfg.ChargerStep)
				d.Record(now, cruise, cs.cfg.ChargerStep, heading)
				continue
			}
			if !d.IsFull() {
				d.Charge(cs.cfg.ChargeRate)
				d.UpdatedAt = now
				continue
			}
			d.Status = drone.StatusIdle
			d.UpdatedAt = now
			charged = append(charged, events.SimEvent{
				Type:    events.EventTypeDroneCharged,
				ActorID: d.ID,
				Payload: events.DronePayload{DroneID: d.ID, Status: string(d.Status), Location: d.Location, Battery: d.Battery},
				Tick:    tick.TickNumber,
			})
		}
	})

	for _, e := range charged {
		cs.eventLog.Append(e)
		cs.logger.Event(string(e.Type), e.ActorID, fmt.Sprintf("back in service at tick %d", tick.TickNumber))
	}
}

package engine

import (
	"time"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/world"
)

// CollisionSystem keeps airborne drones apart.
// Any flying drone with a neighbour inside the separation box is shifted along +X, at most once per tick.
type CollisionSystem struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	world    *world.World
	cfg      config.Simulation
}

// NewCollisionSystem creates the separation manager.
func NewCollisionSystem(eventLog *events.EventLog, w *world.World, cfg config.Simulation, log *logger.Logger) *CollisionSystem {
	return &CollisionSystem{
		eventLog: eventLog,
		logger:   log,
		world:    w,
		cfg:      cfg,
	}
}

// OnTimeTick runs after movement so positions are final for the tick.
func (cs *CollisionSystem) OnTimeTick(tick TickPayload) {
	if cs.cfg.CollisionRadius <= 0 {
		return
	}
	var nudged []events.SimEvent

	cs.world.Mutate(func(s *world.State, now time.Time) {
		for i, d := range s.Drones {
			if !d.IsFlying() {
				continue
			}
			for j, other := range s.Drones {
				if i == j || !geo.Near(d.Location, other.Location, cs.cfg.CollisionRadius) {
					continue
				}
				d.Location.X += cs.cfg.CollisionNudge
				d.UpdatedAt = now
				nudged = append(nudged, events.SimEvent{
					Type:     events.EventTypeCollisionAvoid,
					ActorID:  d.ID,
					TargetID: other.ID,
					Payload: events.DronePayload{
						DroneID:  d.ID,
						Status:   string(d.Status),
						Location: d.Location,
						Battery:  d.Battery,
						NearID:   other.ID,
					},
					Tick: tick.TickNumber,
				})
				break
			}
		}
	})

	for _, e := range nudged {
		cs.eventLog.Append(e)
	}
}

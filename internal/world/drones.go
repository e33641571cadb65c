package world

import (
	"fmt"
	"strconv"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

// DefaultModel is used when a drone is registered without one.
const DefaultModel = "SimDrone X"

// DroneInput is the body of a register request.
type DroneInput struct {
	ID       string       `json:"id"`
	Model    string       `json:"model"`
	Owner    string       `json:"owner"`
	Location *geo.Vector3 `json:"location"`
	Battery  *float64     `json:"battery"`
}

// AddDrone registers an idle simulated drone. Ids default to drone-<n>.
func (w *World) AddDrone(in DroneInput) (drone.Drone, error) {
	if in.Battery != nil && (*in.Battery < 0 || *in.Battery > drone.MaxBattery) {
		return drone.Drone{}, invalid(fmt.Errorf("battery %.1f outside [0,100]", *in.Battery))
	}
	model := in.Model
	if model == "" {
		model = DefaultModel
	}
	loc := geo.Origin
	if in.Location != nil {
		loc = *in.Location
	}

	var out drone.Drone
	var err error
	w.Mutate(func(s *State, now time.Time) {
		id := in.ID
		if id == "" {
			for n := len(s.Drones) + 1; ; n++ {
				id = "drone-" + strconv.Itoa(n)
				if s.Drone(id) == nil {
					break
				}
			}
		} else if s.Drone(id) != nil {
			err = invalid(fmt.Errorf("drone %s already registered", id))
			return
		}
		d := drone.NewDrone(id, model, in.Owner, loc, now)
		if in.Battery != nil {
			d.Battery = *in.Battery
		}
		s.Drones = append(s.Drones, d)
		out = d.Clone()
	})
	return out, err
}

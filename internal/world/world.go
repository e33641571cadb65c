package world

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/domain/proofset"
)

var (
	ErrAgentNotFound     = errors.New("Agent not found")
	ErrMissionNotFound   = errors.New("Mission not found")
	ErrDroneNotFound     = errors.New("Drone not found")
	ErrProofNotFound     = errors.New("Proof set not found")
	ErrDroneBusy         = errors.New("drone is not idle")
	ErrMissionNotPending = errors.New("mission is not pending")
)

// World guards State. Reads return copies; writers hold the lock for the whole change.
type World struct {
	mu    sync.RWMutex
	state State
	arena geo.Arena
	now   func() time.Time
}

// New creates an empty world containing only the genesis proof set.
func New(arena geo.Arena) *World {
	return &World{
		state: State{Proofs: []proofset.ProofSet{proofset.Genesis()}},
		arena: arena,
		now:   time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (w *World) SetClock(now func() time.Time) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
}

// Now reads the world clock.
func (w *World) Now() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.now()
}

// Arena returns the target validation geometry.
func (w *World) Arena() geo.Arena {
	return w.arena
}

// Mutate runs fn with exclusive access to the state.
func (w *World) Mutate(fn func(s *State, now time.Time)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.state, w.now())
}

// View runs fn with shared access. fn must not modify the state or retain pointers.
func (w *World) View(fn func(s *State)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(&w.state)
}

func (w *World) Drones() []drone.Drone {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]drone.Drone, 0, len(w.state.Drones))
	for _, d := range w.state.Drones {
		out = append(out, d.Clone())
	}
	return out
}

func (w *World) Missions() []mission.Mission {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]mission.Mission, 0, len(w.state.Missions))
	for _, m := range w.state.Missions {
		out = append(out, m.Clone())
	}
	return out
}

func (w *World) Agents() []agent.Agent {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]agent.Agent, 0, len(w.state.Agents))
	for _, a := range w.state.Agents {
		out = append(out, a.Clone())
	}
	return out
}

func (w *World) Proofs() []proofset.ProofSet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]proofset.ProofSet(nil), w.state.Proofs...)
}

func (w *World) Drone(id string) (drone.Drone, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if d := w.state.Drone(id); d != nil {
		return d.Clone(), nil
	}
	return drone.Drone{}, ErrDroneNotFound
}

func (w *World) Mission(id string) (mission.Mission, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if m := w.state.Mission(id); m != nil {
		return m.Clone(), nil
	}
	return mission.Mission{}, ErrMissionNotFound
}

func (w *World) Agent(id string) (agent.Agent, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if a := w.state.Agent(id); a != nil {
		return a.Clone(), nil
	}
	return agent.Agent{}, ErrAgentNotFound
}

func (w *World) Proof(id string) (proofset.ProofSet, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if p, ok := w.state.Proof(id); ok {
		return p, nil
	}
	return proofset.ProofSet{}, ErrProofNotFound
}

// Counts is a cheap summary used by metrics and the status endpoint.
type Counts struct {
	Drones        int            `json:"drones"`
	DronesByState map[string]int `json:"drones_by_status"`
	Missions      int            `json:"missions"`
	MissionsBy    map[string]int `json:"missions_by_status"`
	Agents        int            `json:"agents"`
	Proofs        int            `json:"proofs"`
}

func (w *World) Counts() Counts {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := Counts{
		Drones:        len(w.state.Drones),
		DronesByState: make(map[string]int),
		Missions:      len(w.state.Missions),
		MissionsBy:    make(map[string]int),
		Agents:        len(w.state.Agents),
		Proofs:        len(w.state.Proofs),
	}
	for _, d := range w.state.Drones {
		c.DronesByState[string(d.Status)]++
	}
	for _, m := range w.state.Missions {
		c.MissionsBy[string(m.Status)]++
	}
	return c
}

// uniqueID returns prefix-<unix ms>, suffixed until taken reports false.
func uniqueID(prefix string, now time.Time, taken func(string) bool) string {
	base := fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
	id := base
	for n := 2; taken(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

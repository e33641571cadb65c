package world

import (
	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/domain/proofset"
)

// Snapshot is a detached copy of every collection.
type Snapshot struct {
	Drones   []drone.Drone       `json:"drones"`
	Missions []mission.Mission   `json:"missions"`
	Agents   []agent.Agent       `json:"agents"`
	Proofs   []proofset.ProofSet `json:"proof_sets"`
}

// Empty reports whether the snapshot holds no fleet at all.
func (s Snapshot) Empty() bool {
	return len(s.Drones) == 0 && len(s.Missions) == 0 && len(s.Agents) == 0
}

func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	snap := Snapshot{
		Drones:   make([]drone.Drone, 0, len(w.state.Drones)),
		Missions: make([]mission.Mission, 0, len(w.state.Missions)),
		Agents:   make([]agent.Agent, 0, len(w.state.Agents)),
		Proofs:   append([]proofset.ProofSet(nil), w.state.Proofs...),
	}
	for _, d := range w.state.Drones {
		snap.Drones = append(snap.Drones, d.Clone())
	}
	for _, m := range w.state.Missions {
		snap.Missions = append(snap.Missions, m.Clone())
	}
	for _, a := range w.state.Agents {
		snap.Agents = append(snap.Agents, a.Clone())
	}
	return snap
}

// Restore replaces the whole state. The genesis proof set is kept if the snapshot lacks it.
func (w *World) Restore(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{}
	for i := range snap.Drones {
		d := snap.Drones[i].Clone()
		st.Drones = append(st.Drones, &d)
	}
	for i := range snap.Missions {
		m := snap.Missions[i].Clone()
		st.Missions = append(st.Missions, &m)
	}
	for i := range snap.Agents {
		a := snap.Agents[i].Clone()
		st.Agents = append(st.Agents, &a)
	}
	genesis := proofset.Genesis()
	st.Proofs = append(st.Proofs, snap.Proofs...)
	if _, ok := st.Proof(genesis.ID); !ok {
		st.Proofs = append([]proofset.ProofSet{genesis}, st.Proofs...)
	}
	w.state = st
}

package network

import (
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/world"
)

// Feature kinds in the fleet export.
const (
	FeatureDrone  = "drone"
	FeatureTarget = "target"
	FeatureNoFly  = "no_fly"
	FeatureArena  = "arena"
)

// FleetGeoJSON projects the world onto the ground plane.
// Altitude is carried as a property since GeoJSON points are 2D.
func FleetGeoJSON(w *world.World) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	arena := w.Arena()
	if arena.Bounded() {
		f := geojson.NewFeature(arena.Bound.ToPolygon())
		f.Properties["kind"] = FeatureArena
		fc.Append(f)
	}
	for i, zone := range arena.NoFly {
		f := geojson.NewFeature(zone)
		f.Properties["kind"] = FeatureNoFly
		f.Properties["index"] = i
		fc.Append(f)
	}

	missions := w.Missions()
	targets := make(map[string]geo.Vector3, len(missions))
	for _, m := range missions {
		if m.Target != nil {
			targets[m.ID] = *m.Target
		}
	}

	for _, d := range w.Drones() {
		f := geojson.NewFeature(d.Location.Planar())
		f.ID = d.ID
		f.Properties["kind"] = FeatureDrone
		f.Properties["model"] = d.Model
		f.Properties["status"] = string(d.Status)
		f.Properties["battery"] = d.Battery
		f.Properties["altitude"] = d.Location.Y
		if d.LastMissionID != "" {
			f.Properties["mission_id"] = d.LastMissionID
			if t, ok := targets[d.LastMissionID]; ok {
				f.Properties["target_distance"] = geo.PlanarDistance(d.Location, t)
			}
		}
		fc.Append(f)
	}

	for _, m := range missions {
		if m.Target == nil || m.Status == mission.StatusCompleted || m.Status == mission.StatusFailed {
			continue
		}
		f := geojson.NewFeature(m.Target.Planar())
		f.ID = m.ID
		f.Properties["kind"] = FeatureTarget
		f.Properties["status"] = string(m.Status)
		f.Properties["type"] = string(m.Type)
		f.Properties["drone_id"] = m.DroneID
		fc.Append(f)
	}
	return fc
}

// HandleFleetGeoJSON serves GET /api/fleet.geojson.
func (a *API) HandleFleetGeoJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	raw, err := FleetGeoJSON(a.world).MarshalJSON()
	if err != nil {
		jsonError(w, "Failed to encode fleet", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(raw)
}

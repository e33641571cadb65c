package network

import (
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/world"
)

func TestFleetGeoJSON(t *testing.T) {
	zone := geo.Zone([]geo.Vector3{{X: 100, Z: 100}, {X: 150, Z: 100}, {X: 150, Z: 150}, {X: 100, Z: 150}})
	w := world.New(geo.NewArena(500, []orb.Polygon{zone}))
	w.Seed(world.ScenarioDefault)

	kinds := map[string]int{}
	var drone3 *geojson.Feature
	for _, f := range FleetGeoJSON(w).Features {
		kind, _ := f.Properties["kind"].(string)
		kinds[kind]++
		if f.ID == "drone-3" {
			drone3 = f
		}
	}
	if kinds[FeatureArena] != 1 || kinds[FeatureNoFly] != 1 || kinds[FeatureDrone] != 3 {
		t.Errorf("unexpected feature kinds %v", kinds)
	}
	// mission-3 is active and mission-4 pending; the completed ones are skipped.
	if kinds[FeatureTarget] != 2 {
		t.Errorf("expected 2 open targets, got %d", kinds[FeatureTarget])
	}
	if drone3 == nil {
		t.Fatal("drone-3 missing")
	}
	if p, ok := drone3.Geometry.(orb.Point); !ok || p.X() != 20 || p.Y() != -15 {
		t.Errorf("drone-3 should sit at (20,-15) on the ground plane, got %v", drone3.Geometry)
	}
	// mission-3 targets (60,-45): a 30-40-50 triangle away.
	if d, ok := drone3.Properties["target_distance"].(float64); !ok || d != 50 {
		t.Errorf("expected target_distance 50, got %v", drone3.Properties["target_distance"])
	}
}

func TestFleetGeoJSONHandler(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(mux, http.MethodGet, "/api/fleet.geojson", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fc.Features) == 0 {
		t.Error("empty feature collection")
	}
}

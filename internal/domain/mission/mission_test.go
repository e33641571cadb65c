package mission

import (
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

func TestProfileFallback(t *testing.T) {
	profiles := DefaultProfiles()

	if p := ProfileFor(profiles, TypeDelivery); p.Speed != 3 || p.BatteryDrain != 0.4 || p.Altitude != 4 {
		t.Errorf("Unexpected delivery profile: %+v", p)
	}
	if p := ProfileFor(profiles, Type("unknown")); p != profiles[TypeMapping] {
		t.Errorf("Expected unknown type to fly the mapping profile, got %+v", p)
	}
	if p := ProfileFor(nil, TypeSurveillance); p.Speed != 2 {
		t.Errorf("Expected built-in mapping profile when none configured, got %+v", p)
	}
}

func TestLifecycle(t *testing.T) {
	now := time.Now()
	m := &Mission{ID: "mission-1", Status: StatusPending, Type: TypeMapping}
	if !m.IsPending() {
		t.Fatalf("Expected pending mission")
	}

	m.Start("drone-1", "agent-1", now)
	if !m.IsFlying() || m.DroneID != "drone-1" || m.StartTime == nil {
		t.Errorf("Expected active mission bound to drone-1, got %+v", m)
	}

	m.Finish(StatusFailed, now)
	if !m.IsTerminal() || m.EndTime == nil {
		t.Errorf("Expected terminal mission with end time")
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := &Mission{
		ID:       "mission-1",
		Target:   &geo.Vector3{X: 1},
		Metadata: map[string]interface{}{"k": "v"},
	}
	m.AppendLog(time.Now(), "created", nil)

	c := m.Clone()
	c.Target.X = 9
	c.Metadata["k"] = "changed"
	c.Log[0].Event = "changed"

	if m.Target.X != 1 || m.Metadata["k"] != "v" || m.Log[0].Event != "created" {
		t.Errorf("Clone mutated the original: %+v", m)
	}
}

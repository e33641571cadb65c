package drone

import (
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

func TestBatteryStaysInRange(t *testing.T) {
	d := NewDrone("drone-1", "SimDrone X", "user-1", geo.Origin, time.Now())

	d.Drain(250)
	if d.Battery != 0 {
		t.Errorf("Expected battery floor at 0, got %f", d.Battery)
	}

	d.Charge(40)
	d.Charge(80)
	if d.Battery != MaxBattery {
		t.Errorf("Expected battery capped at %f, got %f", MaxBattery, d.Battery)
	}
	if !d.IsFull() {
		t.Errorf("Expected drone to report full battery")
	}
}

func TestCloneCopiesTelemetry(t *testing.T) {
	d := NewDrone("drone-1", "SimDrone X", "", geo.Origin, time.Now())
	d.Record(time.Now(), 2, 2, 90)

	c := d.Clone()
	c.Telemetry.Speed = 99
	if d.Telemetry.Speed != 2 {
		t.Errorf("Clone shares telemetry with original")
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("in-mission"); err != nil {
		t.Errorf("Expected in-mission to parse: %v", err)
	}
	if _, err := ParseStatus("flying"); err == nil {
		t.Errorf("Expected unknown status to fail")
	}
}

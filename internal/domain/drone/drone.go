// Package drone defines the simulated aircraft.
// This package is PURE and must NOT import any infrastructure packages.
package drone

import (
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

// Status is the operational state of a drone.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusInMission Status = "in-mission"
	StatusCharging  Status = "charging"
	StatusOffline   Status = "offline"
)

// MaxBattery is a full charge, in percent.
const MaxBattery = 100.0

// Telemetry is the last reading reported by the flight controller.
type Telemetry struct {
	Timestamp time.Time   `json:"timestamp"`
	Location  geo.Vector3 `json:"location"`
	Altitude  float64     `json:"altitude"`
	Speed     float64     `json:"speed"`
	Heading   float64     `json:"heading"`
	Battery   float64     `json:"battery"`
}

// Drone is a single aircraft in the fleet.
type Drone struct {
	ID            string      `json:"id"`
	Model         string      `json:"model"`
	Status        Status      `json:"status"`
	Location      geo.Vector3 `json:"location"`
	Battery       float64     `json:"battery"`
	IsSimulated   bool        `json:"isSimulated"`
	LastMissionID string      `json:"lastMissionId,omitempty"`
	Owner         string      `json:"owner,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Telemetry     *Telemetry  `json:"telemetry,omitempty"`
}

// NewDrone creates a fully charged, idle, simulated drone.
func NewDrone(id, model, owner string, location geo.Vector3, now time.Time) *Drone {
	return &Drone{
		ID:          id,
		Model:       model,
		Status:      StatusIdle,
		Location:    location,
		Battery:     MaxBattery,
		IsSimulated: true,
		Owner:       owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusIdle, StatusInMission, StatusCharging, StatusOffline:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown drone status %q", s)
}

// IsAvailable reports whether the drone can take a new mission.
func (d *Drone) IsAvailable() bool {
	return d.Status == StatusIdle
}

// IsFlying reports whether the drone is airborne and subject to separation rules.
func (d *Drone) IsFlying() bool {
	return d.Status == StatusInMission || d.Status == StatusCharging
}

// Drain removes charge, never going below zero.
func (d *Drone) Drain(amount float64) {
	d.Battery -= amount
	if d.Battery < 0 {
		d.Battery = 0
	}
}

// Charge adds charge, capped at MaxBattery.
func (d *Drone) Charge(amount float64) {
	d.Battery += amount
	if d.Battery > MaxBattery {
		d.Battery = MaxBattery
	}
}

// IsFull reports whether the battery is at MaxBattery.
func (d *Drone) IsFull() bool {
	return d.Battery >= MaxBattery
}

// Record stores a telemetry frame for the current location and battery.
func (d *Drone) Record(now time.Time, altitude, speed, heading float64) {
	d.Telemetry = &Telemetry{
		Timestamp: now,
		Location:  d.Location,
		Altitude:  altitude,
		Speed:     speed,
		Heading:   heading,
		Battery:   d.Battery,
	}
	d.UpdatedAt = now
}

// Clone returns a deep copy safe to hand outside the world lock.
func (d *Drone) Clone() Drone {
	c := *d
	if d.Telemetry != nil {
		t := *d.Telemetry
		c.Telemetry = &t
	}
	return c
}

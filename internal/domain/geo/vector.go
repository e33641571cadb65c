// Package geo holds the spatial primitives shared by drones, missions and agents.
// The simulation is 3D but every proximity rule works on the ground plane (X/Z).
package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrOutOfArena = errors.New("target outside arena bounds")
	ErrNoFlyZone  = errors.New("target inside a no-fly zone")
)

// Vector3 is a position in simulation units.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Origin is where the charging pad sits unless configured otherwise.
var Origin = Vector3{}

// Distance returns the straight-line 3D distance between two points.
func Distance(a, b Vector3) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// MoveToward steps from current toward target by step units.
// When the remaining distance is shorter than step the target itself is returned.
func MoveToward(current, target Vector3, step float64) Vector3 {
	dist := Distance(current, target)
	if dist < step || dist == 0 {
		return target
	}
	return Vector3{
		X: current.X + (target.X-current.X)/dist*step,
		Y: current.Y + (target.Y-current.Y)/dist*step,
		Z: current.Z + (target.Z-current.Z)/dist*step,
	}
}

// Near reports whether b lies inside the ground-plane box of half-width r around a.
func Near(a, b Vector3, r float64) bool {
	return math.Abs(a.X-b.X) < r && math.Abs(a.Z-b.Z) < r
}

// Heading is the ground-plane bearing from one point to another in degrees [0, 360).
// North is +Z.
func Heading(from, to Vector3) float64 {
	dx := to.X - from.X
	dz := to.Z - from.Z
	if dx == 0 && dz == 0 {
		return 0
	}
	deg := math.Atan2(dx, dz) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Planar projects the vector onto the ground plane.
func (v Vector3) Planar() orb.Point {
	return orb.Point{v.X, v.Z}
}

// PlanarDistance is the ground-plane distance, ignoring altitude.
func PlanarDistance(a, b Vector3) float64 {
	return planar.Distance(a.Planar(), b.Planar())
}

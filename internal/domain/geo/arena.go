package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Arena bounds where mission targets may be placed.
type Arena struct {
	Bound orb.Bound
	NoFly []orb.Polygon
}

// NewArena builds a square arena centred on the origin.
// A non-positive halfExtent yields an unbounded arena.
func NewArena(halfExtent float64, noFly []orb.Polygon) Arena {
	a := Arena{NoFly: noFly}
	if halfExtent > 0 {
		a.Bound = orb.Bound{
			Min: orb.Point{-halfExtent, -halfExtent},
			Max: orb.Point{halfExtent, halfExtent},
		}
	}
	return a
}

// Bounded reports whether the arena restricts coordinates at all.
func (a Arena) Bounded() bool {
	return !a.Bound.IsZero()
}

// Allows validates a target position.
func (a Arena) Allows(v Vector3) error {
	p := v.Planar()
	if a.Bounded() && !a.Bound.Contains(p) {
		return ErrOutOfArena
	}
	for _, zone := range a.NoFly {
		if planar.PolygonContains(zone, p) {
			return ErrNoFlyZone
		}
	}
	return nil
}

// Zone converts a list of ground-plane corners into a closed polygon.
func Zone(corners []Vector3) orb.Polygon {
	ring := make(orb.Ring, 0, len(corners)+1)
	for _, c := range corners {
		ring = append(ring, c.Planar())
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

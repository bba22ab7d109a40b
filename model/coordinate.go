package model

import (
	"fmt"
	"math"
)

// Coordinate is a geographic position in floating-point degrees.
// It is an immutable value type and is safe to use as a map key.
type Coordinate struct {
	Lat float64
	Lng float64
}

// CoordinateTolerance is the degree-space tolerance under which two
// coordinates are considered the same point. It is half the default
// routing grid step, so a snapped grid node can never be mistaken for
// its neighbour.
const CoordinateTolerance = 0.0005

// Validate rejects coordinates outside the geographic domain or
// containing non-finite components.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("coordinate (%v, %v) is not finite", c.Lat, c.Lng)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	return nil
}

// DegreeDistanceTo returns the Euclidean distance between two
// coordinates in raw degree space. This is deliberately not a
// great-circle distance: the reroute safety margin is defined in
// coordinate units, so its effective ground size varies with latitude.
func (c Coordinate) DegreeDistanceTo(other Coordinate) float64 {
	return math.Hypot(c.Lat-other.Lat, c.Lng-other.Lng)
}

// ApproxEqual reports whether two coordinates coincide within
// CoordinateTolerance in degree space.
func (c Coordinate) ApproxEqual(other Coordinate) bool {
	return c.DegreeDistanceTo(other) < CoordinateTolerance
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lng)
}

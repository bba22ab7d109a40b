package core

import (
	"hash/fnv"
	"math"

	"github.com/signalsfoundry/routeguard/model"
)

// TerrainContext is the read-only lookup capability the engine needs
// from whatever map layer the caller owns. Implementations must be
// safe for concurrent use.
type TerrainContext interface {
	// ElevationAt returns the terrain elevation in metres at the given
	// coordinate, or 0 when unknown.
	ElevationAt(c model.Coordinate) float64
	// TerrainType returns a label ("urban", "forest", ...) used only
	// for route metadata, never for scoring.
	TerrainType() string
}

// SurrogateFeatures are the per-coordinate feature values that a real
// deployment would derive from map and population data. The routing
// core only requires the documented ranges; where the values come from
// is the estimator's business.
type SurrogateFeatures struct {
	SlopeDeg        float64 // 0..30
	Vegetation      float64 // 0..1
	WaterProximity  float64 // 0..5
	RoadProximity   float64 // 0..2
	BuildingDensity float64 // 0..1
	Roughness       float64 // 0..1
	Visibility      float64 // 0..1

	CivilianPresence float64 // 0..1
	EscapeRouteBase  float64 // 0.5..1, before hazard-density reduction
}

// TerrainEstimator produces surrogate features for a coordinate.
// Implementations must be deterministic for a given coordinate so
// that repeated searches over the same area produce identical routes.
type TerrainEstimator interface {
	Estimate(c model.Coordinate) SurrogateFeatures
}

// FlatTerrain is a TerrainContext with uniform zero elevation, useful
// when no elevation layer is available.
type FlatTerrain struct {
	Type string
}

func (f FlatTerrain) ElevationAt(model.Coordinate) float64 { return 0 }

func (f FlatTerrain) TerrainType() string {
	if f.Type == "" {
		return "urban"
	}
	return f.Type
}

// HashEstimator derives surrogate features from a hash of the
// coordinate quantised to the routing grid. Values are stable across
// processes, spatially uncorrelated, and spread over the documented
// ranges. The seed lets deployments decorrelate independent planners.
type HashEstimator struct {
	Seed uint64
}

func (e HashEstimator) Estimate(c model.Coordinate) SurrogateFeatures {
	u := e.unit(c)
	return SurrogateFeatures{
		SlopeDeg:         u(0) * 30,
		Vegetation:       u(1),
		WaterProximity:   u(2) * 5,
		RoadProximity:    u(3) * 2,
		BuildingDensity:  u(4),
		Roughness:        u(5),
		Visibility:       u(6),
		CivilianPresence: u(7),
		EscapeRouteBase:  0.5 + u(8)*0.5,
	}
}

// unit returns a generator of values in [0, 1) keyed by feature index.
// Coordinates are quantised to 1e-4 degrees before hashing so that
// float noise below the grid resolution cannot change the features.
func (e HashEstimator) unit(c model.Coordinate) func(idx uint64) float64 {
	latQ := int64(math.Round(c.Lat * 1e4))
	lngQ := int64(math.Round(c.Lng * 1e4))

	return func(idx uint64) float64 {
		h := fnv.New64a()
		var buf [8]byte
		putInt64 := func(v int64) {
			uv := uint64(v)
			for i := 0; i < 8; i++ {
				buf[i] = byte(uv >> (8 * i))
			}
			h.Write(buf[:])
		}
		putInt64(int64(e.Seed))
		putInt64(latQ)
		putInt64(lngQ)
		putInt64(int64(idx))
		return float64(h.Sum64()>>11) / float64(1<<53)
	}
}

// FixedEstimator returns the same surrogate features everywhere. Used
// in tests to pin scoring to the hazard geometry alone.
type FixedEstimator struct {
	Features SurrogateFeatures
}

func (e FixedEstimator) Estimate(model.Coordinate) SurrogateFeatures { return e.Features }

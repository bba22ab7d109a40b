package core

import "github.com/signalsfoundry/routeguard/model"

// Feature vector lengths. These are fixed by the shape of the scorer's
// weight matrices; changing one without the other is a config error.
const (
	TerrainFeatureCount = 8
	HazardFeatureCount  = 6
)

// TerrainFeatures is the ordered terrain feature vector:
// elevation, slope, vegetation density, water proximity, road
// proximity, building density, roughness, visibility.
type TerrainFeatures [TerrainFeatureCount]float64

// HazardFeatures is the ordered hazard feature vector:
// distance to nearest hazard (km), exposure level, nearby-incident
// count, civilian presence, escape-route availability, hazard density.
type HazardFeatures [HazardFeatureCount]float64

// FeatureExtractor turns coordinates plus context into the fixed-size
// vectors the scorer consumes. It holds no mutable state.
type FeatureExtractor struct {
	Estimator TerrainEstimator
}

// NewFeatureExtractor builds an extractor, defaulting to the
// deterministic hash estimator when none is supplied.
func NewFeatureExtractor(est TerrainEstimator) *FeatureExtractor {
	if est == nil {
		est = HashEstimator{}
	}
	return &FeatureExtractor{Estimator: est}
}

// TerrainFeatures extracts the terrain vector for a coordinate.
func (fe *FeatureExtractor) TerrainFeatures(c model.Coordinate, terrain TerrainContext) TerrainFeatures {
	var elevation float64
	if terrain != nil {
		elevation = terrain.ElevationAt(c)
	}
	s := fe.Estimator.Estimate(c)
	return TerrainFeatures{
		elevation,
		s.SlopeDeg,
		s.Vegetation,
		s.WaterProximity,
		s.RoadProximity,
		s.BuildingDensity,
		s.Roughness,
		s.Visibility,
	}
}

// Hazard feature constants. nearestDefaultKm applies when no hazards
// are known; incidentRadiusKm bounds the nearby-incident count;
// escape-route availability is floored so dense hazard fields never
// drive it negative.
const (
	nearestDefaultKm   = 10.0
	incidentRadiusKm   = 2.0
	minMeaningfulKm    = 0.1
	escapeFloor        = 0.1
	escapeDensityScale = 0.2
)

// HazardFeatures extracts the hazard vector for a coordinate against a
// snapshot of known hazards.
func (fe *FeatureExtractor) HazardFeatures(c model.Coordinate, hazards []model.HazardRecord) HazardFeatures {
	s := fe.Estimator.Estimate(c)

	nearest := nearestDefaultKm
	exposure := 0.0
	incidents := 0.0
	density := 0.0
	escape := s.EscapeRouteBase

	if len(hazards) > 0 {
		nearest = -1
		for _, hz := range hazards {
			d := Haversine(c, hz.Location)
			if nearest < 0 || d < nearest {
				nearest = d
			}
			if d < incidentRadiusKm {
				incidents++
			}
			if d < minMeaningfulKm {
				d = minMeaningfulKm
			}
			density += 1.0 / d
		}

		exposure = 1.0 / nearest
		if nearest < minMeaningfulKm {
			exposure = 1.0 / minMeaningfulKm
		}
		if exposure > 1.0 {
			exposure = 1.0
		}

		escape -= density * escapeDensityScale
		if escape < escapeFloor {
			escape = escapeFloor
		}
	}

	return HazardFeatures{
		nearest,
		exposure,
		incidents,
		s.CivilianPresence,
		escape,
		density,
	}
}

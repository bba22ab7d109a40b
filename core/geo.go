package core

import (
	"math"

	"github.com/signalsfoundry/routeguard/model"
)

// EarthRadiusKm is the mean Earth radius used for all great-circle
// calculations in the routing layer (kilometres).
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates
// in kilometres. It is symmetric and returns 0 for identical inputs.
func Haversine(a, b model.Coordinate) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lng1 := a.Lng * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lng2 := b.Lng * math.Pi / 180

	dLat := lat2 - lat1
	dLng := lng2 - lng1

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

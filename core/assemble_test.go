package core

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/routeguard/model"
)

func testAssembler() *Assembler {
	a := NewAssembler(NewSafetyScorer(fixedExtractor(), 42))
	a.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAssembleLabels(t *testing.T) {
	a := testAssembler()
	path := []model.Coordinate{
		{Lat: 10, Lng: 10},
		{Lat: 10.001, Lng: 10.001},
		{Lat: 10.002, Lng: 10.002},
		{Lat: 10.003, Lng: 10.003},
	}

	route := a.Assemble(path, FlatTerrain{Type: "forest"}, nil)

	if route.Status != model.RouteStatusComplete {
		t.Fatalf("status = %v, want complete", route.Status)
	}
	if len(route.Waypoints) != len(path) {
		t.Fatalf("got %d waypoints, want %d", len(route.Waypoints), len(path))
	}
	if route.Waypoints[0].Label != "Starting Point" {
		t.Errorf("first label = %q, want Starting Point", route.Waypoints[0].Label)
	}
	if route.Waypoints[1].Label != "Waypoint 2" {
		t.Errorf("second label = %q, want Waypoint 2", route.Waypoints[1].Label)
	}
	if route.Waypoints[3].Label != "Destination" {
		t.Errorf("last label = %q, want Destination", route.Waypoints[3].Label)
	}
	if route.Start != path[0] || route.End != path[3] {
		t.Errorf("terminals = %v..%v, want %v..%v", route.Start, route.End, path[0], path[3])
	}
	if route.TerrainType != "forest" {
		t.Errorf("terrain type = %q, want forest", route.TerrainType)
	}
	if route.Key == "" {
		t.Error("route key not assigned")
	}
	if route.EngineVersion != EngineVersion {
		t.Errorf("engine version = %q, want %q", route.EngineVersion, EngineVersion)
	}
}

func TestAssembleTotals(t *testing.T) {
	a := testAssembler()
	path := []model.Coordinate{
		{Lat: 10, Lng: 10},
		{Lat: 10.005, Lng: 10},
		{Lat: 10.01, Lng: 10},
	}

	route := a.Assemble(path, FlatTerrain{}, nil)

	rawKm := Haversine(path[0], path[1]) + Haversine(path[1], path[2])
	wantKm := math.Round(rawKm*100) / 100
	if route.TotalDistanceKm != wantKm {
		t.Errorf("distance = %v, want %v", route.TotalDistanceKm, wantKm)
	}

	wantMinutes := int(math.Round(rawKm / DefaultTravelSpeedKmh * 60))
	if route.EstimatedMinutes != wantMinutes {
		t.Errorf("minutes = %v, want %v", route.EstimatedMinutes, wantMinutes)
	}

	// aggregate score is the rounded mean of per-waypoint scores
	sum := 0.0
	for _, wp := range route.Waypoints {
		sum += wp.SafetyScore
	}
	wantScore := math.Round(sum/float64(len(path))*10) / 10
	if route.SafetyScore != wantScore {
		t.Errorf("safety score = %v, want %v", route.SafetyScore, wantScore)
	}
}

func TestAssembleEmptyPath(t *testing.T) {
	a := testAssembler()
	route := a.Assemble(nil, FlatTerrain{}, nil)
	if route.Status != model.RouteStatusNoPath {
		t.Errorf("status = %v, want no_path", route.Status)
	}
	if len(route.Waypoints) != 0 {
		t.Errorf("empty path produced %d waypoints", len(route.Waypoints))
	}
}

// hazardAverseWeights pins the scorer so hazard presence always drags
// the score down: proximity, exposure, incidents, and density carry
// negative weight, distance-to-nearest and escape availability carry
// positive weight.
func hazardAverseWeights() (TerrainWeights, HazardWeights) {
	var tw TerrainWeights
	var hw HazardWeights
	for j := 0; j < hazardProjection; j++ {
		hw[0][j] = 0.05 // nearest distance: farther is safer
		hw[1][j] = -1.0 // exposure
		hw[2][j] = -0.5 // nearby incidents
		hw[3][j] = 0    // civilian presence: neutral here
		hw[4][j] = 1.0  // escape availability
		hw[5][j] = -0.2 // hazard density
	}
	return tw, hw
}

func TestHazardLowersMinWaypointSafety(t *testing.T) {
	tw, hw := hazardAverseWeights()
	scorer := NewSafetyScorerWithWeights(fixedExtractor(), tw, hw, 1)
	a := NewAssembler(scorer)

	path := []model.Coordinate{
		{Lat: 10, Lng: 10},
		{Lat: 10.005, Lng: 10.005},
		{Lat: 10.01, Lng: 10.01},
	}
	onPath := []model.HazardRecord{hazardAt(10.005, 10.005)}

	clean := a.Assemble(path, FlatTerrain{}, nil)
	threatened := a.Assemble(path, FlatTerrain{}, onPath)

	if threatened.MinWaypointSafety() >= clean.MinWaypointSafety() {
		t.Errorf("hazard on the path did not lower min waypoint safety: %v >= %v",
			threatened.MinWaypointSafety(), clean.MinWaypointSafety())
	}
}

func TestFailedRoute(t *testing.T) {
	a := testAssembler()
	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 11, Lng: 11}

	route := a.FailedRoute(start, end, FlatTerrain{}, model.RouteStatusBudgetExceeded)

	if route.Status != model.RouteStatusBudgetExceeded {
		t.Errorf("status = %v, want budget_exceeded", route.Status)
	}
	if !route.Failed() {
		t.Error("failed route reports Failed() == false")
	}
	if route.Start != start || route.End != end {
		t.Errorf("terminals = %v..%v, want %v..%v", route.Start, route.End, start, end)
	}
	if len(route.Waypoints) != 0 || route.TotalDistanceKm != 0 || route.SafetyScore != 0 {
		t.Error("failed route carries non-empty payload")
	}
	if route.Key == "" {
		t.Error("failed route has no key")
	}
}

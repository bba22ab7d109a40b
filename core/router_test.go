package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/routeguard/model"
)

func testRouter() *Router {
	return NewRouter(NewSafetyScorer(fixedExtractor(), 42))
}

func TestFindPathSimpleRoute(t *testing.T) {
	r := testRouter()
	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 10.01, Lng: 10.01}

	path, stats, outcome, err := r.FindPath(context.Background(), start, end, FlatTerrain{}, nil)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if outcome != OutcomeFound {
		t.Fatalf("outcome = %v, want OutcomeFound", outcome)
	}
	if len(path) < 2 {
		t.Fatalf("path has %d points, want at least 2", len(path))
	}
	if path[0] != start {
		t.Errorf("path starts at %v, want exact start %v", path[0], start)
	}
	if path[len(path)-1] != end {
		t.Errorf("path ends at %v, want exact end %v", path[len(path)-1], end)
	}
	if stats.Expanded == 0 {
		t.Error("no nodes expanded for a non-trivial route")
	}

	// consecutive points must be grid neighbours, never a jump
	for i := 1; i < len(path)-1; i++ {
		d := path[i].DegreeDistanceTo(path[i-1])
		if d > 2*DefaultGridStepDeg {
			t.Errorf("points %d and %d are %v degrees apart, exceeds one diagonal step", i-1, i, d)
		}
	}

	// with no hazards the cost field is uniform, so the path should
	// track the direct great-circle line closely
	direct := Haversine(start, end)
	if got := pathLengthKm(path); got > direct*1.02 {
		t.Errorf("hazard-free path length = %v km, want within 2%% of direct %v km", got, direct)
	}
}

func TestFindPathDeterministic(t *testing.T) {
	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 10.005, Lng: 10.008}
	hazards := []model.HazardRecord{hazardAt(10.002, 10.004)}

	r1 := testRouter()
	r2 := testRouter()

	p1, _, o1, err1 := r1.FindPath(context.Background(), start, end, FlatTerrain{}, hazards)
	p2, _, o2, err2 := r2.FindPath(context.Background(), start, end, FlatTerrain{}, hazards)
	if err1 != nil || err2 != nil {
		t.Fatalf("FindPath errors: %v, %v", err1, err2)
	}
	if o1 != o2 {
		t.Fatalf("outcomes differ: %v vs %v", o1, o2)
	}
	if len(p1) != len(p2) {
		t.Fatalf("path lengths differ: %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("paths diverge at index %d: %v vs %v", i, p1[i], p2[i])
		}
	}
}

func TestFindPathStartEqualsEnd(t *testing.T) {
	r := testRouter()
	c := model.Coordinate{Lat: 10, Lng: 10}

	path, _, outcome, err := r.FindPath(context.Background(), c, c, FlatTerrain{}, nil)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if outcome != OutcomeFound {
		t.Fatalf("outcome = %v, want OutcomeFound", outcome)
	}
	if len(path) != 1 || path[0] != c {
		t.Errorf("path = %v, want single point %v", path, c)
	}
}

func TestFindPathBudgetExceeded(t *testing.T) {
	r := testRouter()
	r.MaxExpansions = 3

	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 10.05, Lng: 10.05}

	path, stats, outcome, err := r.FindPath(context.Background(), start, end, FlatTerrain{}, nil)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if outcome != OutcomeBudgetExceeded {
		t.Fatalf("outcome = %v, want OutcomeBudgetExceeded", outcome)
	}
	if path != nil {
		t.Errorf("budget-exceeded search returned a path: %v", path)
	}
	if stats.Expanded > 3 {
		t.Errorf("expanded %d nodes past the budget of 3", stats.Expanded)
	}
}

func TestFindPathCancelledContext(t *testing.T) {
	r := testRouter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, outcome, err := r.FindPath(ctx,
		model.Coordinate{Lat: 10, Lng: 10},
		model.Coordinate{Lat: 10.01, Lng: 10.01},
		FlatTerrain{}, nil)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if outcome != OutcomeBudgetExceeded {
		t.Errorf("outcome = %v, want OutcomeBudgetExceeded on cancelled context", outcome)
	}
}

func TestFindPathUnreachableGoal(t *testing.T) {
	// The end sits half a step off the grid in both axes, so no grid
	// node ever lands within the goal tolerance. The bounded search
	// area must exhaust and report no path, not spin forever.
	r := testRouter()
	r.BoundsMarginDeg = 0.005

	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 10.0005, Lng: 10.0005}

	path, _, outcome, err := r.FindPath(context.Background(), start, end, FlatTerrain{}, nil)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if outcome != OutcomeNoPath {
		t.Fatalf("outcome = %v, want OutcomeNoPath", outcome)
	}
	if path != nil {
		t.Errorf("no-path search returned a path: %v", path)
	}
}

func TestFindPathInvalidEndpoints(t *testing.T) {
	r := testRouter()

	_, _, _, err := r.FindPath(context.Background(),
		model.Coordinate{Lat: 91, Lng: 0},
		model.Coordinate{Lat: 10, Lng: 10},
		FlatTerrain{}, nil)
	if err == nil {
		t.Fatal("out-of-range start accepted")
	}

	_, _, _, err = r.FindPath(context.Background(),
		model.Coordinate{Lat: 10, Lng: 10},
		model.Coordinate{Lat: 10, Lng: 181},
		FlatTerrain{}, nil)
	if err == nil {
		t.Fatal("out-of-range end accepted")
	}
}

func TestSafetyFactor(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{100, 1.0},
		{50, 2.0},
		{0, 3.0},
	}
	for _, tt := range tests {
		if got := safetyFactor(tt.score); got != tt.want {
			t.Errorf("safetyFactor(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestFindPathAvoidsHazardCorridor(t *testing.T) {
	// A hazard sitting on the direct diagonal should push the route
	// cost above the hazard-free baseline for the same endpoints.
	scorer := NewSafetyScorer(fixedExtractor(), 42)
	r := NewRouter(scorer)
	start := model.Coordinate{Lat: 10, Lng: 10}
	end := model.Coordinate{Lat: 10.006, Lng: 10.006}
	hazards := []model.HazardRecord{hazardAt(10.003, 10.003)}

	clean, _, o1, err := r.FindPath(context.Background(), start, end, FlatTerrain{}, nil)
	if err != nil || o1 != OutcomeFound {
		t.Fatalf("baseline search failed: outcome=%v err=%v", o1, err)
	}
	threatened, _, o2, err := r.FindPath(context.Background(), start, end, FlatTerrain{}, hazards)
	if err != nil || o2 != OutcomeFound {
		t.Fatalf("threatened search failed: outcome=%v err=%v", o2, err)
	}

	if pathLengthKm(threatened) < pathLengthKm(clean) {
		t.Errorf("threatened path (%v km) shorter than clean path (%v km)",
			pathLengthKm(threatened), pathLengthKm(clean))
	}
}

func pathLengthKm(path []model.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Haversine(path[i-1], path[i])
	}
	return total
}

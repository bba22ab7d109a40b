package model

import "time"

// RouteStatus describes how a route computation ended.
type RouteStatus string

const (
	// RouteStatusComplete means the search reached the destination.
	RouteStatusComplete RouteStatus = "complete"
	// RouteStatusNoPath means the frontier was exhausted without
	// reaching the destination. A normal outcome, not a fault.
	RouteStatusNoPath RouteStatus = "no_path"
	// RouteStatusBudgetExceeded means the search hit its expansion or
	// deadline budget before reaching the destination. Distinguished
	// from RouteStatusNoPath because it signals possible
	// unreachability rather than exhaustion of a finite space.
	RouteStatusBudgetExceeded RouteStatus = "budget_exceeded"
)

// Waypoint is one stop along an assembled route.
type Waypoint struct {
	Location    Coordinate
	Label       string
	ElevationM  float64
	SafetyScore float64 // 0..100
}

// Route is the externally visible result of a planning run. Waypoints
// are stored in travel order, starting at Start and ending at End.
type Route struct {
	ID  int64  // store-assigned, 0 until persisted
	Key string // stable UUID, assigned at assembly

	Start Coordinate
	End   Coordinate

	Waypoints []Waypoint

	TotalDistanceKm  float64 // rounded to 2 decimals
	EstimatedMinutes int     // at the configured travel speed
	SafetyScore      float64 // mean waypoint score, rounded to 1 decimal

	Status RouteStatus

	Rerouted        bool
	RerouteReason   string
	PreviousRouteID int64 // superseded route's store ID, 0 if none

	TerrainType   string
	EngineVersion string
	CreatedAt     time.Time
	LastEvaluated time.Time
}

// MinWaypointSafety returns the lowest per-waypoint safety score, or
// 100 when the route has no waypoints.
func (r *Route) MinWaypointSafety() float64 {
	min := 100.0
	for _, wp := range r.Waypoints {
		if wp.SafetyScore < min {
			min = wp.SafetyScore
		}
	}
	return min
}

// Failed reports whether the route carries a failure status instead of
// a usable waypoint sequence.
func (r *Route) Failed() bool {
	return r.Status != RouteStatusComplete
}

package core

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/routeguard/model"
	"github.com/signalsfoundry/routeguard/timectrl"
)

// Reroute policy defaults.
const (
	DefaultCheckInterval   = 5 * time.Second
	DefaultSafetyThreshold = 75.0
	DefaultSafetyMarginDeg = 0.002
)

// RerouteReasonNewThreats is the human-readable reason stamped onto a
// superseding route.
const RerouteReasonNewThreats = "New threats detected"

// RouteFinder is the planning capability the policy invokes when a
// trigger fires. The Planner satisfies it.
type RouteFinder interface {
	FindOptimalRoute(ctx context.Context, start, end model.Coordinate, terrain TerrainContext, hazards []model.HazardRecord) (*model.Route, error)
}

// ReroutePolicy decides whether a previously delivered route must be
// recomputed against fresh hazard data.
//
// Checks are rate limited per route: each route key owns a limiter
// refilled once per CheckInterval, so frequent checks on one route
// cannot starve the others. Passing the gate consumes the budget even
// when no trigger condition ends up firing.
type ReroutePolicy struct {
	Finder RouteFinder
	Clock  timectrl.Clock

	CheckInterval   time.Duration
	SafetyThreshold float64
	SafetyMarginDeg float64

	mu    sync.Mutex
	gates map[string]*rate.Limiter
}

// NewReroutePolicy builds a policy with the default interval,
// threshold, and margin.
func NewReroutePolicy(finder RouteFinder, clock timectrl.Clock) *ReroutePolicy {
	if clock == nil {
		clock = timectrl.SystemClock{}
	}
	return &ReroutePolicy{
		Finder:          finder,
		Clock:           clock,
		CheckInterval:   DefaultCheckInterval,
		SafetyThreshold: DefaultSafetyThreshold,
		SafetyMarginDeg: DefaultSafetyMarginDeg,
		gates:           make(map[string]*rate.Limiter),
	}
}

// ShouldReroute reports whether the route must be recomputed. It
// returns false without evaluating anything when the route's rate
// gate has been consumed within the check interval.
func (p *ReroutePolicy) ShouldReroute(route *model.Route, hazards []model.HazardRecord) bool {
	if route == nil {
		return false
	}
	if !p.gateFor(route.Key).AllowN(p.Clock.Now(), 1) {
		return false
	}
	return p.nearHazard(route, hazards) || route.MinWaypointSafety() < p.SafetyThreshold
}

// CheckAndReroute runs the reroute decision and, when it fires,
// computes a fresh route marked as superseding the old one. When no
// trigger fires the original route is returned untouched. A failed
// recomputation is returned as the failed route itself; the stale
// route is never silently substituted for a successful reroute.
func (p *ReroutePolicy) CheckAndReroute(ctx context.Context, route *model.Route, terrain TerrainContext, hazards []model.HazardRecord) (*model.Route, error) {
	if !p.ShouldReroute(route, hazards) {
		return route, nil
	}
	route.LastEvaluated = p.Clock.Now()

	newRoute, err := p.Finder.FindOptimalRoute(ctx, route.Start, route.End, terrain, hazards)
	if err != nil {
		return nil, err
	}
	newRoute.Rerouted = true
	newRoute.RerouteReason = RerouteReasonNewThreats
	newRoute.PreviousRouteID = route.ID
	return newRoute, nil
}

// nearHazard reports whether any waypoint lies within the safety
// margin of any hazard. The margin is measured in raw degree space,
// not kilometres, so its ground footprint shrinks with latitude; the
// threshold travels with whatever produced the hazard coordinates.
func (p *ReroutePolicy) nearHazard(route *model.Route, hazards []model.HazardRecord) bool {
	for _, wp := range route.Waypoints {
		for _, hz := range hazards {
			if wp.Location.DegreeDistanceTo(hz.Location) < p.SafetyMarginDeg {
				return true
			}
		}
	}
	return false
}

func (p *ReroutePolicy) gateFor(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gates == nil {
		p.gates = make(map[string]*rate.Limiter)
	}
	lim, ok := p.gates[key]
	if !ok {
		interval := p.CheckInterval
		if interval <= 0 {
			interval = DefaultCheckInterval
		}
		lim = rate.NewLimiter(rate.Every(interval), 1)
		p.gates[key] = lim
	}
	return lim
}

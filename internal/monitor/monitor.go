// Package monitor periodically re-evaluates stored routes against the
// current hazard picture and persists any superseding routes.
package monitor

import (
	"context"
	"time"

	"github.com/signalsfoundry/routeguard/core"
	"github.com/signalsfoundry/routeguard/internal/logging"
	"github.com/signalsfoundry/routeguard/model"
	"github.com/signalsfoundry/routeguard/timectrl"
)

// DefaultMaxRouteAge bounds how old a stored route may be and still be
// swept. Routes older than this are assumed completed or abandoned.
const DefaultMaxRouteAge = time.Hour

// RouteChecker applies the reroute policy to one route. The core
// Planner satisfies it.
type RouteChecker interface {
	CheckAndReroute(ctx context.Context, route *model.Route, terrain core.TerrainContext, hazards []model.HazardRecord) (*model.Route, error)
}

// RouteStore is the persistence surface the monitor sweeps over.
type RouteStore interface {
	ListRecentRoutes(ctx context.Context, since time.Time) ([]*model.Route, error)
	ListHazards(ctx context.Context) ([]model.HazardRecord, error)
	SaveRoute(ctx context.Context, route *model.Route) error
	UpdateRoute(ctx context.Context, route *model.Route) error
}

// Monitor drives reroute checks across the active route set.
type Monitor struct {
	Checker RouteChecker
	Store   RouteStore
	Terrain core.TerrainContext

	MaxRouteAge time.Duration
	Clock       timectrl.Clock

	log logging.Logger
}

// New builds a monitor with the default route age cutoff.
func New(checker RouteChecker, st RouteStore, terrain core.TerrainContext, clock timectrl.Clock, log logging.Logger) *Monitor {
	if clock == nil {
		clock = timectrl.SystemClock{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Monitor{
		Checker:     checker,
		Store:       st,
		Terrain:     terrain,
		MaxRouteAge: DefaultMaxRouteAge,
		Clock:       clock,
		log:         log,
	}
}

// Sweep runs one pass: it snapshots the hazard set, re-evaluates every
// active route, and persists superseding routes. Per-route failures
// are logged and skipped so one bad route cannot stall the pass. The
// returned count is the number of routes superseded.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	ctx, log := logging.WithSweepLogger(ctx, m.log)

	hazards, err := m.Store.ListHazards(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := m.Clock.Now().Add(-m.MaxRouteAge)
	routes, err := m.Store.ListRecentRoutes(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	superseded := 0
	for _, route := range routes {
		if ctx.Err() != nil {
			return superseded, ctx.Err()
		}
		if route.Failed() {
			continue
		}

		result, err := m.Checker.CheckAndReroute(ctx, route, m.Terrain, hazards)
		if err != nil {
			log.Warn(ctx, "reroute check failed",
				logging.Int64("route_id", route.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		if result == route {
			continue
		}

		if err := m.Store.SaveRoute(ctx, result); err != nil {
			log.Error(ctx, "persist superseding route failed",
				logging.Int64("route_id", route.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		if err := m.Store.UpdateRoute(ctx, route); err != nil {
			log.Warn(ctx, "stamp superseded route failed",
				logging.Int64("route_id", route.ID),
				logging.String("error", err.Error()),
			)
		}
		superseded++
		log.Info(ctx, "route superseded",
			logging.Int64("route_id", route.ID),
			logging.Int64("new_route_id", result.ID),
			logging.String("reason", result.RerouteReason),
		)
	}

	log.Debug(ctx, "sweep finished",
		logging.Int("routes", len(routes)),
		logging.Int("hazards", len(hazards)),
		logging.Int("superseded", superseded),
	)
	return superseded, nil
}

// Listener adapts the monitor to a tick controller callback. Sweeps
// stop silently once ctx is cancelled.
func (m *Monitor) Listener(ctx context.Context) func(time.Time) {
	return func(time.Time) {
		if ctx.Err() != nil {
			return
		}
		if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
			m.log.Error(ctx, "sweep failed", logging.String("error", err.Error()))
		}
	}
}

package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/routeguard/internal/logging"
	"github.com/signalsfoundry/routeguard/model"
	"github.com/signalsfoundry/routeguard/timectrl"
)

// PlannerMetrics is the instrumentation hook the planner drives. The
// observability package provides the Prometheus-backed implementation;
// the planner itself stays import-free of any metrics library.
type PlannerMetrics interface {
	ObserveRouteCalculation(status model.RouteStatus, duration time.Duration, nodesExpanded int, safetyScore float64)
	RecordRerouteCheck(result string)
}

// Reroute check result labels reported to PlannerMetrics.
const (
	RerouteResultKept     = "kept"
	RerouteResultRerouted = "rerouted"
)

// Planner is the engine facade: it owns the scorer, router, assembler,
// and reroute policy, and exposes the three operations the calling
// layer consumes.
type Planner struct {
	Scorer    *SafetyScorer
	Router    *Router
	Assembler *Assembler
	Policy    *ReroutePolicy

	log     logging.Logger
	metrics PlannerMetrics
	tracer  trace.Tracer
}

// Option customises a Planner at construction time.
type Option func(*Planner)

// WithMetricsRecorder wires a metrics sink into the planner.
func WithMetricsRecorder(m PlannerMetrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// WithClock overrides the reroute policy's time source.
func WithClock(clock timectrl.Clock) Option {
	return func(p *Planner) { p.Policy.Clock = clock }
}

// WithRouterParams overrides the search grid step, expansion budget,
// and bounding-box margin.
func WithRouterParams(gridStepDeg float64, maxExpansions int, boundsMarginDeg float64) Option {
	return func(p *Planner) {
		p.Router.GridStepDeg = gridStepDeg
		p.Router.MaxExpansions = maxExpansions
		p.Router.BoundsMarginDeg = boundsMarginDeg
	}
}

// WithTravelSpeed overrides the assumed travel speed in km/h.
func WithTravelSpeed(kmh float64) Option {
	return func(p *Planner) { p.Assembler.TravelSpeedKm = kmh }
}

// WithRerouteParams overrides the reroute check interval, safety
// threshold, and degree-space safety margin.
func WithRerouteParams(interval time.Duration, threshold, marginDeg float64) Option {
	return func(p *Planner) {
		p.Policy.CheckInterval = interval
		p.Policy.SafetyThreshold = threshold
		p.Policy.SafetyMarginDeg = marginDeg
	}
}

// NewPlanner assembles a planner around the given scorer.
func NewPlanner(scorer *SafetyScorer, log logging.Logger, opts ...Option) *Planner {
	if log == nil {
		log = logging.Noop()
	}
	p := &Planner{
		Scorer:    scorer,
		Router:    NewRouter(scorer),
		Assembler: NewAssembler(scorer),
		log:       log,
		tracer:    otel.Tracer("routeguard/core"),
	}
	p.Policy = NewReroutePolicy(p, timectrl.SystemClock{})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FindOptimalRoute computes a route between two coordinates against
// the supplied terrain context and hazard snapshot. Invalid endpoints
// fail fast with ErrInvalidInput; an unreachable or over-budget search
// returns a route carrying the corresponding failure status.
func (p *Planner) FindOptimalRoute(ctx context.Context, start, end model.Coordinate, terrain TerrainContext, hazards []model.HazardRecord) (*model.Route, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.FindOptimalRoute",
		trace.WithAttributes(
			attribute.Float64("route.start_lat", start.Lat),
			attribute.Float64("route.start_lng", start.Lng),
			attribute.Float64("route.end_lat", end.Lat),
			attribute.Float64("route.end_lng", end.Lng),
			attribute.Int("route.hazards", len(hazards)),
		))
	defer span.End()

	if err := validateEndpoints(start, end); err != nil {
		span.RecordError(err)
		return nil, err
	}

	began := time.Now()
	path, stats, outcome, err := p.Router.FindPath(ctx, start, end, terrain, hazards)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var route *model.Route
	switch outcome {
	case OutcomeFound:
		route = p.Assembler.Assemble(path, terrain, hazards)
	case OutcomeBudgetExceeded:
		route = p.Assembler.FailedRoute(start, end, terrain, model.RouteStatusBudgetExceeded)
	default:
		route = p.Assembler.FailedRoute(start, end, terrain, model.RouteStatusNoPath)
	}

	elapsed := time.Since(began)
	span.SetAttributes(
		attribute.String("route.status", string(route.Status)),
		attribute.Int("route.nodes_expanded", stats.Expanded),
	)
	if p.metrics != nil {
		p.metrics.ObserveRouteCalculation(route.Status, elapsed, stats.Expanded, route.SafetyScore)
	}

	p.log.Info(ctx, "route calculation finished",
		logging.String("status", string(route.Status)),
		logging.Int("waypoints", len(route.Waypoints)),
		logging.Int("nodes_expanded", stats.Expanded),
		logging.Float64("distance_km", route.TotalDistanceKm),
		logging.Float64("safety_score", route.SafetyScore),
		logging.Any("duration", elapsed),
	)
	return route, nil
}

// CheckAndReroute applies the reroute policy to an existing route. It
// returns the original route when the rate gate holds or no trigger
// fires, and a fresh superseding route otherwise.
func (p *Planner) CheckAndReroute(ctx context.Context, route *model.Route, terrain TerrainContext, hazards []model.HazardRecord) (*model.Route, error) {
	ctx, span := p.tracer.Start(ctx, "Planner.CheckAndReroute",
		trace.WithAttributes(attribute.Int("route.hazards", len(hazards))))
	defer span.End()

	result, err := p.Policy.CheckAndReroute(ctx, route, terrain, hazards)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	label := RerouteResultKept
	if result != route {
		label = RerouteResultRerouted
		p.log.Info(ctx, "route superseded",
			logging.Int("previous_route_id", int(route.ID)),
			logging.String("reason", result.RerouteReason),
			logging.String("status", string(result.Status)),
		)
	}
	span.SetAttributes(attribute.String("reroute.result", label))
	if p.metrics != nil {
		p.metrics.RecordRerouteCheck(label)
	}
	return result, nil
}

// UpdateWeights feeds a feedback batch into the scorer's perturbation
// hook. It is safe to call concurrently with route calculations.
func (p *Planner) UpdateWeights(ctx context.Context, examples []model.TrainingExample) {
	_, span := p.tracer.Start(ctx, "Planner.UpdateWeights",
		trace.WithAttributes(attribute.Int("training.batch_size", len(examples))))
	defer span.End()

	p.Scorer.UpdateWeights(examples)
	p.log.Info(ctx, "scorer weights perturbed", logging.Int("batch_size", len(examples)))
}

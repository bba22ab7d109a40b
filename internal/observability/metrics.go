package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/routeguard/model"
)

// RoutingCollector bundles the Prometheus metrics for the planning
// engine and provides a ready-to-serve /metrics handler.
type RoutingCollector struct {
	gatherer prometheus.Gatherer

	RouteCalculations *prometheus.CounterVec
	RouteDurations    *prometheus.HistogramVec
	NodesExpanded     prometheus.Histogram
	RouteSafetyScores prometheus.Histogram
	RerouteChecks     *prometheus.CounterVec

	StoreRoutes  prometheus.Gauge
	StoreHazards prometheus.Gauge
}

// NewRoutingCollector registers the routing metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewRoutingCollector(reg prometheus.Registerer) (*RoutingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_calculations_total",
		Help: "Total number of route calculations, labeled by final route status.",
	}, []string{"status"})
	calculations, err := registerCounterVec(reg, calculations, "route_calculations_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "route_calculation_duration_seconds",
		Help:    "Route calculation latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})
	durations, err = registerHistogramVec(reg, durations, "route_calculation_duration_seconds")
	if err != nil {
		return nil, err
	}

	expanded, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "router_nodes_expanded",
		Help:    "Number of search nodes expanded per route calculation.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 10),
	}), "router_nodes_expanded")
	if err != nil {
		return nil, err
	}

	scores, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_safety_score",
		Help:    "Aggregate safety score of completed routes (0-100).",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	}), "route_safety_score")
	if err != nil {
		return nil, err
	}

	rerouteChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reroute_checks_total",
		Help: "Total number of reroute checks, labeled by result (kept or rerouted).",
	}, []string{"result"})
	rerouteChecks, err = registerCounterVec(reg, rerouteChecks, "reroute_checks_total")
	if err != nil {
		return nil, err
	}

	routes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_routes",
		Help: "Current number of persisted routes.",
	}), "store_routes")
	if err != nil {
		return nil, err
	}
	hazards, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_hazards",
		Help: "Current number of persisted hazard reports.",
	}), "store_hazards")
	if err != nil {
		return nil, err
	}

	return &RoutingCollector{
		gatherer:          gatherer,
		RouteCalculations: calculations,
		RouteDurations:    durations,
		NodesExpanded:     expanded,
		RouteSafetyScores: scores,
		RerouteChecks:     rerouteChecks,
		StoreRoutes:       routes,
		StoreHazards:      hazards,
	}, nil
}

// ObserveRouteCalculation records one finished route calculation.
// Satisfies the planner's metrics hook.
func (c *RoutingCollector) ObserveRouteCalculation(status model.RouteStatus, duration time.Duration, nodesExpanded int, safetyScore float64) {
	if c == nil {
		return
	}
	label := string(status)
	if c.RouteCalculations != nil {
		c.RouteCalculations.WithLabelValues(label).Inc()
	}
	if c.RouteDurations != nil {
		c.RouteDurations.WithLabelValues(label).Observe(duration.Seconds())
	}
	if c.NodesExpanded != nil {
		c.NodesExpanded.Observe(float64(nodesExpanded))
	}
	if c.RouteSafetyScores != nil && status == model.RouteStatusComplete {
		c.RouteSafetyScores.Observe(safetyScore)
	}
}

// RecordRerouteCheck records the result of one reroute check.
// Satisfies the planner's metrics hook.
func (c *RoutingCollector) RecordRerouteCheck(result string) {
	if c == nil || c.RerouteChecks == nil {
		return
	}
	c.RerouteChecks.WithLabelValues(result).Inc()
}

// SetStoreCounts satisfies the store's metrics recorder interface so
// gauge values track the persisted route and hazard counts.
func (c *RoutingCollector) SetStoreCounts(routes, hazards int) {
	if c == nil {
		return
	}
	if c.StoreRoutes != nil {
		c.StoreRoutes.Set(float64(routes))
	}
	if c.StoreHazards != nil {
		c.StoreHazards.Set(float64(hazards))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RoutingCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

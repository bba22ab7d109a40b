package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/routeguard/core"
	"github.com/signalsfoundry/routeguard/internal/config"
	"github.com/signalsfoundry/routeguard/internal/logging"
	"github.com/signalsfoundry/routeguard/internal/monitor"
	"github.com/signalsfoundry/routeguard/internal/observability"
	"github.com/signalsfoundry/routeguard/internal/store"
	"github.com/signalsfoundry/routeguard/model"
	"github.com/signalsfoundry/routeguard/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file (defaults apply when empty)")
	startLat := flag.Float64("start-lat", 10.0, "Route start latitude")
	startLng := flag.Float64("start-lng", 10.0, "Route start longitude")
	endLat := flag.Float64("end-lat", 10.01, "Route end latitude")
	endLng := flag.Float64("end-lng", 10.01, "Route end longitude")
	duration := flag.Duration("duration", 60*time.Second, "How long the threat monitor runs")
	accelerated := flag.Bool("accelerated", false, "Run monitor sweeps back-to-back instead of on the wall clock")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	terrainType := flag.String("terrain", "urban", "Terrain type label stamped onto routes")
	var hazardSpecs hazardFlags
	flag.Var(&hazardSpecs, "hazard", "Hazard as lat,lng[,severity]; repeatable")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	collector, err := observability.NewRoutingCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.Metrics.Addr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	st, err := store.Open(ctx, cfg.Store.Path, collector)
	if err != nil {
		log.Error(ctx, "failed to open store",
			logging.String("path", cfg.Store.Path),
			logging.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer st.Close()

	for _, hz := range hazardSpecs {
		hz := hz
		hz.CreatedAt = time.Now().UTC()
		if err := st.AddHazard(ctx, &hz); err != nil {
			log.Error(ctx, "failed to record hazard", logging.String("error", err.Error()))
			os.Exit(1)
		}
	}
	hazards, err := st.ListHazards(ctx)
	if err != nil {
		log.Error(ctx, "failed to list hazards", logging.String("error", err.Error()))
		os.Exit(1)
	}

	scorer, err := cfg.BuildScorer(core.NewFeatureExtractor(nil))
	if err != nil {
		log.Error(ctx, "failed to build scorer", logging.String("error", err.Error()))
		os.Exit(1)
	}

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTickController(time.Now().UTC(), cfg.SweepInterval(), mode)

	planner := core.NewPlanner(scorer, log,
		core.WithMetricsRecorder(collector),
		core.WithClock(tc),
		core.WithRouterParams(cfg.Router.GridStepDeg, cfg.Router.MaxExpansions, cfg.Router.BoundsMarginDeg),
		core.WithTravelSpeed(cfg.Travel.SpeedKmh),
		core.WithRerouteParams(cfg.CheckInterval(), cfg.Reroute.SafetyThreshold, cfg.Reroute.SafetyMarginDeg),
	)

	terrain := core.FlatTerrain{Type: *terrainType}
	start := model.Coordinate{Lat: *startLat, Lng: *startLng}
	end := model.Coordinate{Lat: *endLat, Lng: *endLng}

	route, err := planner.FindOptimalRoute(ctx, start, end, terrain, hazards)
	if err != nil {
		log.Error(ctx, "route calculation failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := st.SaveRoute(ctx, route); err != nil {
		log.Error(ctx, "failed to persist route", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "initial route persisted",
		logging.Int64("route_id", route.ID),
		logging.String("key", route.Key),
		logging.String("status", string(route.Status)),
		logging.Float64("distance_km", route.TotalDistanceKm),
		logging.Float64("safety_score", route.SafetyScore),
	)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mon := monitor.New(planner, st, terrain, tc, log)
	mon.MaxRouteAge = cfg.MaxRouteAge()
	tc.AddListener(mon.Listener(stopCtx))

	log.Info(ctx, "starting threat monitor",
		logging.Any("duration", *duration),
		logging.Any("sweep_interval", cfg.SweepInterval()),
		logging.Int("hazards", len(hazards)),
	)
	done := tc.Start(*duration)

	select {
	case <-done:
	case <-stopCtx.Done():
		log.Info(ctx, "interrupted; shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.RoutingCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// hazardFlags parses repeated -hazard lat,lng[,severity] flags.
type hazardFlags []model.HazardRecord

func (h *hazardFlags) String() string {
	parts := make([]string, 0, len(*h))
	for _, hz := range *h {
		parts = append(parts, hz.Location.String())
	}
	return strings.Join(parts, "; ")
}

func (h *hazardFlags) Set(value string) error {
	fields := strings.Split(value, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return fmt.Errorf("hazard %q: want lat,lng[,severity]", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return err
	}
	severity := model.SeverityMedium
	if len(fields) == 3 {
		severity = model.Severity(strings.TrimSpace(fields[2]))
	}
	*h = append(*h, model.HazardRecord{
		Location: model.Coordinate{Lat: lat, Lng: lng},
		Severity: severity,
	})
	return nil
}

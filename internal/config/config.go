// Package config loads the planner configuration from TOML, applying
// defaults for anything the file leaves unset.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/signalsfoundry/routeguard/core"
)

// Config is the complete routeguard configuration.
type Config struct {
	Router  RouterConfig  `toml:"router"`
	Scorer  ScorerConfig  `toml:"scorer"`
	Reroute RerouteConfig `toml:"reroute"`
	Travel  TravelConfig  `toml:"travel"`
	Store   StoreConfig   `toml:"store"`
	Monitor MonitorConfig `toml:"monitor"`
	Metrics MetricsConfig `toml:"metrics"`
	Logging LoggingConfig `toml:"logging"`
}

// RouterConfig bounds the grid search.
type RouterConfig struct {
	GridStepDeg     float64 `toml:"grid_step_deg"`
	MaxExpansions   int     `toml:"max_expansions"`
	BoundsMarginDeg float64 `toml:"bounds_margin_deg"`
}

// ScorerConfig controls the safety scorer's weights. When the weight
// matrices are present they must have the exact shapes the scorer
// expects (8x4 terrain, 6x3 hazard); otherwise the weights are drawn
// deterministically from Seed.
type ScorerConfig struct {
	Seed           int64       `toml:"seed"`
	TerrainWeights [][]float64 `toml:"terrain_weights"`
	HazardWeights  [][]float64 `toml:"hazard_weights"`
}

// RerouteConfig controls the reroute policy.
type RerouteConfig struct {
	CheckIntervalSeconds float64 `toml:"check_interval_seconds"`
	SafetyThreshold      float64 `toml:"safety_threshold"`
	SafetyMarginDeg      float64 `toml:"safety_margin_deg"`
}

// TravelConfig holds route duration assumptions.
type TravelConfig struct {
	SpeedKmh float64 `toml:"speed_kmh"`
}

// StoreConfig locates the route/hazard database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// MonitorConfig controls the background threat monitor.
type MonitorConfig struct {
	SweepIntervalSeconds float64 `toml:"sweep_interval_seconds"`
	MaxRouteAgeMinutes   float64 `toml:"max_route_age_minutes"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// LoggingConfig mirrors the logging package's Config.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Router: RouterConfig{
			GridStepDeg:     core.DefaultGridStepDeg,
			MaxExpansions:   core.DefaultMaxExpansions,
			BoundsMarginDeg: core.DefaultBoundsMarginDeg,
		},
		Scorer: ScorerConfig{
			Seed: 1,
		},
		Reroute: RerouteConfig{
			CheckIntervalSeconds: core.DefaultCheckInterval.Seconds(),
			SafetyThreshold:      core.DefaultSafetyThreshold,
			SafetyMarginDeg:      core.DefaultSafetyMarginDeg,
		},
		Travel: TravelConfig{
			SpeedKmh: core.DefaultTravelSpeedKmh,
		},
		Store: StoreConfig{
			Path: "routeguard.db",
		},
		Monitor: MonitorConfig{
			SweepIntervalSeconds: 10,
			MaxRouteAgeMinutes:   60,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Router.GridStepDeg <= 0 {
		return fmt.Errorf("router.grid_step_deg must be positive, got %v", c.Router.GridStepDeg)
	}
	if c.Router.MaxExpansions <= 0 {
		return fmt.Errorf("router.max_expansions must be positive, got %d", c.Router.MaxExpansions)
	}
	if c.Router.BoundsMarginDeg <= 0 {
		return fmt.Errorf("router.bounds_margin_deg must be positive, got %v", c.Router.BoundsMarginDeg)
	}
	if c.Reroute.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("reroute.check_interval_seconds must be positive, got %v", c.Reroute.CheckIntervalSeconds)
	}
	if c.Reroute.SafetyThreshold < 0 || c.Reroute.SafetyThreshold > 100 {
		return fmt.Errorf("reroute.safety_threshold must be in [0, 100], got %v", c.Reroute.SafetyThreshold)
	}
	if c.Reroute.SafetyMarginDeg <= 0 {
		return fmt.Errorf("reroute.safety_margin_deg must be positive, got %v", c.Reroute.SafetyMarginDeg)
	}
	if c.Travel.SpeedKmh <= 0 {
		return fmt.Errorf("travel.speed_kmh must be positive, got %v", c.Travel.SpeedKmh)
	}
	if c.Monitor.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("monitor.sweep_interval_seconds must be positive, got %v", c.Monitor.SweepIntervalSeconds)
	}
	if len(c.Scorer.TerrainWeights) > 0 || len(c.Scorer.HazardWeights) > 0 {
		if _, _, err := core.ParseWeightRows(c.Scorer.TerrainWeights, c.Scorer.HazardWeights); err != nil {
			return fmt.Errorf("scorer weights: %w", err)
		}
	}
	return nil
}

// CheckInterval returns the reroute check interval as a duration.
func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.Reroute.CheckIntervalSeconds * float64(time.Second))
}

// SweepInterval returns the monitor sweep interval as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Monitor.SweepIntervalSeconds * float64(time.Second))
}

// MaxRouteAge returns how old a stored route may grow before the
// monitor stops evaluating it.
func (c Config) MaxRouteAge() time.Duration {
	return time.Duration(c.Monitor.MaxRouteAgeMinutes * float64(time.Minute))
}

// BuildScorer constructs the safety scorer this config describes.
func (c Config) BuildScorer(extractor *core.FeatureExtractor) (*core.SafetyScorer, error) {
	if len(c.Scorer.TerrainWeights) == 0 && len(c.Scorer.HazardWeights) == 0 {
		return core.NewSafetyScorer(extractor, c.Scorer.Seed), nil
	}
	tw, hw, err := core.ParseWeightRows(c.Scorer.TerrainWeights, c.Scorer.HazardWeights)
	if err != nil {
		return nil, err
	}
	return core.NewSafetyScorerWithWeights(extractor, tw, hw, c.Scorer.Seed), nil
}

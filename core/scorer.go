package core

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/signalsfoundry/routeguard/model"
)

// Projection widths of the two linear stages. Together with the
// feature counts they fix the weight matrix shapes: 8x4 terrain,
// 6x3 hazard.
const (
	terrainProjection = 4
	hazardProjection  = 3
)

// maxPerturbationSteps bounds how many perturbation passes a single
// UpdateWeights batch may apply, regardless of batch size.
const maxPerturbationSteps = 5

const perturbationRate = 0.01

// TerrainWeights and HazardWeights are the scorer's two linear maps.
type (
	TerrainWeights [TerrainFeatureCount][terrainProjection]float64
	HazardWeights  [HazardFeatureCount][hazardProjection]float64
)

// SafetyScorer maps feature vectors to a safety score in [0, 100].
//
// Scoring is a pure function of the inputs and the current weights.
// The weights are shared read-mostly state: Score takes a read lock,
// UpdateWeights is the only writer. The hazard stage is weighted
// higher than the terrain stage so that reported hazards dominate
// static terrain when the two disagree.
type SafetyScorer struct {
	extractor *FeatureExtractor

	mu      sync.RWMutex
	terrain TerrainWeights
	hazard  HazardWeights
	rng     *rand.Rand // guarded by mu, used only by UpdateWeights
}

const (
	terrainBlend = 0.4
	hazardBlend  = 0.6
)

// NewSafetyScorer builds a scorer with weights drawn from a normal
// distribution seeded by seed, so two scorers built with the same seed
// agree everywhere.
func NewSafetyScorer(extractor *FeatureExtractor, seed int64) *SafetyScorer {
	if extractor == nil {
		extractor = NewFeatureExtractor(nil)
	}
	rng := rand.New(rand.NewSource(seed))

	s := &SafetyScorer{
		extractor: extractor,
		rng:       rng,
	}
	for i := range s.terrain {
		for j := range s.terrain[i] {
			s.terrain[i][j] = rng.NormFloat64()
		}
	}
	for i := range s.hazard {
		for j := range s.hazard[i] {
			s.hazard[i][j] = rng.NormFloat64()
		}
	}
	return s
}

// NewSafetyScorerWithWeights builds a scorer from explicit weight
// matrices, typically loaded from configuration.
func NewSafetyScorerWithWeights(extractor *FeatureExtractor, terrain TerrainWeights, hazard HazardWeights, seed int64) *SafetyScorer {
	if extractor == nil {
		extractor = NewFeatureExtractor(nil)
	}
	return &SafetyScorer{
		extractor: extractor,
		terrain:   terrain,
		hazard:    hazard,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Score returns the safety score for a coordinate in [0, 100], where
// 100 is safest. It is safe for concurrent use.
func (s *SafetyScorer) Score(c model.Coordinate, terrain TerrainContext, hazards []model.HazardRecord) float64 {
	tf := s.extractor.TerrainFeatures(c, terrain)
	hf := s.extractor.HazardFeatures(c, hazards)

	s.mu.RLock()
	terrainScalar := projectTerrain(tf, s.terrain)
	hazardScalar := projectHazard(hf, s.hazard)
	s.mu.RUnlock()

	combined := terrainScalar*terrainBlend + hazardScalar*hazardBlend
	return (math.Tanh(combined) + 1) * 50
}

// UpdateWeights perturbs both weight matrices once per training
// example, capped at maxPerturbationSteps passes. It exists as an
// integration point for a future trainer; callers must not expect the
// scorer to improve monotonically, only that concurrent Score calls
// always observe a consistent weight set.
func (s *SafetyScorer) UpdateWeights(examples []model.TrainingExample) {
	steps := len(examples)
	if steps == 0 {
		return
	}
	if steps > maxPerturbationSteps {
		steps = maxPerturbationSteps
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for step := 0; step < steps; step++ {
		for i := range s.terrain {
			for j := range s.terrain[i] {
				s.terrain[i][j] += perturbationRate * s.rng.NormFloat64()
			}
		}
		for i := range s.hazard {
			for j := range s.hazard[i] {
				s.hazard[i][j] += perturbationRate * s.rng.NormFloat64()
			}
		}
	}
}

// Weights returns a snapshot of the current weight matrices, for
// exporting to configuration.
func (s *SafetyScorer) Weights() (TerrainWeights, HazardWeights) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terrain, s.hazard
}

// SetWeights replaces both weight matrices atomically with respect to
// concurrent Score calls.
func (s *SafetyScorer) SetWeights(terrain TerrainWeights, hazard HazardWeights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terrain = terrain
	s.hazard = hazard
}

func projectTerrain(f TerrainFeatures, w TerrainWeights) float64 {
	sum := 0.0
	for j := 0; j < terrainProjection; j++ {
		dot := 0.0
		for i := 0; i < TerrainFeatureCount; i++ {
			dot += f[i] * w[i][j]
		}
		sum += dot
	}
	return sum / terrainProjection
}

func projectHazard(f HazardFeatures, w HazardWeights) float64 {
	sum := 0.0
	for j := 0; j < hazardProjection; j++ {
		dot := 0.0
		for i := 0; i < HazardFeatureCount; i++ {
			dot += f[i] * w[i][j]
		}
		sum += dot
	}
	return sum / hazardProjection
}

// ParseWeightRows converts a row-major [][]float64 (as decoded from a
// config file) into typed weight matrices, validating the shape.
func ParseWeightRows(terrainRows, hazardRows [][]float64) (TerrainWeights, HazardWeights, error) {
	var tw TerrainWeights
	var hw HazardWeights

	if len(terrainRows) != TerrainFeatureCount {
		return tw, hw, fmt.Errorf("terrain weights: got %d rows, want %d", len(terrainRows), TerrainFeatureCount)
	}
	for i, row := range terrainRows {
		if len(row) != terrainProjection {
			return tw, hw, fmt.Errorf("terrain weights row %d: got %d columns, want %d", i, len(row), terrainProjection)
		}
		copy(tw[i][:], row)
	}

	if len(hazardRows) != HazardFeatureCount {
		return tw, hw, fmt.Errorf("hazard weights: got %d rows, want %d", len(hazardRows), HazardFeatureCount)
	}
	for i, row := range hazardRows {
		if len(row) != hazardProjection {
			return tw, hw, fmt.Errorf("hazard weights row %d: got %d columns, want %d", i, len(row), hazardProjection)
		}
		copy(hw[i][:], row)
	}

	return tw, hw, nil
}

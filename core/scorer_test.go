package core

import (
	"testing"

	"github.com/signalsfoundry/routeguard/model"
)

func TestScoreRange(t *testing.T) {
	scorer := NewSafetyScorer(fixedExtractor(), 42)
	terrain := FlatTerrain{}

	coords := []model.Coordinate{
		{Lat: 10, Lng: 10},
		{Lat: -33.9, Lng: 151.2},
		{Lat: 0, Lng: 0},
	}
	hazardSets := [][]model.HazardRecord{
		nil,
		{hazardAt(10, 10)},
		{hazardAt(10.001, 10.001), hazardAt(9.999, 9.999), hazardAt(10.01, 10)},
	}

	for _, c := range coords {
		for _, hazards := range hazardSets {
			score := scorer.Score(c, terrain, hazards)
			if score < 0 || score > 100 {
				t.Errorf("Score(%v, %d hazards) = %v, want in [0, 100]", c, len(hazards), score)
			}
		}
	}
}

func TestScorerDeterministicBySeed(t *testing.T) {
	a := NewSafetyScorer(NewFeatureExtractor(nil), 7)
	b := NewSafetyScorer(NewFeatureExtractor(nil), 7)

	c := model.Coordinate{Lat: 10.123, Lng: 20.456}
	hazards := []model.HazardRecord{hazardAt(10.125, 20.455)}

	if sa, sb := a.Score(c, FlatTerrain{}, hazards), b.Score(c, FlatTerrain{}, hazards); sa != sb {
		t.Errorf("same seed produced different scores: %v vs %v", sa, sb)
	}

	other := NewSafetyScorer(NewFeatureExtractor(nil), 8)
	if sa, so := a.Score(c, FlatTerrain{}, hazards), other.Score(c, FlatTerrain{}, hazards); sa == so {
		t.Errorf("different seeds produced identical score %v; weights not seed-dependent", sa)
	}
}

func TestUpdateWeights(t *testing.T) {
	scorer := NewSafetyScorer(fixedExtractor(), 1)
	before, beforeHz := scorer.Weights()

	scorer.UpdateWeights(nil)
	if after, afterHz := scorer.Weights(); after != before || afterHz != beforeHz {
		t.Error("empty batch changed weights")
	}

	scorer.UpdateWeights([]model.TrainingExample{{RouteID: 1, Rating: 4}})
	after, afterHz := scorer.Weights()
	if after == before && afterHz == beforeHz {
		t.Error("non-empty batch left weights unchanged")
	}
}

func TestUpdateWeightsCapped(t *testing.T) {
	// Two scorers with the same seed: one fed a huge batch, one fed
	// exactly the cap. The perturbations must be identical.
	a := NewSafetyScorer(fixedExtractor(), 3)
	b := NewSafetyScorer(fixedExtractor(), 3)

	big := make([]model.TrainingExample, 50)
	capped := make([]model.TrainingExample, maxPerturbationSteps)
	a.UpdateWeights(big)
	b.UpdateWeights(capped)

	at, ah := a.Weights()
	bt, bh := b.Weights()
	if at != bt || ah != bh {
		t.Error("oversized batch applied more perturbation steps than the cap")
	}
}

func TestSetWeights(t *testing.T) {
	scorer := NewSafetyScorer(fixedExtractor(), 1)

	var tw TerrainWeights
	var hw HazardWeights
	tw[0][0] = 1.5
	hw[2][1] = -0.75

	scorer.SetWeights(tw, hw)
	gotT, gotH := scorer.Weights()
	if gotT != tw || gotH != hw {
		t.Error("SetWeights/Weights round trip lost data")
	}
}

func TestParseWeightRows(t *testing.T) {
	terrainRows := make([][]float64, TerrainFeatureCount)
	for i := range terrainRows {
		terrainRows[i] = make([]float64, terrainProjection)
		terrainRows[i][0] = float64(i)
	}
	hazardRows := make([][]float64, HazardFeatureCount)
	for i := range hazardRows {
		hazardRows[i] = make([]float64, hazardProjection)
	}

	tw, _, err := ParseWeightRows(terrainRows, hazardRows)
	if err != nil {
		t.Fatalf("ParseWeightRows: %v", err)
	}
	if tw[3][0] != 3 {
		t.Errorf("terrain weight [3][0] = %v, want 3", tw[3][0])
	}

	if _, _, err := ParseWeightRows(terrainRows[:4], hazardRows); err == nil {
		t.Error("short terrain matrix accepted")
	}

	badHazard := make([][]float64, HazardFeatureCount)
	for i := range badHazard {
		badHazard[i] = make([]float64, hazardProjection+1)
	}
	if _, _, err := ParseWeightRows(terrainRows, badHazard); err == nil {
		t.Error("wide hazard rows accepted")
	}
}

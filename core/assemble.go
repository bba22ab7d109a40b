package core

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/routeguard/model"
)

// DefaultTravelSpeedKmh is the assumed ground speed used to estimate
// route duration when the caller does not configure one.
const DefaultTravelSpeedKmh = 5.0

// EngineVersion identifies the planning engine revision stamped onto
// every assembled route.
const EngineVersion = "1.0.0"

// Assembler turns a raw coordinate path into the externally visible
// route: labelled waypoints, cumulative distance, estimated duration,
// and the aggregate safety score.
type Assembler struct {
	Scorer        *SafetyScorer
	TravelSpeedKm float64 // km/h

	now func() time.Time
}

// NewAssembler builds an Assembler using the wall clock and the
// default travel speed.
func NewAssembler(scorer *SafetyScorer) *Assembler {
	return &Assembler{
		Scorer:        scorer,
		TravelSpeedKm: DefaultTravelSpeedKmh,
		now:           time.Now,
	}
}

// Assemble builds a Route from a path in travel order. The first
// element is labelled "Starting Point", the last "Destination", and
// interior points "Waypoint N" counted over the whole path.
func (a *Assembler) Assemble(path []model.Coordinate, terrain TerrainContext, hazards []model.HazardRecord) *model.Route {
	now := a.now()

	route := &model.Route{
		Key:           uuid.NewString(),
		Status:        model.RouteStatusComplete,
		EngineVersion: EngineVersion,
		CreatedAt:     now,
		LastEvaluated: now,
	}
	if terrain != nil {
		route.TerrainType = terrain.TerrainType()
	}
	if len(path) == 0 {
		route.Status = model.RouteStatusNoPath
		return route
	}

	route.Start = path[0]
	route.End = path[len(path)-1]
	route.Waypoints = make([]model.Waypoint, 0, len(path))

	totalKm := 0.0
	scoreSum := 0.0
	for i, point := range path {
		if i > 0 {
			totalKm += Haversine(path[i-1], point)
		}

		label := fmt.Sprintf("Waypoint %d", i+1)
		if i == 0 {
			label = "Starting Point"
		} else if i == len(path)-1 {
			label = "Destination"
		}

		var elevation float64
		if terrain != nil {
			elevation = terrain.ElevationAt(point)
		}
		score := a.Scorer.Score(point, terrain, hazards)
		scoreSum += score

		route.Waypoints = append(route.Waypoints, model.Waypoint{
			Location:    point,
			Label:       label,
			ElevationM:  elevation,
			SafetyScore: score,
		})
	}

	speed := a.TravelSpeedKm
	if speed <= 0 {
		speed = DefaultTravelSpeedKmh
	}

	route.TotalDistanceKm = math.Round(totalKm*100) / 100
	route.EstimatedMinutes = int(math.Round(totalKm / speed * 60))
	route.SafetyScore = math.Round(scoreSum/float64(len(path))*10) / 10
	return route
}

// FailedRoute builds the empty-route representation of a search that
// did not produce a path: no waypoints, zero distance and duration,
// zero safety score, and the status explaining why.
func (a *Assembler) FailedRoute(start, end model.Coordinate, terrain TerrainContext, status model.RouteStatus) *model.Route {
	now := a.now()
	route := &model.Route{
		Key:           uuid.NewString(),
		Start:         start,
		End:           end,
		Status:        status,
		EngineVersion: EngineVersion,
		CreatedAt:     now,
		LastEvaluated: now,
	}
	if terrain != nil {
		route.TerrainType = terrain.TerrainType()
	}
	return route
}

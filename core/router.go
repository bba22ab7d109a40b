package core

import (
	"container/heap"
	"context"
	"math"

	"github.com/signalsfoundry/routeguard/model"
)

// Default search parameters. The grid step approximates free movement
// when no road graph exists; the expansion cap and bounding-box margin
// turn an unreachable destination into a bounded, reportable failure
// instead of an endless frontier.
const (
	DefaultGridStepDeg     = 0.001
	DefaultMaxExpansions   = 200000
	DefaultBoundsMarginDeg = 0.05
)

// SearchOutcome classifies how a single search ended.
type SearchOutcome int

const (
	OutcomeFound SearchOutcome = iota
	OutcomeNoPath
	OutcomeBudgetExceeded
)

// SearchStats carries per-invocation instrumentation out of the
// router so the caller can feed metrics without the router knowing
// about Prometheus.
type SearchStats struct {
	Expanded     int
	ScoredPoints int
}

// Router runs a safety-weighted best-first search over an implicit
// 8-connected coordinate grid. Edge cost is great-circle distance
// scaled by a factor in [1, 3] derived from the neighbour's safety
// score, so the search drifts away from hazardous areas at the price
// of strict distance optimality.
//
// A Router holds no per-search state and may be used from multiple
// goroutines concurrently.
type Router struct {
	Scorer *SafetyScorer

	GridStepDeg     float64
	MaxExpansions   int
	BoundsMarginDeg float64
}

// NewRouter builds a Router with default search parameters.
func NewRouter(scorer *SafetyScorer) *Router {
	return &Router{
		Scorer:          scorer,
		GridStepDeg:     DefaultGridStepDeg,
		MaxExpansions:   DefaultMaxExpansions,
		BoundsMarginDeg: DefaultBoundsMarginDeg,
	}
}

// safetyFactor converts a safety score in [0, 100] into the edge cost
// multiplier: 1.0 for a perfectly safe cell, 3.0 for the most
// dangerous one.
func safetyFactor(score float64) float64 {
	return 3.0 - score/50
}

// gridKey identifies a search node by its grid offset from the start
// coordinate. Using integer offsets as map keys avoids the float
// drift that raw coordinates accumulate over many steps.
type gridKey struct {
	Lat int32
	Lng int32
}

// eight grid directions, lat/lng step pairs
var gridDirections = [8][2]int32{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

type frontierItem struct {
	coord model.Coordinate
	id    gridKey
	f     float64
	seq   int
}

// frontier is a min-heap on f, with insertion order breaking ties so
// identical inputs always expand in the same order.
type frontier []frontierItem

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *frontier) Push(x any)   { *q = append(*q, x.(frontierItem)) }
func (q *frontier) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// FindPath searches from start to end and returns the coordinate path
// in travel order. A non-nil error only ever means invalid input; a
// failed search is reported through the outcome.
func (r *Router) FindPath(ctx context.Context, start, end model.Coordinate, terrain TerrainContext, hazards []model.HazardRecord) ([]model.Coordinate, SearchStats, SearchOutcome, error) {
	var stats SearchStats

	if err := validateEndpoints(start, end); err != nil {
		return nil, stats, OutcomeNoPath, err
	}

	step := r.GridStepDeg
	if step <= 0 {
		step = DefaultGridStepDeg
	}
	maxExpansions := r.MaxExpansions
	if maxExpansions <= 0 {
		maxExpansions = DefaultMaxExpansions
	}
	margin := r.BoundsMarginDeg
	if margin <= 0 {
		margin = DefaultBoundsMarginDeg
	}

	goalTolerance := step / 2

	latLo := math.Min(start.Lat, end.Lat) - margin
	latHi := math.Max(start.Lat, end.Lat) + margin
	lngLo := math.Min(start.Lng, end.Lng) - margin
	lngHi := math.Max(start.Lng, end.Lng) + margin

	coordOf := func(id gridKey) model.Coordinate {
		return model.Coordinate{
			Lat: start.Lat + float64(id.Lat)*step,
			Lng: start.Lng + float64(id.Lng)*step,
		}
	}

	scoreCache := make(map[gridKey]float64)
	scoreAt := func(id gridKey, c model.Coordinate) float64 {
		if s, ok := scoreCache[id]; ok {
			return s
		}
		s := r.Scorer.Score(c, terrain, hazards)
		scoreCache[id] = s
		stats.ScoredPoints++
		return s
	}

	origin := gridKey{}
	gScore := map[gridKey]float64{origin: 0}
	parent := make(map[gridKey]gridKey)
	closed := make(map[gridKey]struct{})

	open := &frontier{}
	heap.Init(open)
	seq := 0
	push := func(id gridKey, c model.Coordinate, f float64) {
		heap.Push(open, frontierItem{coord: c, id: id, f: f, seq: seq})
		seq++
	}
	push(origin, start, Haversine(start, end))

	for open.Len() > 0 {
		if stats.Expanded >= maxExpansions {
			return nil, stats, OutcomeBudgetExceeded, nil
		}
		if stats.Expanded%256 == 0 && ctx != nil && ctx.Err() != nil {
			return nil, stats, OutcomeBudgetExceeded, nil
		}

		item := heap.Pop(open).(frontierItem)
		if _, done := closed[item.id]; done {
			continue
		}
		closed[item.id] = struct{}{}
		stats.Expanded++

		current := item.coord
		if current.DegreeDistanceTo(end) < goalTolerance {
			return reconstruct(parent, coordOf, item.id, start, end), stats, OutcomeFound, nil
		}

		for _, dir := range gridDirections {
			nbID := gridKey{Lat: item.id.Lat + dir[0], Lng: item.id.Lng + dir[1]}
			if _, done := closed[nbID]; done {
				continue
			}
			nb := coordOf(nbID)
			if nb.Lat < latLo || nb.Lat > latHi || nb.Lng < lngLo || nb.Lng > lngHi {
				continue
			}

			edge := Haversine(current, nb) * safetyFactor(scoreAt(nbID, nb))
			tentative := gScore[item.id] + edge

			if best, seen := gScore[nbID]; !seen || tentative < best {
				gScore[nbID] = tentative
				parent[nbID] = item.id
				push(nbID, nb, tentative+Haversine(nb, end))
			}
		}
	}

	return nil, stats, OutcomeNoPath, nil
}

// reconstruct walks parent links from the goal node back to the start
// and returns the path in travel order. The final grid node is
// replaced by the exact requested destination so the route terminals
// match the caller's coordinates rather than the nearest grid cell.
func reconstruct(parent map[gridKey]gridKey, coordOf func(gridKey) model.Coordinate, goal gridKey, start, end model.Coordinate) []model.Coordinate {
	var rev []gridKey
	id := goal
	for {
		rev = append(rev, id)
		p, ok := parent[id]
		if !ok {
			break
		}
		id = p
	}

	path := make([]model.Coordinate, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, coordOf(rev[i]))
	}
	path[0] = start
	if len(path) > 1 {
		path[len(path)-1] = end
	}
	return path
}

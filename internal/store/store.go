// Package store persists routes, hazard reports, and scorer feedback
// in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/routeguard/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// MetricsRecorder receives the store's row counts after every write.
// The observability package's RoutingCollector satisfies it.
type MetricsRecorder interface {
	SetStoreCounts(routes, hazards int)
}

// Store wraps the SQLite database holding routes and hazards.
type Store struct {
	db      *sql.DB
	metrics MetricsRecorder
}

const schema = `
CREATE TABLE IF NOT EXISTS routes (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	key               TEXT NOT NULL UNIQUE,
	start_lat         REAL NOT NULL,
	start_lng         REAL NOT NULL,
	end_lat           REAL NOT NULL,
	end_lng           REAL NOT NULL,
	waypoints         TEXT NOT NULL,
	total_distance_km REAL NOT NULL,
	estimated_minutes INTEGER NOT NULL,
	safety_score      REAL NOT NULL,
	status            TEXT NOT NULL,
	rerouted          INTEGER NOT NULL DEFAULT 0,
	reroute_reason    TEXT NOT NULL DEFAULT '',
	previous_route_id INTEGER NOT NULL DEFAULT 0,
	terrain_type      TEXT NOT NULL DEFAULT '',
	engine_version    TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	last_evaluated    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_routes_created_at ON routes(created_at);

CREATE TABLE IF NOT EXISTS hazards (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	severity   TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS training_examples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	route_id   INTEGER NOT NULL,
	rating     REAL NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
`

// Open opens (creating if necessary) the database at path. A nil
// metrics recorder disables gauge updates.
func Open(ctx context.Context, path string, metrics MetricsRecorder) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	// modernc's driver is not safe for concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, metrics: metrics}
	if err := s.refreshCounts(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRoute inserts a route and stamps its store-assigned ID onto the
// passed value.
func (s *Store) SaveRoute(ctx context.Context, route *model.Route) error {
	waypoints, err := json.Marshal(route.Waypoints)
	if err != nil {
		return fmt.Errorf("encode waypoints: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO routes (
			key, start_lat, start_lng, end_lat, end_lng, waypoints,
			total_distance_km, estimated_minutes, safety_score, status,
			rerouted, reroute_reason, previous_route_id,
			terrain_type, engine_version, created_at, last_evaluated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.Key,
		route.Start.Lat, route.Start.Lng,
		route.End.Lat, route.End.Lng,
		string(waypoints),
		route.TotalDistanceKm, route.EstimatedMinutes, route.SafetyScore,
		string(route.Status),
		boolToInt(route.Rerouted), route.RerouteReason, route.PreviousRouteID,
		route.TerrainType, route.EngineVersion,
		encodeTime(route.CreatedAt), encodeTime(route.LastEvaluated),
	)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("route insert id: %w", err)
	}
	route.ID = id
	return s.refreshCounts(ctx)
}

// GetRoute loads a route by store ID.
func (s *Store) GetRoute(ctx context.Context, id int64) (*model.Route, error) {
	row := s.db.QueryRowContext(ctx, selectRouteCols+` WHERE id = ?`, id)
	route, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route %d: %w", id, ErrNotFound)
	}
	return route, err
}

// UpdateRoute rewrites the mutable fields of a persisted route.
func (s *Store) UpdateRoute(ctx context.Context, route *model.Route) error {
	if route.ID == 0 {
		return errors.New("store: route has no ID")
	}
	waypoints, err := json.Marshal(route.Waypoints)
	if err != nil {
		return fmt.Errorf("encode waypoints: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE routes SET
			waypoints = ?, total_distance_km = ?, estimated_minutes = ?,
			safety_score = ?, status = ?, rerouted = ?, reroute_reason = ?,
			previous_route_id = ?, last_evaluated = ?
		WHERE id = ?`,
		string(waypoints), route.TotalDistanceKm, route.EstimatedMinutes,
		route.SafetyScore, string(route.Status),
		boolToInt(route.Rerouted), route.RerouteReason,
		route.PreviousRouteID, encodeTime(route.LastEvaluated),
		route.ID,
	)
	if err != nil {
		return fmt.Errorf("update route %d: %w", route.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update route %d: %w", route.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("route %d: %w", route.ID, ErrNotFound)
	}
	return nil
}

// ListRecentRoutes returns routes created at or after the cutoff,
// newest first.
func (s *Store) ListRecentRoutes(ctx context.Context, since time.Time) ([]*model.Route, error) {
	rows, err := s.db.QueryContext(ctx,
		selectRouteCols+` WHERE created_at >= ? ORDER BY created_at DESC, id DESC`,
		encodeTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []*model.Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// AddHazard inserts a hazard report and stamps its store-assigned ID.
func (s *Store) AddHazard(ctx context.Context, hz *model.HazardRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hazards (lat, lng, severity, created_at)
		VALUES (?, ?, ?, ?)`,
		hz.Location.Lat, hz.Location.Lng, string(hz.Severity), encodeTime(hz.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert hazard: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("hazard insert id: %w", err)
	}
	hz.ID = id
	return s.refreshCounts(ctx)
}

// ListHazards returns every hazard report, oldest first.
func (s *Store) ListHazards(ctx context.Context) ([]model.HazardRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lat, lng, severity, created_at FROM hazards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list hazards: %w", err)
	}
	defer rows.Close()

	var hazards []model.HazardRecord
	for rows.Next() {
		var (
			hz        model.HazardRecord
			severity  string
			createdAt string
		)
		if err := rows.Scan(&hz.ID, &hz.Location.Lat, &hz.Location.Lng, &severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scan hazard: %w", err)
		}
		hz.Severity = model.Severity(severity)
		hz.CreatedAt = decodeTime(createdAt)
		hazards = append(hazards, hz)
	}
	return hazards, rows.Err()
}

// AddTrainingExample records one piece of route feedback for the
// scorer's weight updates.
func (s *Store) AddTrainingExample(ctx context.Context, ex model.TrainingExample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_examples (route_id, rating, notes, created_at)
		VALUES (?, ?, ?, ?)`,
		ex.RouteID, ex.Rating, ex.Notes, encodeTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert training example: %w", err)
	}
	return nil
}

// ListTrainingExamples returns up to limit feedback rows, newest first.
func (s *Store) ListTrainingExamples(ctx context.Context, limit int) ([]model.TrainingExample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route_id, rating, notes FROM training_examples
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list training examples: %w", err)
	}
	defer rows.Close()

	var examples []model.TrainingExample
	for rows.Next() {
		var ex model.TrainingExample
		if err := rows.Scan(&ex.RouteID, &ex.Rating, &ex.Notes); err != nil {
			return nil, fmt.Errorf("scan training example: %w", err)
		}
		examples = append(examples, ex)
	}
	return examples, rows.Err()
}

// Counts returns the current number of persisted routes and hazards.
func (s *Store) Counts(ctx context.Context) (routes, hazards int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&routes); err != nil {
		return 0, 0, fmt.Errorf("count routes: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hazards`).Scan(&hazards); err != nil {
		return 0, 0, fmt.Errorf("count hazards: %w", err)
	}
	return routes, hazards, nil
}

func (s *Store) refreshCounts(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	routes, hazards, err := s.Counts(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetStoreCounts(routes, hazards)
	return nil
}

const selectRouteCols = `
	SELECT id, key, start_lat, start_lng, end_lat, end_lng, waypoints,
		total_distance_km, estimated_minutes, safety_score, status,
		rerouted, reroute_reason, previous_route_id,
		terrain_type, engine_version, created_at, last_evaluated
	FROM routes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*model.Route, error) {
	var (
		route         model.Route
		waypoints     string
		status        string
		rerouted      int
		createdAt     string
		lastEvaluated string
	)
	err := row.Scan(
		&route.ID, &route.Key,
		&route.Start.Lat, &route.Start.Lng,
		&route.End.Lat, &route.End.Lng,
		&waypoints,
		&route.TotalDistanceKm, &route.EstimatedMinutes, &route.SafetyScore,
		&status,
		&rerouted, &route.RerouteReason, &route.PreviousRouteID,
		&route.TerrainType, &route.EngineVersion,
		&createdAt, &lastEvaluated,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(waypoints), &route.Waypoints); err != nil {
		return nil, fmt.Errorf("decode waypoints for route %d: %w", route.ID, err)
	}
	route.Status = model.RouteStatus(status)
	route.Rerouted = rerouted != 0
	route.CreatedAt = decodeTime(createdAt)
	route.LastEvaluated = decodeTime(lastEvaluated)
	return &route, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Timestamps are stored as RFC 3339 text so lexical ordering in SQL
// matches chronological ordering.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

package model

import "time"

// Severity tags a reported hazard. The routing core treats severity as
// opaque metadata; scoring reacts to hazard geometry, not the tag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// HazardRecord is one externally reported point of elevated risk. The
// core only ever reads snapshots of these; ownership stays with the
// store that produced the snapshot.
type HazardRecord struct {
	ID        int64
	Location  Coordinate
	Severity  Severity
	CreatedAt time.Time
}

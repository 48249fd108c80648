package blindspot

import (
	"context"
	"errors"
	"time"

	"github.com/saferoute/server/internal/lib/geo"
)

// SpotType classifies what blocks the line of sight.
type SpotType string

const (
	SpotTypeCrest        SpotType = "crest"
	SpotTypeCurve        SpotType = "curve"
	SpotTypeObstruction  SpotType = "obstruction"
	SpotTypeIntersection SpotType = "intersection"
)

// Severity bands derived from the risk score.
type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeverityModerate    Severity = "moderate"
	SeveritySignificant Severity = "significant"
	SeverityCritical    Severity = "critical"
)

// RunStatus is the aggregator's state machine state.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusAnalyzing RunStatus = "analyzing"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// ErrProviderUnavailable marks an analyzer that cannot run because its data
// source is not configured. The aggregator records the skip; it never
// substitutes fabricated data.
var ErrProviderUnavailable = errors.New("data provider unavailable, analyzer skipped")

// ErrProfileTooShort marks an elevation profile with too few usable samples.
var ErrProfileTooShort = errors.New("elevation profile has too few usable samples")

// Finding is one detected blind spot. Immutable after creation; a route's
// finding set is replaced wholesale on re-analysis.
type Finding struct {
	ID                       string    `json:"id"`
	RouteID                  string    `json:"route_id"`
	Latitude                 float64   `json:"lat"`
	Longitude                float64   `json:"lng"`
	DistanceFromStartKm      float64   `json:"distance_from_start_km"`
	SpotType                 SpotType  `json:"spot_type"`
	VisibilityDistanceMeters float64   `json:"visibility_distance_meters"`
	ObstructionHeightMeters  float64   `json:"obstruction_height_meters"`
	RiskScore                float64   `json:"risk_score"`
	SeverityLevel            Severity  `json:"severity_level"`
	AnalysisMethod           string    `json:"analysis_method"`
	Confidence               float64   `json:"confidence"`
	Details                  string    `json:"details"`
	CreatedAt                time.Time `json:"created_at"`
}

// Feature is a discrete structure near the route, as reported by a
// NearbyFeatureProvider. Height is usually an estimate, not a measurement.
type Feature struct {
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	DistanceMeters float64   `json:"distance_meters"`
	HeightMeters   float64   `json:"height_meters"`
	Location       geo.Point `json:"location"`
}

// RoadAttributes are optional road metadata refining the speed estimate.
type RoadAttributes struct {
	SpeedLimitKmh float64 `json:"speed_limit_kmh"`
	LaneCount     int     `json:"lane_count"`
	HighwayClass  string  `json:"highway_class"`
}

// ElevationProvider returns elevations for a batch of points, one entry per
// input point. A nil entry means no data for that point.
type ElevationProvider interface {
	GetElevations(ctx context.Context, points []geo.Point) ([]*float64, error)
}

// NearbyFeatureProvider returns structures near a point.
type NearbyFeatureProvider interface {
	GetNearbyFeatures(ctx context.Context, point geo.Point, radiusMeters float64) ([]Feature, error)
}

// RoadGeometryProvider returns road attributes near a point, or nil when
// nothing is known. Optional: analyzers fall back to defaults without it.
type RoadGeometryProvider interface {
	GetRoadAttributes(ctx context.Context, point geo.Point) (*RoadAttributes, error)
}

// SeverityForScore maps a risk score onto its severity band.
func SeverityForScore(score float64) Severity {
	switch {
	case score >= 8:
		return SeverityCritical
	case score >= 6:
		return SeveritySignificant
	case score >= 4:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

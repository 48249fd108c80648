package route

import (
	"errors"
	"fmt"

	"github.com/saferoute/server/internal/lib/geo"
)

// MinRoutePoints is the smallest point count a route can be analyzed with.
// Individual analyzers impose their own, larger, window minimums on top.
const MinRoutePoints = 5

// ErrInsufficientPoints indicates a route too short to analyze.
var ErrInsufficientPoints = errors.New("route has insufficient points for analysis")

// RoutePoint is one sample of a route's GPS track. Points are immutable once
// the route is created; Order defines the path.
type RoutePoint struct {
	Latitude            float64  `json:"lat"`
	Longitude           float64  `json:"lng"`
	Order               int      `json:"order"`
	ElevationMeters     *float64 `json:"elevation_meters,omitempty"`
	DistanceFromStartKm float64  `json:"distance_from_start_km"`
}

// Route is an ordered GPS track with optional per-point elevation.
type Route struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Points []RoutePoint `json:"points"`
}

// GeoPoint converts a route point to a geometry point.
func (p RoutePoint) GeoPoint() geo.Point {
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude}
}

// GeoPoints returns the track as a geometry point sequence.
func (r *Route) GeoPoints() []geo.Point {
	points := make([]geo.Point, len(r.Points))
	for i, p := range r.Points {
		points[i] = p.GeoPoint()
	}
	return points
}

// Validate checks coordinate ranges, ordering, and the minimum point count.
func (r *Route) Validate() error {
	if len(r.Points) < MinRoutePoints {
		return fmt.Errorf("%w: have %d, need at least %d", ErrInsufficientPoints, len(r.Points), MinRoutePoints)
	}
	for i, p := range r.Points {
		if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			return fmt.Errorf("point %d has invalid coordinates (%.6f, %.6f)", i, p.Latitude, p.Longitude)
		}
	}
	return nil
}

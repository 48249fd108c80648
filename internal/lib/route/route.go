package route

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/saferoute/server/internal/lib/geo"
)

// New creates a route from a point sequence, assigning order and cumulative
// distances. The ID is generated when empty.
func New(id, name string, points []geo.Point, geoUtils geo.GeoUtils) (*Route, error) {
	if id == "" {
		id = uuid.NewString()
	}

	r := &Route{ID: id, Name: name, Points: make([]RoutePoint, len(points))}
	for i, p := range points {
		r.Points[i] = RoutePoint{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Order:     i,
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := AnnotateDistances(r, geoUtils); err != nil {
		return nil, err
	}
	return r, nil
}

// FromEncodedPolyline creates a route from a Google encoded polyline.
func FromEncodedPolyline(id, name, encoded string, geoUtils geo.GeoUtils) (*Route, error) {
	points, err := geoUtils.DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode route polyline: %w", err)
	}
	return New(id, name, points, geoUtils)
}

// AnnotateDistances fills DistanceFromStartKm for every point by summing
// great-circle segment lengths.
func AnnotateDistances(r *Route, geoUtils geo.GeoUtils) error {
	cumulative := 0.0
	for i := range r.Points {
		if i > 0 {
			segment, err := geoUtils.PointToPoint(r.Points[i-1].GeoPoint(), r.Points[i].GeoPoint())
			if err != nil {
				return fmt.Errorf("failed to measure segment %d: %w", i, err)
			}
			cumulative += segment
		}
		r.Points[i].DistanceFromStartKm = cumulative / 1000
	}
	return nil
}

// TotalDistanceKm returns the route length in kilometers. Requires distances
// to have been annotated.
func (r *Route) TotalDistanceKm() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	return r.Points[len(r.Points)-1].DistanceFromStartKm
}

package geo

import (
	"errors"
	"math"

	"github.com/twpayne/go-polyline"
)

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	if p1.Latitude == p2.Latitude && p1.Longitude == p2.Longitude {
		return 0, nil
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c, nil
}

// Bearing calculates the initial forward azimuth from p1 to p2.
// Result is in degrees, normalized to [0, 360).
func (g *geoUtils) Bearing(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}

	lat1 := p1.Latitude * math.Pi / 180
	lon1 := p1.Longitude * math.Pi / 180
	lat2 := p2.Latitude * math.Pi / 180
	lon2 := p2.Longitude * math.Pi / 180

	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	bearing := math.Atan2(y, x) * 180 / math.Pi

	// Normalize to [0, 360)
	bearing = math.Mod(bearing+360, 360)
	return bearing, nil
}

// PointToPolyline calculates minimum distance from point to a point sequence
func (g *geoUtils) PointToPolyline(point Point, points []Point) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	if len(points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(points) == 1 {
		return g.PointToPoint(point, points[0])
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(points)-1; i++ {
		distance := g.pointToSegmentDistance(point, points[i], points[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// pointToSegmentDistance calculates perpendicular distance from point to line segment
// using the cross-track distance formula. Accurate enough for road-scale segments.
func (g *geoUtils) pointToSegmentDistance(point, segmentStart, segmentEnd Point) float64 {
	if segmentStart.Latitude == segmentEnd.Latitude && segmentStart.Longitude == segmentEnd.Longitude {
		distance, _ := g.PointToPoint(point, segmentStart)
		return distance
	}

	distanceToStart, _ := g.PointToPoint(point, segmentStart)
	distanceToEnd, _ := g.PointToPoint(point, segmentEnd)
	segmentLength, _ := g.PointToPoint(segmentStart, segmentEnd)

	if segmentLength < 1 {
		return math.Min(distanceToStart, distanceToEnd)
	}

	lat1 := segmentStart.Latitude * math.Pi / 180
	lon1 := segmentStart.Longitude * math.Pi / 180
	lat2 := segmentEnd.Latitude * math.Pi / 180
	lon2 := segmentEnd.Longitude * math.Pi / 180
	lat3 := point.Latitude * math.Pi / 180
	lon3 := point.Longitude * math.Pi / 180

	d13 := distanceToStart / EarthRadiusMeters

	// Bearing from segment start to end
	y := math.Sin(lon2-lon1) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1)
	bearing12 := math.Atan2(y, x)

	// Bearing from segment start to point
	y = math.Sin(lon3-lon1) * math.Cos(lat3)
	x = math.Cos(lat1)*math.Sin(lat3) - math.Sin(lat1)*math.Cos(lat3)*math.Cos(lon3-lon1)
	bearing13 := math.Atan2(y, x)

	dxt := math.Asin(math.Sin(d13) * math.Sin(bearing13-bearing12))
	crossTrackDistance := math.Abs(dxt) * EarthRadiusMeters

	// If the point's projection lies beyond the segment, use distance to the far endpoint
	dat := math.Acos(math.Cos(d13) / math.Cos(dxt))
	alongTrackDistance := dat * EarthRadiusMeters
	if alongTrackDistance > segmentLength {
		return distanceToEnd
	}

	return crossTrackDistance
}

// DecodePolyline decodes a Google encoded polyline string to a point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}
		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// ToLocalXY projects points onto a local tangent plane anchored at origin,
// using an equirectangular approximation. Adequate for the short windows
// (hundreds of meters) the analyzers work with, and keeps circle fitting out
// of the numerically unstable lat/lon degree space.
func (g *geoUtils) ToLocalXY(origin Point, points []Point) []XY {
	cosLat := math.Cos(origin.Latitude * math.Pi / 180)

	projected := make([]XY, len(points))
	for i, p := range points {
		projected[i] = XY{
			X: (p.Longitude - origin.Longitude) * math.Pi / 180 * EarthRadiusMeters * cosLat,
			Y: (p.Latitude - origin.Latitude) * math.Pi / 180 * EarthRadiusMeters,
		}
	}
	return projected
}

// ShadowLength computes the length of the sight shadow an obstruction casts
// past itself, by similar triangles. Zero when the observer can see over it.
func (g *geoUtils) ShadowLength(observerHeight, obstructionHeight, distance float64) float64 {
	if obstructionHeight <= observerHeight || obstructionHeight <= 0 || distance <= 0 {
		return 0
	}
	return distance * (obstructionHeight - observerHeight) / obstructionHeight
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

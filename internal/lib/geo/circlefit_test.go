package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arcPoints synthesizes GPS points lying on a circular arc of the given
// radius, centered near Murphys, CA.
func arcPoints(radiusMeters, arcDegrees float64, count int) []Point {
	origin := Point{Latitude: 38.1391, Longitude: -120.4561}
	cosLat := math.Cos(origin.Latitude * math.Pi / 180)

	points := make([]Point, count)
	for i := 0; i < count; i++ {
		theta := (float64(i)/float64(count-1) - 0.5) * arcDegrees * math.Pi / 180
		x := radiusMeters * math.Sin(theta)
		y := radiusMeters * (1 - math.Cos(theta))
		points[i] = Point{
			Latitude:  origin.Latitude + y/EarthRadiusMeters*180/math.Pi,
			Longitude: origin.Longitude + x/(EarthRadiusMeters*cosLat)*180/math.Pi,
		}
	}
	return points
}

func TestFitCircle_RecoversRadius(t *testing.T) {
	geoUtils := NewGeoUtils()

	for _, radius := range []float64{50, 120, 400} {
		fit := geoUtils.FitCircle(arcPoints(radius, 80, 7))
		require.True(t, fit.IsValid, "fit should be valid for radius %.0f", radius)
		assert.InDelta(t, radius, fit.Radius, radius*0.05, "fitted radius should be within 5%%")
		assert.Greater(t, fit.Confidence, 0.8, "clean arc should fit with high confidence")
	}
}

func TestFitCircle_CollinearPointsInvalid(t *testing.T) {
	geoUtils := NewGeoUtils()

	points := make([]Point, 7)
	for i := range points {
		points[i] = Point{Latitude: 38.0 + float64(i)*0.0005, Longitude: -120.0}
	}

	fit := geoUtils.FitCircle(points)
	assert.False(t, fit.IsValid, "collinear points must not produce a valid circle")
}

func TestFitCircle_TooFewPoints(t *testing.T) {
	geoUtils := NewGeoUtils()

	fit := geoUtils.FitCircle(arcPoints(120, 80, 2))
	assert.False(t, fit.IsValid)
}

func TestFitCircle_TinyRadiusRejected(t *testing.T) {
	geoUtils := NewGeoUtils()

	// A 2m radius loop is GPS noise, not a road curve
	fit := geoUtils.FitCircle(arcPoints(2, 180, 7))
	assert.False(t, fit.IsValid)
}

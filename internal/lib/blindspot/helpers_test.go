package blindspot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/route"
)

// testOrigin sits on Highway 4 near Murphys, CA.
var testOrigin = geo.Point{Latitude: 38.1391, Longitude: -120.4561}

// straightTrack builds count points heading due north at the given spacing.
func straightTrack(t *testing.T, count int, spacingMeters float64) *route.Route {
	t.Helper()

	points := make([]geo.Point, count)
	for i := range points {
		points[i] = geo.Point{
			Latitude:  testOrigin.Latitude + float64(i)*spacingMeters/geo.EarthRadiusMeters*180/math.Pi,
			Longitude: testOrigin.Longitude,
		}
	}
	r, err := route.New("test-route", "straight", points, geo.NewGeoUtils())
	require.NoError(t, err)
	return r
}

// arcTrack builds count points along a circular arc with the given radius
// and total heading change.
func arcTrack(t *testing.T, radiusMeters, headingChangeDegrees float64, count int) *route.Route {
	t.Helper()

	cosLat := math.Cos(testOrigin.Latitude * math.Pi / 180)
	points := make([]geo.Point, count)
	for i := range points {
		theta := float64(i) / float64(count-1) * headingChangeDegrees * math.Pi / 180
		x := radiusMeters * math.Sin(theta)
		y := radiusMeters * (1 - math.Cos(theta))
		points[i] = geo.Point{
			Latitude:  testOrigin.Latitude + x/geo.EarthRadiusMeters*180/math.Pi,
			Longitude: testOrigin.Longitude + y/(geo.EarthRadiusMeters*cosLat)*180/math.Pi,
		}
	}
	r, err := route.New("test-route", "arc", points, geo.NewGeoUtils())
	require.NoError(t, err)
	return r
}

// flatProfile returns a uniform elevation profile for a route.
func flatProfile(r *route.Route, elevation float64) []*float64 {
	profile := make([]*float64, len(r.Points))
	for i := range profile {
		e := elevation
		profile[i] = &e
	}
	return profile
}

func f64(v float64) *float64 { return &v }

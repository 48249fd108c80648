package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/route"
)

func TestWriteKML(t *testing.T) {
	r := &route.Route{
		ID:   "r1",
		Name: "Highway 4 east",
		Points: []route.RoutePoint{
			{Latitude: 38.1391, Longitude: -120.4561},
			{Latitude: 38.1400, Longitude: -120.4520},
		},
	}
	findings := []blindspot.Finding{
		{
			SpotType:                 blindspot.SpotTypeCrest,
			Latitude:                 38.1395,
			Longitude:                -120.4540,
			DistanceFromStartKm:      0.2,
			RiskScore:                7.2,
			SeverityLevel:            blindspot.SeveritySignificant,
			VisibilityDistanceMeters: 62,
			AnalysisMethod:           "elevation_profile",
		},
	}

	var out bytes.Buffer
	require.NoError(t, WriteKML(&out, r, findings))

	doc := out.String()
	assert.Contains(t, doc, "<kml")
	assert.Contains(t, doc, "Highway 4 east")
	assert.Contains(t, doc, "crest at 0.2 km")
	assert.Contains(t, doc, "#blindspot-significant")
	assert.Contains(t, doc, "<LineString>")
}

func TestWriteKML_NilRoute(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, WriteKML(&out, nil, nil))
}

func TestWriteKML_NoFindings(t *testing.T) {
	r := &route.Route{
		ID:     "r1",
		Name:   "empty",
		Points: []route.RoutePoint{{Latitude: 38.1, Longitude: -120.4}},
	}
	var out bytes.Buffer
	require.NoError(t, WriteKML(&out, r, nil))
	assert.Contains(t, out.String(), "<Document>")
}

package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/route"
)

// severityColors maps severity bands to KML icon colors.
var severityColors = map[blindspot.Severity]color.RGBA{
	blindspot.SeverityMinor:       {R: 0x99, G: 0xcc, B: 0x00, A: 0xff},
	blindspot.SeverityModerate:    {R: 0xff, G: 0xcc, B: 0x00, A: 0xff},
	blindspot.SeveritySignificant: {R: 0xff, G: 0x66, B: 0x00, A: 0xff},
	blindspot.SeverityCritical:    {R: 0xcc, G: 0x00, B: 0x00, A: 0xff},
}

var severityOrder = []blindspot.Severity{
	blindspot.SeverityMinor,
	blindspot.SeverityModerate,
	blindspot.SeveritySignificant,
	blindspot.SeverityCritical,
}

// WriteKML renders a route and its blind-spot findings as a KML document,
// with the track as a line and one styled placemark per finding.
func WriteKML(w io.Writer, r *route.Route, findings []blindspot.Finding) error {
	if r == nil {
		return fmt.Errorf("route is required")
	}

	document := kml.Document(kml.Name(r.Name))

	for _, severity := range severityOrder {
		document.Add(kml.SharedStyle(styleID(severity),
			kml.IconStyle(
				kml.Color(severityColors[severity]),
				kml.Scale(1.1),
				kml.Icon(kml.Href("http://maps.google.com/mapfiles/kml/shapes/caution.png")),
			),
		))
	}

	coordinates := make([]kml.Coordinate, len(r.Points))
	for i, p := range r.Points {
		coordinates[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	document.Add(kml.Placemark(
		kml.Name("Route"),
		kml.LineString(kml.Tessellate(true), kml.Coordinates(coordinates...)),
	))

	for _, f := range findings {
		document.Add(kml.Placemark(
			kml.Name(fmt.Sprintf("%s at %.1f km", f.SpotType, f.DistanceFromStartKm)),
			kml.Description(description(f)),
			kml.StyleURL("#"+styleID(f.SeverityLevel)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: f.Longitude, Lat: f.Latitude})),
		))
	}

	if err := kml.KML(document).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func styleID(severity blindspot.Severity) string {
	return fmt.Sprintf("blindspot-%s", severity)
}

func description(f blindspot.Finding) string {
	return fmt.Sprintf("Severity: %s\nRisk score: %.1f/10\nVisibility: %.0f m\nMethod: %s\n%s",
		f.SeverityLevel, f.RiskScore, f.VisibilityDistanceMeters, f.AnalysisMethod, f.Details)
}

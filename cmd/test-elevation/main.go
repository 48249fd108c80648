package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/saferoute/server/internal/cache"
	elevationclient "github.com/saferoute/server/internal/clients/elevation"
	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/route"
)

// Manual smoke tool for the elevation pipeline: fetches a real profile for a
// polyline and runs the crest analyzer over it.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "lookup":
		handleLookup()
	case "profile":
		handleProfile()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	fs.Parse(os.Args[2:])

	if *lat == 0 && *lng == 0 {
		fmt.Println("Example: test-elevation lookup -lat 38.1391 -lng -120.4561")
		os.Exit(1)
	}

	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := client.GetElevations(ctx, []geo.Point{{Latitude: *lat, Longitude: *lng}})
	if err != nil {
		log.Fatalf("Lookup failed: %v", err)
	}
	if results[0] == nil {
		fmt.Printf("No elevation data for (%.5f, %.5f)\n", *lat, *lng)
		return
	}
	fmt.Printf("Elevation at (%.5f, %.5f): %.1f m\n", *lat, *lng, *results[0])
}

func handleProfile() {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	polyline := fs.String("polyline", "", "Google encoded polyline")
	fs.Parse(os.Args[2:])

	if *polyline == "" {
		fmt.Println("Example: test-elevation profile -polyline '_p~iF~ps|U_ulLnnqC'")
		os.Exit(1)
	}

	geoUtils := geo.NewGeoUtils()
	r, err := route.FromEncodedPolyline("", "profile test", *polyline, geoUtils)
	if err != nil {
		log.Fatalf("Failed to decode polyline: %v", err)
	}
	fmt.Printf("Route: %d points, %.2f km\n", len(r.Points), r.TotalDistanceKm())

	client := newClient()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	profile, err := client.GetElevations(ctx, r.GeoPoints())
	if err != nil {
		log.Fatalf("Elevation fetch failed: %v", err)
	}

	known := 0
	for i, e := range profile {
		if e == nil {
			continue
		}
		known++
		if i%10 == 0 {
			fmt.Printf("  %6.2f km: %.1f m\n", r.Points[i].DistanceFromStartKm, *e)
		}
	}
	fmt.Printf("Profile coverage: %d/%d points\n", known, len(profile))

	cfg := config.DefaultConfig().Analysis.Elevation
	analyzer := blindspot.NewElevationAnalyzer(cfg)
	findings, err := analyzer.Analyze(ctx, r, profile)
	if err != nil {
		log.Fatalf("Crest analysis failed: %v", err)
	}

	fmt.Printf("Crest candidates: %d\n", len(findings))
	for _, f := range findings {
		fmt.Printf("  %6.2f km  risk %.1f  visibility %.0fm  %s\n",
			f.DistanceFromStartKm, f.RiskScore, f.VisibilityDistanceMeters, f.Details)
	}
}

func newClient() *elevationclient.Client {
	return elevationclient.NewClient(config.DefaultConfig().Providers.Elevation, cache.New())
}

func printUsage() {
	fmt.Println("Elevation pipeline smoke tool")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  lookup  -lat <lat> -lng <lng>      Fetch one elevation")
	fmt.Println("  profile -polyline <encoded>        Fetch a route profile and run crest analysis")
	fmt.Println("  help                               Show this help")
}

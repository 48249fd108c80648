package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpup/prefab"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/saferoute/server/internal/cache"
	elevationclient "github.com/saferoute/server/internal/clients/elevation"
	"github.com/saferoute/server/internal/clients/overpass"
	"github.com/saferoute/server/internal/clients/roads"
	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/export"
	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/risk"
	"github.com/saferoute/server/internal/lib/route"
	"github.com/saferoute/server/internal/metrics"
	"github.com/saferoute/server/internal/services"
	"github.com/saferoute/server/internal/store"
)

func main() {
	polyline := flag.String("polyline", "", "Google encoded polyline of the route to analyze")
	routeID := flag.String("route-id", "", "ID of an already stored route to re-analyze")
	name := flag.String("name", "unnamed route", "Route name")
	kmlPath := flag.String("kml", "", "Optional path to write a KML visualization")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall analysis deadline")
	flag.Parse()

	if *polyline == "" && *routeID == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -polyline <encoded> [-name <name>] [-kml <path>]")
		fmt.Fprintln(os.Stderr, "       analyze -route-id <id> [-kml <path>]")
		os.Exit(1)
	}

	appConfig := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	routeStore := openStore(appConfig)
	svc := buildService(ctx, appConfig, routeStore)

	geoUtils := geo.NewGeoUtils()
	id := *routeID
	if *polyline != "" {
		r, err := route.FromEncodedPolyline("", *name, *polyline, geoUtils)
		if err != nil {
			log.Fatalf("Failed to build route: %v", err)
		}
		if err := routeStore.SaveRoute(ctx, r); err != nil {
			log.Fatalf("Failed to save route: %v", err)
		}
		id = r.ID
		log.Printf("Route %s: %d points, %.1f km", id, len(r.Points), r.TotalDistanceKm())
	}

	result, err := svc.AnalyzeRoute(ctx, id)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	printResult(result)

	assessment, err := svc.AssessRisk(ctx, id, nil)
	if err != nil {
		log.Fatalf("Risk assessment failed: %v", err)
	}
	fmt.Printf("\nRisk grade: %s (%.1f/10)\n%s\n",
		assessment.RiskGrade, assessment.TotalWeightedScore, assessment.Explanation)

	if *kmlPath != "" {
		writeKML(ctx, routeStore, id, *kmlPath)
	}
}

// loadConfig layers Prefab's config (prefab.yaml, PF__ env vars) over the
// built-in defaults.
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	if err := prefab.Config.Unmarshal("analysis", &appConfig.Analysis); err != nil {
		log.Fatalf("Failed to unmarshal analysis section: %v", err)
	}
	if err := prefab.Config.Unmarshal("providers", &appConfig.Providers); err != nil {
		log.Fatalf("Failed to unmarshal providers section: %v", err)
	}
	if err := prefab.Config.Unmarshal("risk", &appConfig.Risk); err != nil {
		log.Fatalf("Failed to unmarshal risk section: %v", err)
	}
	if err := prefab.Config.Unmarshal("store", &appConfig.Store); err != nil {
		log.Fatalf("Failed to unmarshal store section: %v", err)
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return appConfig
}

// openStore connects to Postgres when a DSN is configured, otherwise runs
// against the in-memory store.
func openStore(appConfig *config.Config) store.RouteStore {
	if appConfig.Store.PostgresDSN == "" {
		log.Printf("No postgres DSN configured, using in-memory store")
		return store.NewMemoryStore()
	}
	s, err := store.NewGormStore(appConfig.Store.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	return s
}

func buildService(ctx context.Context, appConfig *config.Config, routeStore store.RouteStore) *services.AnalysisService {
	cacheInstance := cache.New()
	cacheInstance.StartPeriodicCleanup(ctx, 10*time.Minute)

	elevations := elevationclient.NewClient(appConfig.Providers.Elevation, cacheInstance)
	features := overpass.NewClient(appConfig.Providers.Overpass, cacheInstance)

	var roadGeometry blindspot.RoadGeometryProvider
	if appConfig.Providers.Roads.Enabled {
		roadGeometry = roads.NewClient(appConfig.Providers.Roads, cacheInstance)
	}

	geoUtils := geo.NewGeoUtils()
	aggregator := blindspot.NewAggregator(appConfig.Analysis,
		blindspot.NewElevationAnalyzer(appConfig.Analysis.Elevation),
		blindspot.NewCurveAnalyzer(appConfig.Analysis.Curve, geoUtils, roadGeometry),
		blindspot.NewObstructionAnalyzer(appConfig.Analysis.Obstruction,
			appConfig.Analysis.Elevation.DriverEyeHeightMeters, geoUtils, features))

	riskAggregator, err := risk.NewAggregator(appConfig.Risk)
	if err != nil {
		log.Fatalf("Failed to build risk aggregator: %v", err)
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	return services.NewAnalysisService(routeStore, aggregator, riskAggregator, elevations, collector)
}

func printResult(result *blindspot.Result) {
	fmt.Printf("\nAnalysis %s: %d findings (analyzers run: %d, skipped: %d)\n",
		result.Status, result.TotalFindings, len(result.AnalyzersRun), len(result.AnalyzersSkipped))
	if result.TotalFindings > 0 {
		fmt.Printf("Average risk %.1f, max risk %.1f\n", result.AverageRiskScore, result.MaxRiskScore)
	}

	for _, f := range result.Findings {
		fmt.Printf("  %6.2f km  %-11s  %-11s  risk %.1f  visibility %.0fm\n",
			f.DistanceFromStartKm, f.SpotType, f.SeverityLevel, f.RiskScore, f.VisibilityDistanceMeters)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("  * %s\n", rec)
	}
}

func writeKML(ctx context.Context, routeStore store.RouteStore, routeID, path string) {
	r, err := routeStore.LoadRoute(ctx, routeID)
	if err != nil {
		log.Fatalf("Failed to load route for KML export: %v", err)
	}
	findings, err := routeStore.ListBlindSpots(ctx, routeID)
	if err != nil {
		log.Fatalf("Failed to load findings for KML export: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create KML file: %v", err)
	}
	defer f.Close()

	if err := export.WriteKML(f, r, findings); err != nil {
		log.Fatalf("Failed to write KML: %v", err)
	}
	log.Printf("Wrote %s", path)
}

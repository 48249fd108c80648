package blindspot

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/route"
)

// ObstructionAnalyzer projects the sight shadows cast by structures near the
// route. Points are sampled at a fixed stride to bound external lookups.
type ObstructionAnalyzer struct {
	cfg            config.ObstructionConfig
	observerHeight float64
	geoUtils       geo.GeoUtils
	features       NearbyFeatureProvider
}

// NewObstructionAnalyzer creates an obstruction shadow analyzer. features
// may be nil, in which case Analyze reports ErrProviderUnavailable.
func NewObstructionAnalyzer(cfg config.ObstructionConfig, observerHeightMeters float64,
	geoUtils geo.GeoUtils, features NearbyFeatureProvider) *ObstructionAnalyzer {
	return &ObstructionAnalyzer{
		cfg:            cfg,
		observerHeight: observerHeightMeters,
		geoUtils:       geoUtils,
		features:       features,
	}
}

// Name identifies the analyzer in run summaries.
func (a *ObstructionAnalyzer) Name() string { return "obstruction" }

// Analyze queries nearby features at sampled points and emits a finding per
// structure casting a significant sight shadow. Individual lookup failures
// are absorbed as "no data for this point".
func (a *ObstructionAnalyzer) Analyze(ctx context.Context, r *route.Route) ([]Finding, error) {
	if a.features == nil {
		return nil, ErrProviderUnavailable
	}

	// A feature close to the route shadows several sampled points; keep the
	// worst finding per feature location.
	best := make(map[string]Finding)
	track := r.GeoPoints()

	for i := 0; i < len(r.Points); i += a.cfg.SampleStride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		point := r.Points[i]
		features, err := a.lookup(ctx, point.GeoPoint())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("Nearby feature lookup failed at point %d: %v", i, err)
			continue
		}

		for _, feature := range features {
			finding, ok := a.evaluateFeature(r, point, feature, track)
			if !ok {
				continue
			}
			key := fmt.Sprintf("%.5f,%.5f", feature.Location.Latitude, feature.Location.Longitude)
			if existing, seen := best[key]; !seen || finding.RiskScore > existing.RiskScore {
				best[key] = finding
			}
		}
	}

	findings := make([]Finding, 0, len(best))
	for _, f := range best {
		findings = append(findings, f)
	}
	return findings, nil
}

// lookup queries the feature provider under the per-lookup timeout.
func (a *ObstructionAnalyzer) lookup(ctx context.Context, point geo.Point) ([]Feature, error) {
	if a.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.LookupTimeout)
		defer cancel()
	}
	return a.features.GetNearbyFeatures(ctx, point, a.cfg.SearchRadiusMeters)
}

// evaluateFeature decides whether one structure casts a sight-blocking
// shadow over the route at the sampled point. What matters is the feature's
// distance to the road itself, so the provider-reported distance to the
// sampled point is tightened to the closest approach of the whole track when
// the feature carries a location.
func (a *ObstructionAnalyzer) evaluateFeature(r *route.Route, point route.RoutePoint, feature Feature, track []geo.Point) (Finding, bool) {
	if math.IsNaN(feature.HeightMeters) || math.IsInf(feature.HeightMeters, 0) ||
		math.IsNaN(feature.DistanceMeters) || math.IsInf(feature.DistanceMeters, 0) {
		return Finding{}, false
	}

	distance := feature.DistanceMeters
	if feature.Location != (geo.Point{}) {
		if trackDistance, err := a.geoUtils.PointToPolyline(feature.Location, track); err == nil && trackDistance < distance {
			distance = trackDistance
		}
	}

	if feature.HeightMeters < a.cfg.MinHeightMeters || distance > a.cfg.MaxDistanceMeters {
		return Finding{}, false
	}

	shadow := a.geoUtils.ShadowLength(a.observerHeight, feature.HeightMeters, distance)
	if shadow < a.cfg.MinShadowLengthMeters {
		return Finding{}, false
	}

	visibility := math.Max(10, distance+shadow)
	if visibility > a.cfg.MinVisibilityMeters {
		return Finding{}, false
	}

	score := a.riskScore(visibility, feature.HeightMeters)
	confidence := clamp01(0.5 + math.Min(0.3, feature.HeightMeters/100))

	name := feature.Name
	if name == "" {
		name = feature.Type
	}
	finding, err := newFinding(r.ID, point.Latitude, point.Longitude, point.DistanceFromStartKm,
		SpotTypeObstruction, visibility, feature.HeightMeters, score, confidence,
		"obstruction_shadow",
		fmt.Sprintf("%s (%.0fm tall, %.0fm off route) casts a %.0fm sight shadow",
			name, feature.HeightMeters, distance, shadow))
	if err != nil {
		return Finding{}, false
	}
	return finding, true
}

// riskScore rises as the resulting visibility drops and taller structures
// weigh heavier.
func (a *ObstructionAnalyzer) riskScore(visibility, height float64) float64 {
	base := 9 - 6*(visibility/a.cfg.MinVisibilityMeters)
	heightBonus := math.Min(1, height/30)
	return clampScore(base + heightBonus)
}

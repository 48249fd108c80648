package blindspot

import (
	"context"
	"fmt"
	"math"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/route"
)

// ElevationAnalyzer detects crest blind spots by ray-tracing the driver's
// line of sight over the elevation profile, correcting for earth curvature.
type ElevationAnalyzer struct {
	cfg config.ElevationConfig
}

// NewElevationAnalyzer creates an elevation sight-line analyzer.
func NewElevationAnalyzer(cfg config.ElevationConfig) *ElevationAnalyzer {
	return &ElevationAnalyzer{cfg: cfg}
}

// Name identifies the analyzer in run summaries.
func (a *ElevationAnalyzer) Name() string { return "elevation" }

// profileSample is one usable (finite) elevation sample along the track.
type profileSample struct {
	index           int
	distanceMeters  float64
	elevationMeters float64
}

// Analyze walks the elevation profile and emits a finding wherever terrain
// ahead blocks the sight line within the visibility threshold. The profile
// is aligned 1:1 with the route points; nil entries mean no data.
func (a *ElevationAnalyzer) Analyze(ctx context.Context, r *route.Route, profile []*float64) ([]Finding, error) {
	if len(profile) != len(r.Points) {
		return nil, fmt.Errorf("elevation profile has %d samples for %d points", len(profile), len(r.Points))
	}

	// Non-finite and missing samples never reach the ray-trace.
	samples := make([]profileSample, 0, len(profile))
	for i, e := range profile {
		if e == nil || math.IsNaN(*e) || math.IsInf(*e, 0) {
			continue
		}
		samples = append(samples, profileSample{
			index:           i,
			distanceMeters:  r.Points[i].DistanceFromStartKm * 1000,
			elevationMeters: *e,
		})
	}
	if len(samples) < a.cfg.MinProfilePoints {
		return nil, fmt.Errorf("%w: %d of %d required", ErrProfileTooShort, len(samples), a.cfg.MinProfilePoints)
	}

	var findings []Finding
	for i := 0; i < len(samples)-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		obstructedAt, visibility, elevationDiff, gradient := a.traceSightLine(samples, i)
		if obstructedAt < 0 {
			continue
		}
		if elevationDiff < a.cfg.MinElevationChangeMeters || visibility > a.cfg.MinVisibilityMeters {
			continue
		}

		score := a.riskScore(visibility, elevationDiff, gradient)
		confidence := clamp01(0.7 + math.Min(0.25, elevationDiff/40))

		p := r.Points[samples[i].index]
		finding, err := newFinding(r.ID, p.Latitude, p.Longitude, p.DistanceFromStartKm,
			SpotTypeCrest, math.Max(10, visibility), elevationDiff, score, confidence,
			"elevation_ray_trace",
			fmt.Sprintf("terrain rises %.1fm within %.0fm, blocking forward sight line", elevationDiff, visibility))
		if err != nil {
			// Corrupt candidate: drop, never half-save
			continue
		}
		findings = append(findings, finding)

		// Observers between here and the crest would re-report the same
		// obstruction; jump past it.
		i = obstructedAt - 1
	}

	return findings, nil
}

// traceSightLine ray-traces forward from the observer at sample index i.
// Returns the sample index of the first obstruction (or -1), the visibility
// distance in meters, the blocking excess height, and the local gradient.
// The maximum unobstructed sight-line height at forward distance d drops by
// d^2/(2*R) due to earth curvature.
func (a *ElevationAnalyzer) traceSightLine(samples []profileSample, i int) (int, float64, float64, float64) {
	observer := samples[i]
	observerElevation := observer.elevationMeters + a.cfg.DriverEyeHeightMeters

	limit := len(samples)
	if a.cfg.LookaheadPoints > 0 && i+a.cfg.LookaheadPoints+1 < limit {
		limit = i + a.cfg.LookaheadPoints + 1
	}

	for j := i + 1; j < limit; j++ {
		target := samples[j]
		d := target.distanceMeters - observer.distanceMeters
		if d <= 0 {
			continue
		}

		sightLineHeight := observerElevation - d*d/(2*geo.EarthRadiusMeters)
		targetTop := target.elevationMeters + a.cfg.CriticalObjectHeightMeters
		if targetTop > sightLineHeight {
			// Closer obstructions dominate; stop at the first one.
			elevationDiff := targetTop - sightLineHeight
			gradient := (target.elevationMeters - observer.elevationMeters) / d
			return j, d, elevationDiff, gradient
		}
	}
	return -1, 0, 0, 0
}

// riskScore is monotone decreasing in visibility distance, adjusted upward
// for larger elevation differences and steeper local gradient.
func (a *ElevationAnalyzer) riskScore(visibility, elevationDiff, gradient float64) float64 {
	base := 10 - 8*(visibility/a.cfg.MinVisibilityMeters)
	elevationBonus := math.Min(2, (elevationDiff-a.cfg.MinElevationChangeMeters)/10)
	if elevationBonus < 0 {
		elevationBonus = 0
	}
	gradientBonus := math.Min(1, math.Abs(gradient)*10)
	return clampScore(base + elevationBonus + gradientBonus)
}

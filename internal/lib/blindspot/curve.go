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

// CurveAnalyzer flags horizontal curves whose available sight distance falls
// short of the stopping sight distance for the estimated travel speed.
type CurveAnalyzer struct {
	cfg      config.CurveConfig
	geoUtils geo.GeoUtils
	roads    RoadGeometryProvider // optional
}

// NewCurveAnalyzer creates a curve geometry analyzer. roads may be nil; the
// analyzer falls back to configured speed defaults without it.
func NewCurveAnalyzer(cfg config.CurveConfig, geoUtils geo.GeoUtils, roads RoadGeometryProvider) *CurveAnalyzer {
	return &CurveAnalyzer{cfg: cfg, geoUtils: geoUtils, roads: roads}
}

// Name identifies the analyzer in run summaries.
func (a *CurveAnalyzer) Name() string { return "curve" }

// RequiredSightDistance is the standard stopping sight distance in meters:
// reaction distance 0.278*v*t plus braking distance v^2/(254*f), with v in
// km/h.
func RequiredSightDistance(speedKmh, reactionTimeSeconds, friction float64) float64 {
	reaction := 0.278 * speedKmh * reactionTimeSeconds
	braking := speedKmh * speedKmh / (254 * friction)
	return reaction + braking
}

// AvailableSightDistance approximates the sight distance around a horizontal
// curve from its middle ordinate for a representative chord: m = R(1-cos(θ/2))
// with the turn angle capped at 90°, then ASD = 2*sqrt(R*m).
func AvailableSightDistance(radiusMeters, turnAngleDegrees float64) float64 {
	theta := math.Min(turnAngleDegrees, 90) * math.Pi / 180
	middleOrdinate := radiusMeters * (1 - math.Cos(theta/2))
	if middleOrdinate <= 0 {
		return math.Inf(1)
	}
	return 2 * math.Sqrt(radiusMeters*middleOrdinate)
}

// Analyze slides a window over the track, fits a circle per window, and
// emits a finding for every critical curve with inadequate sight distance.
func (a *CurveAnalyzer) Analyze(ctx context.Context, r *route.Route) ([]Finding, error) {
	if len(r.Points) < a.cfg.WindowSize {
		return nil, fmt.Errorf("%w: need %d points for curve windows, have %d",
			route.ErrInsufficientPoints, a.cfg.WindowSize, len(r.Points))
	}

	half := a.cfg.WindowSize / 2
	points := r.GeoPoints()

	var findings []Finding
	for i := half; i+half < len(points); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		window := points[i-half : i+half+1]
		fit := a.geoUtils.FitCircle(window)
		if !fit.IsValid {
			// Degenerate geometry (straight or noisy window): skip, not a finding
			continue
		}
		if fit.Radius < a.cfg.MinRadiusMeters || fit.Radius > a.cfg.MaxRadiusMeters {
			continue
		}

		turnAngle, err := a.turnAngle(points, i, half)
		if err != nil {
			continue
		}
		if turnAngle < a.cfg.MinTurnAngleDegrees {
			continue
		}

		speed := a.estimateSpeed(ctx, r, i)
		required := RequiredSightDistance(speed, a.cfg.ReactionTimeSeconds, a.cfg.FrictionCoefficient)
		available := AvailableSightDistance(fit.Radius, turnAngle)
		if available >= required {
			continue
		}

		score := a.riskScore(available/required, turnAngle, fit.Radius)
		confidence := clamp01(0.5 + 0.5*fit.Confidence)

		p := r.Points[i]
		finding, ferr := newFinding(r.ID, p.Latitude, p.Longitude, p.DistanceFromStartKm,
			SpotTypeCurve, math.Max(10, available), 0, score, confidence,
			"curve_sight_distance",
			fmt.Sprintf("%.0f° curve, radius %.0fm: %.0fm sight available vs %.0fm required at %.0fkm/h",
				turnAngle, fit.Radius, available, required, speed))
		if ferr != nil {
			continue
		}
		findings = append(findings, finding)

		// Overlapping windows describe the same curve
		i += half
	}

	return findings, nil
}

// turnAngle is the absolute difference between the first-half and
// second-half bearings of the window, in degrees [0, 180].
func (a *CurveAnalyzer) turnAngle(points []geo.Point, center, half int) (float64, error) {
	entry, err := a.geoUtils.Bearing(points[center-half], points[center])
	if err != nil {
		return 0, err
	}
	exit, err := a.geoUtils.Bearing(points[center], points[center+half])
	if err != nil {
		return 0, err
	}

	diff := math.Abs(exit - entry)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff, nil
}

// estimateSpeed picks a local speed estimate: posted limit from the road
// geometry provider when available, otherwise a terrain heuristic over the
// configured defaults. Provider errors degrade to the heuristic.
func (a *CurveAnalyzer) estimateSpeed(ctx context.Context, r *route.Route, i int) float64 {
	if a.roads != nil {
		attrs, err := a.roads.GetRoadAttributes(ctx, r.Points[i].GeoPoint())
		if err != nil {
			log.Printf("Road attribute lookup failed near point %d: %v", i, err)
		} else if attrs != nil && attrs.SpeedLimitKmh > 0 {
			return attrs.SpeedLimitKmh
		}
	}

	if grade, ok := a.localGrade(r, i); ok && math.Abs(grade) >= a.cfg.MountainousGradePct {
		return a.cfg.MountainousSpeedKmh
	}
	return a.cfg.DefaultSpeedKmh
}

// localGrade computes the percent grade across the neighboring points when
// both carry elevation.
func (a *CurveAnalyzer) localGrade(r *route.Route, i int) (float64, bool) {
	if i == 0 || i+1 >= len(r.Points) {
		return 0, false
	}
	prev, next := r.Points[i-1], r.Points[i+1]
	if prev.ElevationMeters == nil || next.ElevationMeters == nil {
		return 0, false
	}
	run := (next.DistanceFromStartKm - prev.DistanceFromStartKm) * 1000
	if run <= 0 {
		return 0, false
	}
	rise := *next.ElevationMeters - *prev.ElevationMeters
	grade := rise / run * 100
	if math.IsNaN(grade) || math.IsInf(grade, 0) {
		return 0, false
	}
	return grade, true
}

// riskScore rises as available/required drops below 1, as the turn angle
// grows, and as the radius tightens.
func (a *CurveAnalyzer) riskScore(ratio, turnAngle, radius float64) float64 {
	base := 5 + 4*(1-ratio)
	turnBonus := math.Min(1.5, (turnAngle-a.cfg.MinTurnAngleDegrees)/40)
	if turnBonus < 0 {
		turnBonus = 0
	}
	radiusBonus := 0.0
	if radius < 300 {
		radiusBonus = math.Min(1.5, (300-radius)/200)
	}
	return clampScore(base + turnBonus + radiusBonus)
}

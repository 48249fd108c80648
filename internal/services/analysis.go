package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/risk"
	"github.com/saferoute/server/internal/lib/route"
	"github.com/saferoute/server/internal/metrics"
	"github.com/saferoute/server/internal/store"
)

// AnalysisService orchestrates one route's full pipeline: load the track,
// assemble an elevation profile, run the blind-spot analyzers, persist the
// finding set, and fold findings into the weighted risk assessment.
type AnalysisService struct {
	store      store.RouteStore
	aggregator *blindspot.Aggregator
	risk       *risk.Aggregator
	elevations blindspot.ElevationProvider
	metrics    *metrics.Collector
}

// NewAnalysisService wires the pipeline. elevations and collector may be nil;
// without an elevation provider the crest analyzer only runs when the route
// carries its own per-point elevations.
func NewAnalysisService(s store.RouteStore, aggregator *blindspot.Aggregator,
	riskAggregator *risk.Aggregator, elevations blindspot.ElevationProvider,
	collector *metrics.Collector) *AnalysisService {
	return &AnalysisService{
		store:      s,
		aggregator: aggregator,
		risk:       riskAggregator,
		elevations: elevations,
		metrics:    collector,
	}
}

// AnalyzeRoute runs a full blind-spot analysis for a stored route and
// persists the resulting finding set. Findings are only written when the run
// completes; a failed or cancelled run leaves the previous set untouched.
func (s *AnalysisService) AnalyzeRoute(ctx context.Context, routeID string) (*blindspot.Result, error) {
	start := time.Now()

	r, err := s.store.LoadRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load route for analysis: %w", err)
	}

	profile := s.buildProfile(ctx, r)

	result, err := s.aggregator.Analyze(ctx, r, profile)
	s.observe(result, start)
	if err != nil {
		return result, err
	}

	if result.Status == blindspot.StatusCompleted && ctx.Err() == nil {
		if err := s.store.ReplaceBlindSpots(ctx, routeID, result.Findings); err != nil {
			return result, fmt.Errorf("analysis completed but persisting findings failed: %w", err)
		}
	}
	return result, nil
}

// AssessRisk computes and stores the route's weighted risk assessment. The
// blindSpots criterion is always derived from the route's persisted findings;
// externalScores supplies the other ten criteria and may be partial.
func (s *AnalysisService) AssessRisk(ctx context.Context, routeID string,
	externalScores map[string]float64) (*risk.Assessment, error) {
	findings, err := s.store.ListBlindSpots(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings for assessment: %w", err)
	}

	scores := make(map[string]float64, len(externalScores)+1)
	for name, score := range externalScores {
		scores[name] = score
	}
	scores[config.CriterionBlindSpots] = s.risk.BlindSpotScore(findings)

	assessment := s.risk.Assess(routeID, scores)
	if err := s.store.SaveRiskAssessment(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to save assessment: %w", err)
	}
	return assessment, nil
}

// buildProfile assembles the route's elevation profile, one entry per point.
// Per-point elevations win; the provider fills the holes; interior gaps are
// linearly interpolated. Returns nil when no elevation data exists at all.
func (s *AnalysisService) buildProfile(ctx context.Context, r *route.Route) []*float64 {
	profile := make([]*float64, len(r.Points))
	var missing []int
	for i, p := range r.Points {
		if e := p.ElevationMeters; e != nil && !math.IsNaN(*e) && !math.IsInf(*e, 0) {
			profile[i] = e
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 && s.elevations != nil {
		lookup := make([]geo.Point, len(missing))
		for n, i := range missing {
			lookup[n] = r.Points[i].GeoPoint()
		}

		fetched, err := s.elevations.GetElevations(ctx, lookup)
		if err != nil {
			log.Printf("Elevation provider failed for route %s: %v", r.ID, err)
			if s.metrics != nil {
				s.metrics.CountProviderError("elevation")
			}
		} else {
			for n, i := range missing {
				if n < len(fetched) {
					profile[i] = fetched[n]
				}
			}
		}
	}

	interpolateGaps(profile)

	for _, e := range profile {
		if e != nil {
			return profile
		}
	}
	return nil
}

// interpolateGaps fills interior nil runs by linear interpolation between the
// surrounding known elevations. Leading and trailing gaps stay nil; inventing
// data beyond the known range would bias the crest analysis.
func interpolateGaps(profile []*float64) {
	previous := -1
	for i, e := range profile {
		if e == nil {
			continue
		}
		if previous >= 0 && i-previous > 1 {
			span := float64(i - previous)
			for j := previous + 1; j < i; j++ {
				v := *profile[previous] + (*profile[i]-*profile[previous])*float64(j-previous)/span
				value := v
				profile[j] = &value
			}
		}
		previous = i
	}
}

// observe records run metrics when a collector is wired.
func (s *AnalysisService) observe(result *blindspot.Result, start time.Time) {
	if s.metrics == nil || result == nil {
		return
	}
	s.metrics.ObserveAnalysis(string(result.Status), time.Since(start))
	for _, f := range result.Findings {
		s.metrics.CountFinding(string(f.SpotType))
	}
}

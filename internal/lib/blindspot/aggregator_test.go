package blindspot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/geo"
	"github.com/saferoute/server/internal/lib/route"
)

func newTestAggregator(features NearbyFeatureProvider) *Aggregator {
	cfg := config.DefaultConfig().Analysis
	geoUtils := geo.NewGeoUtils()
	return NewAggregator(cfg,
		NewElevationAnalyzer(cfg.Elevation),
		NewCurveAnalyzer(cfg.Curve, geoUtils, nil),
		NewObstructionAnalyzer(cfg.Obstruction, cfg.Elevation.DriverEyeHeightMeters, geoUtils, features))
}

func TestAggregator_FlatStraightRoad(t *testing.T) {
	// 20 colinear points, uniform elevation, no nearby features
	r := straightTrack(t, 20, 50)
	agg := newTestAggregator(&stubFeatureProvider{})

	result, err := agg.Analyze(context.Background(), r, flatProfile(r, 250))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, StatusCompleted, agg.Status())
	assert.Zero(t, result.TotalFindings)
	assert.Empty(t, result.Findings)
	assert.ElementsMatch(t, []string{"elevation", "curve", "obstruction"}, result.AnalyzersRun)
	assert.Empty(t, result.AnalyzersSkipped)
	assert.NotEmpty(t, result.Recommendations)
}

func TestAggregator_HillCrestRoute(t *testing.T) {
	r := straightTrack(t, 15, 50)
	agg := newTestAggregator(&stubFeatureProvider{})

	result, err := agg.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	require.NotZero(t, result.TotalFindings)
	assert.Equal(t, result.TotalFindings, result.CountsByType[SpotTypeCrest])

	// Threshold invariant: everything surviving the filter clears the gate
	for _, f := range result.Findings {
		assert.GreaterOrEqual(t, f.RiskScore, agg.cfg.MinRiskScore)
	}
	assert.Greater(t, result.MaxRiskScore, 0.0)
	assert.Greater(t, result.AverageRiskScore, 0.0)
}

func TestAggregator_SubThresholdCandidatesDiscarded(t *testing.T) {
	r := straightTrack(t, 15, 50)

	cfg := config.DefaultConfig().Analysis
	cfg.MinRiskScore = 9.5 // stricter than any crest candidate here scores
	geoUtils := geo.NewGeoUtils()
	agg := NewAggregator(cfg,
		NewElevationAnalyzer(cfg.Elevation),
		NewCurveAnalyzer(cfg.Curve, geoUtils, nil),
		NewObstructionAnalyzer(cfg.Obstruction, cfg.Elevation.DriverEyeHeightMeters, geoUtils, &stubFeatureProvider{}))

	result, err := agg.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)
	assert.Zero(t, result.TotalFindings, "sub-threshold candidates must never surface")
}

func TestAggregator_MissingProvidersDegradeGracefully(t *testing.T) {
	r := straightTrack(t, 20, 50)
	agg := newTestAggregator(nil)

	// No elevation profile and no feature provider: only the curve analyzer runs
	result, err := agg.Analyze(context.Background(), r, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.ElementsMatch(t, []string{"curve"}, result.AnalyzersRun)
	assert.ElementsMatch(t, []string{"elevation", "obstruction"}, result.AnalyzersSkipped)
	assert.Contains(t, result.Recommendations[len(result.Recommendations)-1], "analyzers had no data")
}

func TestAggregator_InsufficientPointsFails(t *testing.T) {
	shortRoute := &route.Route{ID: "r1", Points: []route.RoutePoint{
		{Latitude: 38.1, Longitude: -120.4, Order: 0},
		{Latitude: 38.2, Longitude: -120.4, Order: 1},
	}}
	agg := newTestAggregator(&stubFeatureProvider{})

	result, err := agg.Analyze(context.Background(), shortRoute, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, route.ErrInsufficientPoints)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StatusFailed, agg.Status())
	assert.NotEmpty(t, result.FailureReason)
}

func TestAggregator_CancellationDiscardsPartialResults(t *testing.T) {
	r := straightTrack(t, 15, 50)
	agg := newTestAggregator(&stubFeatureProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := agg.Analyze(ctx, r, hillProfile())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Empty(t, result.Findings)
}

// blockingFeatureProvider holds every lookup until released, pinning an
// analysis run in flight.
type blockingFeatureProvider struct {
	release chan struct{}
}

func (p *blockingFeatureProvider) GetNearbyFeatures(ctx context.Context, _ geo.Point, _ float64) ([]Feature, error) {
	select {
	case <-p.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAggregator_StatusAcrossConcurrentRuns(t *testing.T) {
	provider := &blockingFeatureProvider{release: make(chan struct{})}
	agg := newTestAggregator(provider)
	assert.Equal(t, StatusIdle, agg.Status())

	r := straightTrack(t, 20, 50)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := agg.Analyze(context.Background(), r, flatProfile(r, 250))
			assert.NoError(t, err)
			assert.Equal(t, StatusCompleted, result.Status)
		}()
	}

	require.Eventually(t, func() bool { return agg.Status() == StatusAnalyzing },
		time.Second, time.Millisecond, "status must read Analyzing while runs are in flight")

	close(provider.release)
	wg.Wait()
	assert.Equal(t, StatusCompleted, agg.Status(),
		"once no run is in flight, status is the last terminal outcome")
}

func TestAggregator_DeterministicAcrossRuns(t *testing.T) {
	r := straightTrack(t, 15, 50)
	agg := newTestAggregator(&stubFeatureProvider{})

	first, err := agg.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)
	second, err := agg.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)

	require.Equal(t, first.TotalFindings, second.TotalFindings)
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].RiskScore, second.Findings[i].RiskScore)
		assert.Equal(t, first.Findings[i].SpotType, second.Findings[i].SpotType)
		assert.Equal(t, first.Findings[i].DistanceFromStartKm, second.Findings[i].DistanceFromStartKm)
	}
	assert.Equal(t, first.CountsByType, second.CountsByType)
}

func TestSeverityForScore_Bands(t *testing.T) {
	assert.Equal(t, SeverityMinor, SeverityForScore(2))
	assert.Equal(t, SeverityModerate, SeverityForScore(4.5))
	assert.Equal(t, SeveritySignificant, SeverityForScore(7))
	assert.Equal(t, SeverityCritical, SeverityForScore(9))
}

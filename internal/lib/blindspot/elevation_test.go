package blindspot

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/config"
)

func elevationConfig() config.ElevationConfig {
	return config.DefaultConfig().Analysis.Elevation
}

// hillProfile rises 25m over 150m (indices 5..8) then falls back, over a
// 15-point track sampled at 50m spacing.
func hillProfile() []*float64 {
	elevations := []float64{
		100, 100, 100, 100, 100,
		100, 108.33, 116.67, 125,
		116, 108, 100, 100, 100, 100,
	}
	profile := make([]*float64, len(elevations))
	for i := range elevations {
		profile[i] = &elevations[i]
	}
	return profile
}

func TestElevationAnalyzer_HillCrest(t *testing.T) {
	r := straightTrack(t, 15, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	findings, err := analyzer.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)
	require.NotEmpty(t, findings, "rising terrain must block the sight line")

	for _, f := range findings {
		assert.Equal(t, SpotTypeCrest, f.SpotType)
		assert.LessOrEqual(t, f.VisibilityDistanceMeters, 100.0,
			"visibility must be under the unobstructed threshold")
		assert.GreaterOrEqual(t, f.VisibilityDistanceMeters, 10.0)
		assert.GreaterOrEqual(t, f.RiskScore, 1.0)
		assert.LessOrEqual(t, f.RiskScore, 10.0)
		assert.GreaterOrEqual(t, f.Confidence, 0.0)
		assert.LessOrEqual(t, f.Confidence, 1.0)
		assert.GreaterOrEqual(t, f.ObstructionHeightMeters, 8.0,
			"blocking excess height must clear the configured minimum")
	}
}

func TestElevationAnalyzer_FlatProfileNoFindings(t *testing.T) {
	r := straightTrack(t, 20, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	findings, err := analyzer.Analyze(context.Background(), r, flatProfile(r, 250))
	require.NoError(t, err)
	assert.Empty(t, findings, "uniform elevation casts no terrain shadows")
}

func TestElevationAnalyzer_Deterministic(t *testing.T) {
	r := straightTrack(t, 15, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	first, err := analyzer.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)
	second, err := analyzer.Analyze(context.Background(), r, hillProfile())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].RiskScore, second[i].RiskScore)
		assert.Equal(t, first[i].VisibilityDistanceMeters, second[i].VisibilityDistanceMeters)
		assert.Equal(t, first[i].DistanceFromStartKm, second[i].DistanceFromStartKm)
	}
}

func TestElevationAnalyzer_FiltersNonFiniteSamples(t *testing.T) {
	r := straightTrack(t, 15, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	profile := hillProfile()
	profile[2] = f64(math.NaN())
	profile[3] = f64(math.Inf(1))
	profile[11] = nil

	findings, err := analyzer.Analyze(context.Background(), r, profile)
	require.NoError(t, err, "garbled samples are filtered, not fatal")
	for _, f := range findings {
		assert.False(t, math.IsNaN(f.RiskScore))
		assert.False(t, math.IsNaN(f.VisibilityDistanceMeters))
	}
}

func TestElevationAnalyzer_ShortProfileSkipped(t *testing.T) {
	r := straightTrack(t, 15, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	profile := make([]*float64, len(r.Points))
	for i := 0; i < 4; i++ {
		profile[i] = f64(100)
	}

	_, err := analyzer.Analyze(context.Background(), r, profile)
	assert.ErrorIs(t, err, ErrProfileTooShort)
}

func TestElevationAnalyzer_MismatchedProfileLength(t *testing.T) {
	r := straightTrack(t, 15, 50)
	analyzer := NewElevationAnalyzer(elevationConfig())

	_, err := analyzer.Analyze(context.Background(), r, make([]*float64, 3))
	assert.Error(t, err)
}

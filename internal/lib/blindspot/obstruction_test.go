package blindspot

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/geo"
)

func obstructionConfig() config.ObstructionConfig {
	return config.DefaultConfig().Analysis.Obstruction
}

type stubFeatureProvider struct {
	features []Feature
	err      error
	calls    int
}

func (s *stubFeatureProvider) GetNearbyFeatures(_ context.Context, _ geo.Point, _ float64) ([]Feature, error) {
	s.calls++
	return s.features, s.err
}

func TestObstructionAnalyzer_CloseTallBuilding(t *testing.T) {
	r := straightTrack(t, 10, 50)

	building := Feature{
		Name:           "grain silo",
		Type:           "building",
		DistanceMeters: 20,
		HeightMeters:   30,
		Location:       geo.Point{Latitude: 38.1395, Longitude: -120.4558},
	}
	provider := &stubFeatureProvider{features: []Feature{building}}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	findings, err := analyzer.Analyze(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, findings, 1, "one structure yields one finding regardless of sample count")

	f := findings[0]
	assert.Equal(t, SpotTypeObstruction, f.SpotType)
	// shadow = 20 * (30-1.2)/30 = 19.2m; visibility = 20 + 19.2 = 39.2m
	assert.InDelta(t, 39.2, f.VisibilityDistanceMeters, 0.01)
	assert.Less(t, f.VisibilityDistanceMeters, 150.0)
	assert.Equal(t, 30.0, f.ObstructionHeightMeters)
	assert.GreaterOrEqual(t, f.RiskScore, 1.0)
	assert.LessOrEqual(t, f.RiskScore, 10.0)
}

func TestObstructionAnalyzer_DistanceTightenedToTrack(t *testing.T) {
	r := straightTrack(t, 10, 50)

	// Reported 80m from the sampled point, but the structure sits ~26m east
	// of the track itself. The closest approach to the road is what matters.
	watertower := Feature{
		Name:           "water tower",
		Type:           "man_made",
		DistanceMeters: 80,
		HeightMeters:   30,
		Location:       geo.Point{Latitude: 38.1395, Longitude: -120.4558},
	}
	provider := &stubFeatureProvider{features: []Feature{watertower}}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	findings, err := analyzer.Analyze(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, findings, 1, "track distance clears the gate the reported distance fails")

	f := findings[0]
	// distance ~26.2m, shadow = 26.2 * (30-1.2)/30 ~ 25.2m
	assert.InDelta(t, 51.4, f.VisibilityDistanceMeters, 0.7)

	// Without a location there is nothing to tighten with; the reported
	// distance stands and the feature is too far
	provider.features = []Feature{{Name: "unplaced", Type: "building", DistanceMeters: 80, HeightMeters: 30}}
	findings, err = analyzer.Analyze(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestObstructionAnalyzer_SamplesAtStride(t *testing.T) {
	r := straightTrack(t, 11, 50)
	provider := &stubFeatureProvider{}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	_, err := analyzer.Analyze(context.Background(), r)
	require.NoError(t, err)
	// Stride 5 over 11 points: indices 0, 5, 10
	assert.Equal(t, 3, provider.calls)
}

func TestObstructionAnalyzer_ShortOrDistantFeaturesIgnored(t *testing.T) {
	r := straightTrack(t, 10, 50)
	provider := &stubFeatureProvider{features: []Feature{
		{Name: "shed", Type: "building", DistanceMeters: 15, HeightMeters: 3},     // too short
		{Name: "tower", Type: "building", DistanceMeters: 500, HeightMeters: 40},  // too far
		{Name: "bad", Type: "building", DistanceMeters: 20, HeightMeters: math.NaN()},
	}}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	findings, err := analyzer.Analyze(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestObstructionAnalyzer_LookupFailureAbsorbed(t *testing.T) {
	r := straightTrack(t, 10, 50)
	provider := &stubFeatureProvider{err: assert.AnError}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	findings, err := analyzer.Analyze(context.Background(), r)
	require.NoError(t, err, "per-lookup failures reduce yield, never abort")
	assert.Empty(t, findings)
}

func TestObstructionAnalyzer_NoProvider(t *testing.T) {
	r := straightTrack(t, 10, 50)
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), nil)

	_, err := analyzer.Analyze(context.Background(), r)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestObstructionAnalyzer_Cancellation(t *testing.T) {
	r := straightTrack(t, 10, 50)
	provider := &stubFeatureProvider{}
	analyzer := NewObstructionAnalyzer(obstructionConfig(), 1.2, geo.NewGeoUtils(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Analyze(ctx, r)
	assert.ErrorIs(t, err, context.Canceled)
}

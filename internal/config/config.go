package config

import (
	"fmt"
	"time"
)

// Config is the complete analysis configuration. All analyzer thresholds and
// risk weights live here so strictness can be tuned without touching the
// analysis logic. One immutable instance is injected into every analyzer and
// the aggregators.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Providers ProvidersConfig `yaml:"providers"`
	Risk      RiskConfig      `yaml:"risk"`
	Store     StoreConfig     `yaml:"store"`
}

// AnalysisConfig holds the blind-spot analyzer thresholds.
type AnalysisConfig struct {
	Elevation   ElevationConfig   `yaml:"elevation"`
	Curve       CurveConfig       `yaml:"curve"`
	Obstruction ObstructionConfig `yaml:"obstruction"`

	// MinRiskScore is the persistence gate: candidates below it are discarded
	MinRiskScore float64 `yaml:"min_risk_score"`
}

// ElevationConfig holds crest sight-line analyzer settings.
type ElevationConfig struct {
	DriverEyeHeightMeters      float64 `yaml:"driver_eye_height_meters"`      // AASHTO 1.2m
	CriticalObjectHeightMeters float64 `yaml:"critical_object_height_meters"` // AASHTO 1.0m
	MinElevationChangeMeters   float64 `yaml:"min_elevation_change_meters"`
	MinVisibilityMeters        float64 `yaml:"min_visibility_meters"`
	LookaheadPoints            int     `yaml:"lookahead_points"`
	MinProfilePoints           int     `yaml:"min_profile_points"`
}

// CurveConfig holds horizontal curve analyzer settings.
type CurveConfig struct {
	WindowSize           int     `yaml:"window_size"`
	MinTurnAngleDegrees  float64 `yaml:"min_turn_angle_degrees"`
	MinRadiusMeters      float64 `yaml:"min_radius_meters"`
	MaxRadiusMeters      float64 `yaml:"max_radius_meters"`
	ReactionTimeSeconds  float64 `yaml:"reaction_time_seconds"`
	FrictionCoefficient  float64 `yaml:"friction_coefficient"`
	DefaultSpeedKmh      float64 `yaml:"default_speed_kmh"`
	MountainousSpeedKmh  float64 `yaml:"mountainous_speed_kmh"`
	MountainousGradePct  float64 `yaml:"mountainous_grade_pct"`
}

// ObstructionConfig holds the shadow analyzer settings.
type ObstructionConfig struct {
	SampleStride          int           `yaml:"sample_stride"`
	SearchRadiusMeters    float64       `yaml:"search_radius_meters"`
	MinHeightMeters       float64       `yaml:"min_height_meters"`
	MaxDistanceMeters     float64       `yaml:"max_distance_meters"`
	MinShadowLengthMeters float64       `yaml:"min_shadow_length_meters"`
	MinVisibilityMeters   float64       `yaml:"min_visibility_meters"`
	LookupTimeout         time.Duration `yaml:"lookup_timeout"`
}

// ProvidersConfig holds external data source settings.
type ProvidersConfig struct {
	Elevation ElevationProviderConfig `yaml:"elevation"`
	Overpass  OverpassConfig          `yaml:"overpass"`
	Roads     RoadsProviderConfig     `yaml:"roads"`
}

// ElevationProviderConfig controls elevation lookup batching.
type ElevationProviderConfig struct {
	BaseURL       string        `yaml:"base_url"`
	BatchSize     int           `yaml:"batch_size"`
	BatchDelay    time.Duration `yaml:"batch_delay"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// OverpassConfig controls nearby-feature lookups.
type OverpassConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RoadsProviderConfig controls the optional road-attribute lookups.
type RoadsProviderConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Enabled  bool          `yaml:"enabled"`
}

// RiskConfig holds the multi-criteria aggregation settings.
type RiskConfig struct {
	// Weights per criterion; must sum to exactly 100
	Weights map[string]float64 `yaml:"weights"`

	// BlindSpotBaseline is the blindSpots criterion score when a route has
	// no findings. No findings is not zero risk.
	BlindSpotBaseline float64 `yaml:"blind_spot_baseline"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Criterion names for the eleven-way weight table.
const (
	CriterionRoadConditions    = "roadConditions"
	CriterionAccidentProne     = "accidentProne"
	CriterionSharpTurns        = "sharpTurns"
	CriterionBlindSpots        = "blindSpots"
	CriterionTwoWayTraffic     = "twoWayTraffic"
	CriterionTrafficDensity    = "trafficDensity"
	CriterionWeatherConditions = "weatherConditions"
	CriterionEmergencyServices = "emergencyServices"
	CriterionNetworkCoverage   = "networkCoverage"
	CriterionAmenities         = "amenities"
	CriterionSecurityIssues    = "securityIssues"
)

// CriterionNames lists all eleven criteria in weight order.
var CriterionNames = []string{
	CriterionRoadConditions,
	CriterionAccidentProne,
	CriterionSharpTurns,
	CriterionBlindSpots,
	CriterionTwoWayTraffic,
	CriterionTrafficDensity,
	CriterionWeatherConditions,
	CriterionEmergencyServices,
	CriterionNetworkCoverage,
	CriterionAmenities,
	CriterionSecurityIssues,
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Elevation: ElevationConfig{
				DriverEyeHeightMeters:      1.2,
				CriticalObjectHeightMeters: 1.0,
				MinElevationChangeMeters:   8.0,
				MinVisibilityMeters:        100.0,
				LookaheadPoints:            10,
				MinProfilePoints:           10,
			},
			Curve: CurveConfig{
				WindowSize:          7,
				MinTurnAngleDegrees: 45.0,
				MinRadiusMeters:     20.0,
				MaxRadiusMeters:     600.0,
				ReactionTimeSeconds: 2.5,
				FrictionCoefficient: 0.35, // wet pavement
				DefaultSpeedKmh:     60.0,
				MountainousSpeedKmh: 45.0,
				MountainousGradePct: 5.0,
			},
			Obstruction: ObstructionConfig{
				SampleStride:          5,
				SearchRadiusMeters:    100.0,
				MinHeightMeters:       8.0,
				MaxDistanceMeters:     60.0,
				MinShadowLengthMeters: 5.0,
				MinVisibilityMeters:   150.0,
				LookupTimeout:         15 * time.Second,
			},
			MinRiskScore: 4.0,
		},
		Providers: ProvidersConfig{
			Elevation: ElevationProviderConfig{
				BaseURL:       "https://api.open-elevation.com",
				BatchSize:     100,
				BatchDelay:    200 * time.Millisecond,
				MaxConcurrent: 3,
				Timeout:       30 * time.Second,
				CacheTTL:      24 * time.Hour,
			},
			Overpass: OverpassConfig{
				BaseURL:  "https://overpass-api.de",
				Timeout:  30 * time.Second,
				CacheTTL: 6 * time.Hour,
			},
			Roads: RoadsProviderConfig{
				BaseURL:  "https://overpass-api.de",
				Timeout:  30 * time.Second,
				CacheTTL: 6 * time.Hour,
				Enabled:  false,
			},
		},
		Risk: RiskConfig{
			Weights: map[string]float64{
				CriterionRoadConditions:    15,
				CriterionAccidentProne:     15,
				CriterionSharpTurns:        10,
				CriterionBlindSpots:        10,
				CriterionTwoWayTraffic:     10,
				CriterionTrafficDensity:    10,
				CriterionWeatherConditions: 10,
				CriterionEmergencyServices: 5,
				CriterionNetworkCoverage:   5,
				CriterionAmenities:         5,
				CriterionSecurityIssues:    5,
			},
			BlindSpotBaseline: 3.0,
		},
		Store: StoreConfig{},
	}
}

// Validate checks weight closure and threshold sanity.
func (c *Config) Validate() error {
	total := 0.0
	for _, name := range CriterionNames {
		weight, ok := c.Risk.Weights[name]
		if !ok {
			return fmt.Errorf("risk weight missing for criterion %q", name)
		}
		if weight < 0 {
			return fmt.Errorf("risk weight for %q is negative", name)
		}
		total += weight
	}
	if total != 100 {
		return fmt.Errorf("risk weights must sum to 100, got %.2f", total)
	}
	if len(c.Risk.Weights) != len(CriterionNames) {
		return fmt.Errorf("expected %d risk criteria, got %d", len(CriterionNames), len(c.Risk.Weights))
	}

	if c.Analysis.Curve.WindowSize < 5 {
		return fmt.Errorf("curve window size must be at least 5, got %d", c.Analysis.Curve.WindowSize)
	}
	if c.Analysis.Elevation.MinProfilePoints < 3 {
		return fmt.Errorf("elevation analyzer needs at least 3 profile points, got %d", c.Analysis.Elevation.MinProfilePoints)
	}
	if c.Analysis.Obstruction.SampleStride < 1 {
		return fmt.Errorf("obstruction sample stride must be positive, got %d", c.Analysis.Obstruction.SampleStride)
	}
	if c.Analysis.MinRiskScore < 1 || c.Analysis.MinRiskScore > 10 {
		return fmt.Errorf("min risk score must be in [1, 10], got %.2f", c.Analysis.MinRiskScore)
	}
	if c.Analysis.Curve.FrictionCoefficient <= 0 {
		return fmt.Errorf("friction coefficient must be positive")
	}
	return nil
}

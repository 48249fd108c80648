package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/risk"
	"github.com/saferoute/server/internal/lib/route"
)

// GormStore is the Postgres-backed RouteStore.
type GormStore struct {
	db *gorm.DB
}

var _ RouteStore = (*GormStore)(nil)

// routeModel is the routes table. The point track is stored as a JSON column;
// nothing queries individual points server-side.
type routeModel struct {
	ID        string             `gorm:"primaryKey"`
	Name      string             `gorm:"not null"`
	Points    []route.RoutePoint `gorm:"serializer:json;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (routeModel) TableName() string { return "routes" }

// findingModel is the blind_spots table, one row per finding.
type findingModel struct {
	ID                       string  `gorm:"primaryKey"`
	RouteID                  string  `gorm:"index;not null"`
	Latitude                 float64 `gorm:"not null"`
	Longitude                float64 `gorm:"not null"`
	DistanceFromStartKm      float64
	SpotType                 string `gorm:"not null"`
	VisibilityDistanceMeters float64
	ObstructionHeightMeters  float64
	RiskScore                float64 `gorm:"not null"`
	SeverityLevel            string  `gorm:"not null"`
	AnalysisMethod           string
	Confidence               float64
	Details                  string
	CreatedAt                time.Time
}

func (findingModel) TableName() string { return "blind_spots" }

// assessmentModel is the risk_assessments table, keyed by route so each route
// carries exactly one current assessment.
type assessmentModel struct {
	RouteID            string             `gorm:"primaryKey"`
	AssessmentID       string             `gorm:"not null"`
	Scores             map[string]float64 `gorm:"serializer:json;not null"`
	TotalWeightedScore float64            `gorm:"not null"`
	RiskGrade          string             `gorm:"not null"`
	Explanation        string
	CalculatedAt       time.Time
}

func (assessmentModel) TableName() string { return "risk_assessments" }

// NewGormStore connects to Postgres and migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&routeModel{}, &findingModel{}, &assessmentModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveRoute upserts a route.
func (s *GormStore) SaveRoute(ctx context.Context, r *route.Route) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("route must have an ID")
	}

	model := routeModel{ID: r.ID, Name: r.Name, Points: r.Points}
	result := s.db.WithContext(ctx).Save(&model)
	if result.Error != nil {
		return fmt.Errorf("failed to save route %s: %w", r.ID, result.Error)
	}
	return nil
}

// LoadRoute returns the stored route or ErrRouteNotFound.
func (s *GormStore) LoadRoute(ctx context.Context, routeID string) (*route.Route, error) {
	var model routeModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", routeID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load route %s: %w", routeID, result.Error)
	}
	return &route.Route{ID: model.ID, Name: model.Name, Points: model.Points}, nil
}

// ReplaceBlindSpots swaps the route's finding set inside one transaction so
// readers never see a partial replacement.
func (s *GormStore) ReplaceBlindSpots(ctx context.Context, routeID string, findings []blindspot.Finding) error {
	if _, err := s.LoadRoute(ctx, routeID); err != nil {
		return err
	}

	models := make([]findingModel, len(findings))
	for i, f := range findings {
		models[i] = findingModel{
			ID:                       f.ID,
			RouteID:                  routeID,
			Latitude:                 f.Latitude,
			Longitude:                f.Longitude,
			DistanceFromStartKm:      f.DistanceFromStartKm,
			SpotType:                 string(f.SpotType),
			VisibilityDistanceMeters: f.VisibilityDistanceMeters,
			ObstructionHeightMeters:  f.ObstructionHeightMeters,
			RiskScore:                f.RiskScore,
			SeverityLevel:            string(f.SeverityLevel),
			AnalysisMethod:           f.AnalysisMethod,
			Confidence:               f.Confidence,
			Details:                  f.Details,
			CreatedAt:                f.CreatedAt,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", routeID).Delete(&findingModel{}).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}
		return tx.Create(&models).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace blind spots for route %s: %w", routeID, err)
	}
	return nil
}

// ListBlindSpots returns the route's findings ordered by distance along the
// route.
func (s *GormStore) ListBlindSpots(ctx context.Context, routeID string) ([]blindspot.Finding, error) {
	if _, err := s.LoadRoute(ctx, routeID); err != nil {
		return nil, err
	}

	var models []findingModel
	result := s.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("distance_from_start_km, spot_type").
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list blind spots for route %s: %w", routeID, result.Error)
	}

	findings := make([]blindspot.Finding, len(models))
	for i, m := range models {
		findings[i] = blindspot.Finding{
			ID:                       m.ID,
			RouteID:                  m.RouteID,
			Latitude:                 m.Latitude,
			Longitude:                m.Longitude,
			DistanceFromStartKm:      m.DistanceFromStartKm,
			SpotType:                 blindspot.SpotType(m.SpotType),
			VisibilityDistanceMeters: m.VisibilityDistanceMeters,
			ObstructionHeightMeters:  m.ObstructionHeightMeters,
			RiskScore:                m.RiskScore,
			SeverityLevel:            blindspot.Severity(m.SeverityLevel),
			AnalysisMethod:           m.AnalysisMethod,
			Confidence:               m.Confidence,
			Details:                  m.Details,
			CreatedAt:                m.CreatedAt,
		}
	}
	return findings, nil
}

// SaveRiskAssessment upserts the route's current assessment.
func (s *GormStore) SaveRiskAssessment(ctx context.Context, a *risk.Assessment) error {
	if a == nil || a.RouteID == "" {
		return fmt.Errorf("assessment must reference a route")
	}

	model := assessmentModel{
		RouteID:            a.RouteID,
		AssessmentID:       a.ID,
		Scores:             a.Scores,
		TotalWeightedScore: a.TotalWeightedScore,
		RiskGrade:          string(a.RiskGrade),
		Explanation:        a.Explanation,
		CalculatedAt:       a.CalculatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save assessment for route %s: %w", a.RouteID, err)
	}
	return nil
}

// LoadRiskAssessment returns the route's current assessment or
// ErrAssessmentNotFound.
func (s *GormStore) LoadRiskAssessment(ctx context.Context, routeID string) (*risk.Assessment, error) {
	var model assessmentModel
	result := s.db.WithContext(ctx).First(&model, "route_id = ?", routeID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: route %s", ErrAssessmentNotFound, routeID)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load assessment for route %s: %w", routeID, result.Error)
	}

	return &risk.Assessment{
		ID:                 model.AssessmentID,
		RouteID:            model.RouteID,
		Scores:             model.Scores,
		TotalWeightedScore: model.TotalWeightedScore,
		RiskGrade:          risk.Grade(model.RiskGrade),
		Explanation:        model.Explanation,
		CalculatedAt:       model.CalculatedAt,
	}, nil
}

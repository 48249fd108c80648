package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/blindspot"
)

// Aggregator folds the eleven per-criterion scores into one weighted total
// and a letter grade. Weights are validated at construction and never change
// afterwards.
type Aggregator struct {
	cfg config.RiskConfig
}

// NewAggregator creates a risk aggregator. The weight table must cover all
// eleven criteria and sum to 100.
func NewAggregator(cfg config.RiskConfig) (*Aggregator, error) {
	total := 0.0
	for _, name := range config.CriterionNames {
		weight, ok := cfg.Weights[name]
		if !ok {
			return nil, fmt.Errorf("risk weight missing for criterion %q", name)
		}
		total += weight
	}
	if total != 100 {
		return nil, fmt.Errorf("risk weights must sum to 100, got %.2f", total)
	}
	return &Aggregator{cfg: cfg}, nil
}

// CalculateWeightedScore computes sum(score_i * weight_i) / 100 with each
// score clamped to [1, 10] first. Missing criteria take the documented
// neutral default.
func (a *Aggregator) CalculateWeightedScore(scores map[string]float64) float64 {
	total := 0.0
	for _, name := range config.CriterionNames {
		score, ok := scores[name]
		if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
			score = DefaultCriterionScore
		}
		total += clampCriterion(score) * a.cfg.Weights[name]
	}
	return total / 100
}

// GradeForScore maps a weighted score onto its letter grade. Scores outside
// the [0, 10] domain grade F defensively.
func GradeForScore(score float64) Grade {
	if score < 0 || score > 10 || math.IsNaN(score) {
		return GradeF
	}
	switch {
	case score <= 2.0:
		return GradeA
	case score <= 4.0:
		return GradeB
	case score <= 6.0:
		return GradeC
	case score <= 8.0:
		return GradeD
	default:
		return GradeF
	}
}

// BlindSpotScore derives the blindSpots criterion from a route's persisted
// finding set: the mean finding risk score, nudged up when any finding is
// critical. An empty set scores the configured baseline, because "no
// findings" is not "no risk".
func (a *Aggregator) BlindSpotScore(findings []blindspot.Finding) float64 {
	if len(findings) == 0 {
		return a.cfg.BlindSpotBaseline
	}

	total := 0.0
	critical := false
	for _, f := range findings {
		total += f.RiskScore
		if f.SeverityLevel == blindspot.SeverityCritical {
			critical = true
		}
	}
	score := total / float64(len(findings))
	if critical {
		score += 0.5
	}
	return clampCriterion(score)
}

// Assess builds the full route assessment from the eleven criterion scores.
func (a *Aggregator) Assess(routeID string, scores map[string]float64) *Assessment {
	// Normalize to a complete score map so the stored assessment always
	// carries all eleven criteria.
	normalized := make(map[string]float64, len(config.CriterionNames))
	for _, name := range config.CriterionNames {
		score, ok := scores[name]
		if !ok || math.IsNaN(score) || math.IsInf(score, 0) {
			score = DefaultCriterionScore
		}
		normalized[name] = clampCriterion(score)
	}

	total := a.CalculateWeightedScore(normalized)
	grade := GradeForScore(total)

	return &Assessment{
		ID:                 uuid.NewString(),
		RouteID:            routeID,
		Scores:             normalized,
		TotalWeightedScore: total,
		RiskGrade:          grade,
		Explanation:        explanation(total, grade, normalized),
		CalculatedAt:       time.Now().UTC(),
	}
}

// explanation builds deterministic summary text naming the dominant risk
// contributors.
func explanation(total float64, grade Grade, scores map[string]float64) string {
	worstName := ""
	worstScore := 0.0
	for _, name := range config.CriterionNames {
		if scores[name] > worstScore {
			worstName = name
			worstScore = scores[name]
		}
	}

	switch grade {
	case GradeA:
		return fmt.Sprintf("Low risk route (%.1f/10). No criterion stands out.", total)
	case GradeB:
		return fmt.Sprintf("Generally safe route (%.1f/10). Highest contributor: %s (%.1f).", total, worstName, worstScore)
	case GradeC:
		return fmt.Sprintf("Moderate risk route (%.1f/10). Highest contributor: %s (%.1f).", total, worstName, worstScore)
	case GradeD:
		return fmt.Sprintf("High risk route (%.1f/10). Plan mitigations for %s (%.1f).", total, worstName, worstScore)
	default:
		return fmt.Sprintf("Severe risk route (%.1f/10). Reconsider travel; %s scores %.1f.", total, worstName, worstScore)
	}
}

func clampCriterion(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

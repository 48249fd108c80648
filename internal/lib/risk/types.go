package risk

import "time"

// Grade is the route risk letter grade. A is safest, F is worst.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// DefaultCriterionScore substitutes for a criterion no subsystem supplied.
// A missing input is neutral risk, never a crash and never zero.
const DefaultCriterionScore = 5.0

// CriterionScore is one named criterion input with an optional breakdown.
type CriterionScore struct {
	Name      string             `json:"name"`
	Score     float64            `json:"score"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
}

// Assessment is the route-level weighted result. Recomputed wholesale
// whenever criteria change; one assessment is current per route.
type Assessment struct {
	ID                 string             `json:"id"`
	RouteID            string             `json:"route_id"`
	Scores             map[string]float64 `json:"scores"`
	TotalWeightedScore float64            `json:"total_weighted_score"`
	RiskGrade          Grade              `json:"risk_grade"`
	Explanation        string             `json:"explanation"`
	CalculatedAt       time.Time          `json:"calculated_at"`
}

package blindspot

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// newFinding builds a validated finding. It returns an error when any
// computed field is non-finite or outside its documented domain; callers
// drop such candidates instead of persisting placeholders.
func newFinding(routeID string, lat, lng, distKm float64, spotType SpotType,
	visibility, obstructionHeight, riskScore, confidence float64,
	method, details string) (Finding, error) {

	for name, v := range map[string]float64{
		"latitude":           lat,
		"longitude":          lng,
		"distance":           distKm,
		"visibility":         visibility,
		"obstruction_height": obstructionHeight,
		"risk_score":         riskScore,
		"confidence":         confidence,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Finding{}, fmt.Errorf("finding field %s is not finite", name)
		}
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Finding{}, fmt.Errorf("finding has invalid coordinates (%.6f, %.6f)", lat, lng)
	}
	if visibility < 10 {
		return Finding{}, fmt.Errorf("visibility distance %.1fm below 10m floor", visibility)
	}
	if riskScore < 1 || riskScore > 10 {
		return Finding{}, fmt.Errorf("risk score %.2f outside [1, 10]", riskScore)
	}
	if confidence < 0 || confidence > 1 {
		return Finding{}, fmt.Errorf("confidence %.2f outside [0, 1]", confidence)
	}

	return Finding{
		ID:                       uuid.NewString(),
		RouteID:                  routeID,
		Latitude:                 lat,
		Longitude:                lng,
		DistanceFromStartKm:      distKm,
		SpotType:                 spotType,
		VisibilityDistanceMeters: visibility,
		ObstructionHeightMeters:  obstructionHeight,
		RiskScore:                riskScore,
		SeverityLevel:            SeverityForScore(riskScore),
		AnalysisMethod:           method,
		Confidence:               confidence,
		Details:                  details,
		CreatedAt:                time.Now().UTC(),
	}, nil
}

// clampScore bounds a risk score to [1, 10].
func clampScore(score float64) float64 {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// clamp01 bounds a confidence to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

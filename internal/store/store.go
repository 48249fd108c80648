package store

import (
	"context"
	"errors"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/risk"
	"github.com/saferoute/server/internal/lib/route"
)

// ErrRouteNotFound is returned when a route ID has never been saved.
var ErrRouteNotFound = errors.New("route not found")

// ErrAssessmentNotFound is returned when a route has no stored assessment.
var ErrAssessmentNotFound = errors.New("risk assessment not found")

// RouteStore persists routes, their blind-spot findings, and their risk
// assessments. A route's finding set is only ever replaced atomically, so
// readers never observe a half-updated analysis.
type RouteStore interface {
	SaveRoute(ctx context.Context, r *route.Route) error
	LoadRoute(ctx context.Context, routeID string) (*route.Route, error)

	// ReplaceBlindSpots swaps the route's entire finding set in one step.
	ReplaceBlindSpots(ctx context.Context, routeID string, findings []blindspot.Finding) error
	ListBlindSpots(ctx context.Context, routeID string) ([]blindspot.Finding, error)

	SaveRiskAssessment(ctx context.Context, a *risk.Assessment) error
	LoadRiskAssessment(ctx context.Context, routeID string) (*risk.Assessment, error)
}

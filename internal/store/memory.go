package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/risk"
	"github.com/saferoute/server/internal/lib/route"
)

// MemoryStore is an in-process RouteStore for tests and single-shot CLI runs.
type MemoryStore struct {
	mutex       sync.RWMutex
	routes      map[string]*route.Route
	findings    map[string][]blindspot.Finding
	assessments map[string]*risk.Assessment
}

var _ RouteStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:      make(map[string]*route.Route),
		findings:    make(map[string][]blindspot.Finding),
		assessments: make(map[string]*risk.Assessment),
	}
}

// SaveRoute stores or overwrites a route.
func (s *MemoryStore) SaveRoute(ctx context.Context, r *route.Route) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("route must have an ID")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *r
	copied.Points = append([]route.RoutePoint(nil), r.Points...)
	s.routes[r.ID] = &copied
	return nil
}

// LoadRoute returns the stored route or ErrRouteNotFound.
func (s *MemoryStore) LoadRoute(ctx context.Context, routeID string) (*route.Route, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}

	copied := *r
	copied.Points = append([]route.RoutePoint(nil), r.Points...)
	return &copied, nil
}

// ReplaceBlindSpots atomically swaps the route's finding set.
func (s *MemoryStore) ReplaceBlindSpots(ctx context.Context, routeID string, findings []blindspot.Finding) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.routes[routeID]; !ok {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	s.findings[routeID] = append([]blindspot.Finding(nil), findings...)
	return nil
}

// ListBlindSpots returns the route's current finding set. A route with no
// analysis yet has an empty set, not an error.
func (s *MemoryStore) ListBlindSpots(ctx context.Context, routeID string) ([]blindspot.Finding, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, ok := s.routes[routeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	return append([]blindspot.Finding(nil), s.findings[routeID]...), nil
}

// SaveRiskAssessment stores the route's current assessment, replacing any
// previous one.
func (s *MemoryStore) SaveRiskAssessment(ctx context.Context, a *risk.Assessment) error {
	if a == nil || a.RouteID == "" {
		return fmt.Errorf("assessment must reference a route")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	copied := *a
	copied.Scores = make(map[string]float64, len(a.Scores))
	for name, score := range a.Scores {
		copied.Scores[name] = score
	}
	s.assessments[a.RouteID] = &copied
	return nil
}

// LoadRiskAssessment returns the route's current assessment or
// ErrAssessmentNotFound.
func (s *MemoryStore) LoadRiskAssessment(ctx context.Context, routeID string) (*risk.Assessment, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	a, ok := s.assessments[routeID]
	if !ok {
		return nil, fmt.Errorf("%w: route %s", ErrAssessmentNotFound, routeID)
	}

	copied := *a
	copied.Scores = make(map[string]float64, len(a.Scores))
	for name, score := range a.Scores {
		copied.Scores[name] = score
	}
	return &copied, nil
}

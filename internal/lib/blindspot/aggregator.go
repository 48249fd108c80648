package blindspot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/saferoute/server/internal/config"
	"github.com/saferoute/server/internal/lib/route"
)

// Result is the terminal state of one analysis run.
type Result struct {
	RouteID              string           `json:"route_id"`
	Status               RunStatus        `json:"status"`
	Findings             []Finding        `json:"findings"`
	TotalFindings        int              `json:"total_findings"`
	CountsByType         map[SpotType]int `json:"counts_by_type"`
	SeverityDistribution map[Severity]int `json:"severity_distribution"`
	AverageRiskScore     float64          `json:"average_risk_score"`
	MaxRiskScore         float64          `json:"max_risk_score"`
	AnalyzersRun         []string         `json:"analyzers_run"`
	AnalyzersSkipped     []string         `json:"analyzers_skipped"`
	Recommendations      []string         `json:"recommendations"`
	FailureReason        string           `json:"failure_reason,omitempty"`
	CompletedAt          time.Time        `json:"completed_at"`
}

// Aggregator runs the three blind-spot analyzers over a route, filters
// sub-threshold candidates, and materializes the finding list.
//
// State machine: Idle -> Analyzing -> Completed | Failed. Failed is reached
// only for input errors (missing route, too few points); an individual
// analyzer failure degrades to fewer findings and a skip record.
//
// Analyze is safe for concurrent use; each run's terminal state travels in
// its Result. The aggregator-level status is an observability summary:
// Analyzing while any run is in flight, afterwards the terminal status of
// the run that finished last.
type Aggregator struct {
	cfg         config.AnalysisConfig
	elevation   *ElevationAnalyzer
	curve       *CurveAnalyzer
	obstruction *ObstructionAnalyzer

	mu     sync.RWMutex
	active int
	status RunStatus
}

// NewAggregator wires the three analyzers behind one entry point.
func NewAggregator(cfg config.AnalysisConfig, elevation *ElevationAnalyzer,
	curve *CurveAnalyzer, obstruction *ObstructionAnalyzer) *Aggregator {
	return &Aggregator{
		cfg:         cfg,
		elevation:   elevation,
		curve:       curve,
		obstruction: obstruction,
		status:      StatusIdle,
	}
}

// Status reports the aggregator's current state: Analyzing while any run is
// in flight, otherwise the terminal status of the most recently finished run
// (Idle before the first).
func (a *Aggregator) Status() RunStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.active > 0 {
		return StatusAnalyzing
	}
	return a.status
}

func (a *Aggregator) begin() {
	a.mu.Lock()
	a.active++
	a.mu.Unlock()
}

func (a *Aggregator) finish(s RunStatus) {
	a.mu.Lock()
	a.active--
	a.status = s
	a.mu.Unlock()
}

// analyzerOutcome is one analyzer's slot in the fan-out. Each goroutine
// writes only its own slot; the merge happens after all complete.
type analyzerOutcome struct {
	name     string
	findings []Finding
	err      error
}

// Analyze runs a full analysis pass for the route. profile may be nil when
// no elevation data exists, which skips the elevation analyzer.
func (a *Aggregator) Analyze(ctx context.Context, r *route.Route, profile []*float64) (*Result, error) {
	a.begin()

	if r == nil {
		return a.fail("", "route not loaded"), fmt.Errorf("route not loaded")
	}
	if err := r.Validate(); err != nil {
		return a.fail(r.ID, err.Error()), err
	}

	outcomes := make([]analyzerOutcome, 3)
	var wg sync.WaitGroup
	run := func(slot int, name string, fn func() ([]Finding, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			findings, err := fn()
			outcomes[slot] = analyzerOutcome{name: name, findings: findings, err: err}
		}()
	}

	run(0, a.elevation.Name(), func() ([]Finding, error) {
		if profile == nil {
			return nil, ErrProviderUnavailable
		}
		return a.elevation.Analyze(ctx, r, profile)
	})
	run(1, a.curve.Name(), func() ([]Finding, error) {
		return a.curve.Analyze(ctx, r)
	})
	run(2, a.obstruction.Name(), func() ([]Finding, error) {
		return a.obstruction.Analyze(ctx, r)
	})
	wg.Wait()

	// Cancellation discards partial results as a unit
	if err := ctx.Err(); err != nil {
		return a.fail(r.ID, "analysis cancelled"), err
	}

	result := &Result{
		RouteID:              r.ID,
		Status:               StatusCompleted,
		CountsByType:         make(map[SpotType]int),
		SeverityDistribution: make(map[Severity]int),
	}

	for _, outcome := range outcomes {
		if outcome.err != nil {
			if errors.Is(outcome.err, ErrProviderUnavailable) {
				log.Printf("Analyzer %s skipped: provider unavailable", outcome.name)
			} else {
				log.Printf("Analyzer %s failed: %v", outcome.name, outcome.err)
			}
			result.AnalyzersSkipped = append(result.AnalyzersSkipped, outcome.name)
			continue
		}
		result.AnalyzersRun = append(result.AnalyzersRun, outcome.name)

		for _, finding := range outcome.findings {
			if finding.RiskScore < a.cfg.MinRiskScore {
				continue
			}
			result.Findings = append(result.Findings, finding)
		}
	}

	// Deterministic ordering regardless of analyzer completion order
	sort.Slice(result.Findings, func(i, j int) bool {
		if result.Findings[i].DistanceFromStartKm != result.Findings[j].DistanceFromStartKm {
			return result.Findings[i].DistanceFromStartKm < result.Findings[j].DistanceFromStartKm
		}
		return result.Findings[i].SpotType < result.Findings[j].SpotType
	})

	a.summarize(result)
	a.finish(StatusCompleted)
	return result, nil
}

// fail moves the run to Failed and builds the terminal result.
func (a *Aggregator) fail(routeID, reason string) *Result {
	a.finish(StatusFailed)
	return &Result{
		RouteID:       routeID,
		Status:        StatusFailed,
		FailureReason: reason,
		CompletedAt:   time.Now().UTC(),
	}
}

// summarize fills counts, score statistics, and recommendation text.
func (a *Aggregator) summarize(result *Result) {
	result.TotalFindings = len(result.Findings)
	result.CompletedAt = time.Now().UTC()

	total := 0.0
	for _, f := range result.Findings {
		result.CountsByType[f.SpotType]++
		result.SeverityDistribution[f.SeverityLevel]++
		total += f.RiskScore
		if f.RiskScore > result.MaxRiskScore {
			result.MaxRiskScore = f.RiskScore
		}
	}
	if result.TotalFindings > 0 {
		result.AverageRiskScore = total / float64(result.TotalFindings)
	}

	result.Recommendations = a.recommendations(result)
}

// recommendations builds deterministic advisory text from the finding mix.
func (a *Aggregator) recommendations(result *Result) []string {
	if result.TotalFindings == 0 {
		if len(result.AnalyzersSkipped) > 0 {
			return []string{fmt.Sprintf("No blind spots detected, but %d of 3 analyzers had no data; coverage is partial.",
				len(result.AnalyzersSkipped))}
		}
		return []string{"No significant blind spots detected along this route."}
	}

	var recs []string
	if result.SeverityDistribution[SeverityCritical] > 0 {
		recs = append(recs, fmt.Sprintf("%d critical blind spots: reduce speed well below posted limits at the flagged locations.",
			result.SeverityDistribution[SeverityCritical]))
	}
	if n := result.CountsByType[SpotTypeCrest]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d crest blind spots: expect hidden oncoming traffic beyond hill tops.", n))
	}
	if n := result.CountsByType[SpotTypeCurve]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d curves with inadequate sight distance: avoid overtaking on this route.", n))
	}
	if n := result.CountsByType[SpotTypeObstruction]; n > 0 {
		recs = append(recs, fmt.Sprintf("%d locations where structures block the view of the road ahead.", n))
	}
	if len(result.AnalyzersSkipped) > 0 {
		recs = append(recs, fmt.Sprintf("Partial coverage: %d of 3 analyzers had no data.", len(result.AnalyzersSkipped)))
	}
	return recs
}

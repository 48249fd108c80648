package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the analysis pipeline's Prometheus instruments.
type Collector struct {
	analysesTotal    *prometheus.CounterVec
	findingsTotal    *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// NewCollector creates and registers the collectors on reg. Pass
// prometheus.NewRegistry() in tests to avoid global registry collisions.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saferoute",
			Name:      "analyses_total",
			Help:      "Route analyses by terminal status.",
		}, []string{"status"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saferoute",
			Name:      "findings_total",
			Help:      "Persisted blind-spot findings by spot type.",
		}, []string{"spot_type"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saferoute",
			Name:      "provider_errors_total",
			Help:      "External data provider failures by provider.",
		}, []string{"provider"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "saferoute",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of full route analyses.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	reg.MustRegister(c.analysesTotal, c.findingsTotal, c.providerErrors, c.analysisDuration)
	return c
}

// ObserveAnalysis records one finished analysis run.
func (c *Collector) ObserveAnalysis(status string, duration time.Duration) {
	c.analysesTotal.WithLabelValues(status).Inc()
	c.analysisDuration.Observe(duration.Seconds())
}

// CountFinding records one persisted finding.
func (c *Collector) CountFinding(spotType string) {
	c.findingsTotal.WithLabelValues(spotType).Inc()
}

// CountProviderError records one provider failure.
func (c *Collector) CountProviderError(provider string) {
	c.providerErrors.WithLabelValues(provider).Inc()
}

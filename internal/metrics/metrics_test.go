package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveAnalysis("completed", 120*time.Millisecond)
	c.ObserveAnalysis("completed", 80*time.Millisecond)
	c.ObserveAnalysis("failed", time.Millisecond)
	c.CountFinding("crest")
	c.CountFinding("crest")
	c.CountFinding("curve")
	c.CountProviderError("elevation")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.analysesTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysesTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.findingsTotal.WithLabelValues("crest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findingsTotal.WithLabelValues("curve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerErrors.WithLabelValues("elevation")))
}

func TestNewCollector_RegistersEverything(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	families, err := reg.Gather()
	assert.NoError(t, err)
	// Histograms without observations don't gather; the three counters with no
	// children don't either. Registration itself must not panic or collide.
	assert.NotNil(t, families)

	assert.Panics(t, func() { NewCollector(reg) }, "duplicate registration must be rejected")
}

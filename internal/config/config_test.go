package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_WeightClosure(t *testing.T) {
	cfg := DefaultConfig()

	total := 0.0
	for _, w := range cfg.Risk.Weights {
		total += w
	}
	assert.Equal(t, 100.0, total, "weights must sum to exactly 100")

	cfg.Risk.Weights[CriterionAmenities] = 6
	assert.Error(t, cfg.Validate(), "weight sum of 101 must be rejected")
}

func TestValidate_MissingCriterion(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Risk.Weights, CriterionSecurityIssues)
	assert.Error(t, cfg.Validate())
}

func TestValidate_ThresholdSanity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Curve.WindowSize = 3
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Analysis.MinRiskScore = 12
	assert.Error(t, cfg.Validate())
}

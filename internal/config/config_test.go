package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.Thresholds.PatternFrequencyMin)
	assert.Equal(t, 6, cfg.Thresholds.PatternFrequencyHigh)
	assert.Equal(t, 0.5, cfg.Thresholds.RecommendationMinScore)
	assert.Equal(t, int64(2_000_000), cfg.Analysis.MaxLogParseBytes)
	assert.Equal(t, 2, cfg.Analysis.FileCorrelationThreshold)
	assert.Equal(t, "both", cfg.Output.ReportFormat)
	assert.True(t, cfg.Output.IncludeExamples)
	assert.Equal(t, 1000, cfg.Memory.MaxEvents)
	assert.InDelta(t, 1.0, cfg.WeightSum(), 1e-9)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Thresholds, cfg.Thresholds)
}

func TestLoad_FileOverridesSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"thresholds": {"recommendation_min_score": 0.7},
		"output": {"report_format": "json"},
		"unknown_section": {"ignored": true}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Overridden keys take effect, untouched keys keep defaults.
	assert.Equal(t, 0.7, cfg.Thresholds.RecommendationMinScore)
	assert.Equal(t, 3, cfg.Thresholds.PatternFrequencyMin)
	assert.Equal(t, "json", cfg.Output.ReportFormat)
	assert.True(t, cfg.Output.IncludeExamples)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": {"report_format": "json"}}`), 0o600))
	t.Setenv("SYNAPSE_OUTPUT_REPORT_FORMAT", "text")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Output.ReportFormat)
}

func TestWarnings_WeightDrift(t *testing.T) {
	cfg := Default()
	cfg.Scoring.ROIWeight = 0.5

	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "weights")
}

func TestWarnings_RepairsInvalidValues(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.PatternFrequencyMin = 0
	cfg.Thresholds.RecommendationMinScore = 2.5
	cfg.Output.ReportFormat = "xml"

	warnings := cfg.Warnings()
	assert.Len(t, warnings, 3)
	assert.Equal(t, 3, cfg.Thresholds.PatternFrequencyMin)
	assert.Equal(t, 0.5, cfg.Thresholds.RecommendationMinScore)
	assert.Equal(t, "both", cfg.Output.ReportFormat)
}

func TestDetectorScoresFor_FallsBackToDefaults(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Detector = map[string]DetectorScores{}

	s := cfg.DetectorScoresFor("problem_recurrence")
	assert.Equal(t, 0.8, s.Impact)
	assert.Equal(t, 0.7, s.Trend)
	assert.Equal(t, 0.8, s.Urgency)
}

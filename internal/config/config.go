// Package config loads synapse analysis configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SYNAPSE_THRESHOLDS_RECOMMENDATION_MIN_SCORE, ...)
//  2. JSON config file passed on the command line
//  3. Built-in defaults
//
// Unknown keys are ignored. A missing file or section falls back to defaults;
// configuration faults are surfaced as warnings, never as run-aborting errors.
package config

import (
	"math"
	"time"
)

// DetectorScores holds the heuristic impact/trend/urgency constants one
// detector assigns to its patterns. Downstream ranking depends on these, so
// they are part of the documented contract; the defaults can be overridden
// under scoring.detector but are not derived from data.
type DetectorScores struct {
	Impact  float64 `koanf:"impact"`
	Trend   float64 `koanf:"trend"`
	Urgency float64 `koanf:"urgency"`
}

// Thresholds gate pattern emission and recommendation output.
type Thresholds struct {
	PatternFrequencyMin    int     `koanf:"pattern_frequency_min"`
	PatternFrequencyHigh   int     `koanf:"pattern_frequency_high"`
	RecommendationMinScore float64 `koanf:"recommendation_min_score"`
}

// Analysis bounds corpus reading and the individual detectors.
type Analysis struct {
	MaxLogParseBytes           int64 `koanf:"max_log_parse_bytes"`
	FileCorrelationThreshold   int   `koanf:"file_correlation_threshold"`
	ProblemRecurrenceThreshold int   `koanf:"problem_recurrence_threshold"`
	TemporalWindowDays         int   `koanf:"temporal_window_days"`
	GitLogLimit                int   `koanf:"git_log_limit"`
	GitTimeoutSeconds          int   `koanf:"git_timeout_seconds"`
}

// Scoring holds the recommendation weight vector and per-detector score
// overrides. The five weights should sum to 1.0; a drift is reported as a
// warning and the run proceeds.
type Scoring struct {
	FrequencyWeight float64                   `koanf:"frequency_weight"`
	ImpactWeight    float64                   `koanf:"impact_weight"`
	TrendWeight     float64                   `koanf:"trend_weight"`
	UrgencyWeight   float64                   `koanf:"urgency_weight"`
	ROIWeight       float64                   `koanf:"roi_weight"`
	Detector        map[string]DetectorScores `koanf:"detector"`
}

// Output selects report artifacts and console verbosity.
type Output struct {
	ReportFormat    string `koanf:"report_format"`
	IncludeExamples bool   `koanf:"include_examples"`
	Verbose         bool   `koanf:"verbose"`
}

// Memory bounds the on-disk event store.
type Memory struct {
	MaxEvents int   `koanf:"max_events"`
	MaxLogMB  int64 `koanf:"max_log_mb"`
}

// Config is the full analysis configuration.
type Config struct {
	Thresholds Thresholds `koanf:"thresholds"`
	Analysis   Analysis   `koanf:"analysis"`
	Scoring    Scoring    `koanf:"scoring"`
	Output     Output     `koanf:"output"`
	Memory     Memory     `koanf:"memory"`
}

// GitTimeout returns the git subprocess deadline as a duration.
func (c *Config) GitTimeout() time.Duration {
	return time.Duration(c.Analysis.GitTimeoutSeconds) * time.Second
}

// WeightSum returns the sum of the five scoring weights.
func (c *Config) WeightSum() float64 {
	return c.Scoring.FrequencyWeight +
		c.Scoring.ImpactWeight +
		c.Scoring.TrendWeight +
		c.Scoring.UrgencyWeight +
		c.Scoring.ROIWeight
}

// Warnings validates the configuration and returns human-readable issues.
// Validation never fails a run; callers log the warnings and proceed with
// whatever values are present.
func (c *Config) Warnings() []string {
	var warnings []string

	if sum := c.WeightSum(); math.Abs(sum-1.0) > 0.01 {
		warnings = append(warnings, "scoring weights do not sum to 1.0")
	}
	if c.Thresholds.PatternFrequencyMin <= 0 {
		warnings = append(warnings, "thresholds.pattern_frequency_min must be positive, using default")
		c.Thresholds.PatternFrequencyMin = defaults().Thresholds.PatternFrequencyMin
	}
	if c.Thresholds.RecommendationMinScore < 0 || c.Thresholds.RecommendationMinScore > 1 {
		warnings = append(warnings, "thresholds.recommendation_min_score outside [0,1], using default")
		c.Thresholds.RecommendationMinScore = defaults().Thresholds.RecommendationMinScore
	}
	switch c.Output.ReportFormat {
	case "json", "text", "both":
	default:
		warnings = append(warnings, "output.report_format must be json, text, or both, using both")
		c.Output.ReportFormat = "both"
	}

	return warnings
}

// defaults returns the built-in configuration.
func defaults() *Config {
	return &Config{
		Thresholds: Thresholds{
			PatternFrequencyMin:    3,
			PatternFrequencyHigh:   6,
			RecommendationMinScore: 0.5,
		},
		Analysis: Analysis{
			MaxLogParseBytes:           2_000_000,
			FileCorrelationThreshold:   2,
			ProblemRecurrenceThreshold: 2,
			TemporalWindowDays:         7,
			GitLogLimit:                50,
			GitTimeoutSeconds:          10,
		},
		Scoring: Scoring{
			FrequencyWeight: 0.25,
			ImpactWeight:    0.25,
			TrendWeight:     0.15,
			UrgencyWeight:   0.20,
			ROIWeight:       0.15,
			Detector: map[string]DetectorScores{
				"temporal_high_frequency": {Impact: 0.7, Trend: 0.6, Urgency: 0.5},
				"temporal_day_of_week":    {Impact: 0.4, Trend: 0.3, Urgency: 0.2},
				"temporal_time_of_day":    {Impact: 0.3, Trend: 0.2, Urgency: 0.1},
				"file_correlation":        {Impact: 0.6, Trend: 0.5, Urgency: 0.4},
				"file_type":               {Impact: 0.7, Trend: 0.6, Urgency: 0.5},
				"problem_recurrence":      {Impact: 0.8, Trend: 0.7, Urgency: 0.8},
				"commit_pattern":          {Impact: 0.5, Trend: 0.4, Urgency: 0.3},
				"commit_keyword":          {Impact: 0.6, Trend: 0.5, Urgency: 0.4},
				"agent_collaboration":     {Impact: 0.5, Trend: 0.4, Urgency: 0.3},
				"agent_specialization":    {Impact: 0.4, Trend: 0.3, Urgency: 0.2},
				"skill_gap":               {Impact: 0.8, Trend: 0.7, Urgency: 0.7},
			},
		},
		Output: Output{
			ReportFormat:    "both",
			IncludeExamples: true,
			Verbose:         true,
		},
		Memory: Memory{
			MaxEvents: 1000,
			MaxLogMB:  10,
		},
	}
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	return defaults()
}

// DetectorScoresFor returns the score constants for a detector key, falling
// back to built-in defaults when the key was pruned from a user config.
func (c *Config) DetectorScoresFor(key string) DetectorScores {
	if s, ok := c.Scoring.Detector[key]; ok {
		return s
	}
	return defaults().Scoring.Detector[key]
}

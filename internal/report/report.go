// Package report renders the analysis output as a typed report and writes
// it to disk as JSON, plain text, or both.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/memory"
	"github.com/fyrsmithlabs/synapse/internal/pattern"
	"github.com/fyrsmithlabs/synapse/internal/recommend"
	"github.com/fyrsmithlabs/synapse/internal/session"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/synapse/internal/report"

	analyzerName    = "Synapse Pattern Detector"
	analyzerVersion = "2.0.0"
)

// Metadata identifies one analysis run.
type Metadata struct {
	GeneratedAt string `json:"generated_at"`
	Analyzer    string `json:"analyzer"`
	Version     string `json:"version"`
	RunID       string `json:"run_id"`
}

// Summary is the executive summary block.
type Summary struct {
	TotalSessionsAnalyzed int     `json:"total_sessions_analyzed"`
	PatternsDetected      int     `json:"patterns_detected"`
	SkillsRecommended     int     `json:"skills_recommended"`
	TopRecommendation     string  `json:"top_recommendation,omitempty"`
	HighestPriorityScore  float64 `json:"highest_priority_score"`
	MostFrequentPattern   string  `json:"most_frequent_pattern,omitempty"`
}

// Scores carries the per-pattern heuristic triple.
type Scores struct {
	Impact  float64 `json:"impact"`
	Trend   float64 `json:"trend"`
	Urgency float64 `json:"urgency"`
}

// PatternEntry is one detected pattern formatted for the report.
type PatternEntry struct {
	Key         string         `json:"key"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Frequency   int            `json:"frequency"`
	Scores      Scores         `json:"scores"`
	Examples    []string       `json:"examples"`
	Metadata    map[string]any `json:"metadata"`
}

// DetailedScores carries a recommendation's five sub-scores, rounded.
type DetailedScores struct {
	Frequency float64 `json:"frequency"`
	Impact    float64 `json:"impact"`
	Trend     float64 `json:"trend"`
	Urgency   float64 `json:"urgency"`
	ROI       float64 `json:"roi"`
}

// RecommendationEntry is one ranked recommendation formatted for the report.
type RecommendationEntry struct {
	SkillName          string         `json:"skill_name"`
	SkillType          string         `json:"skill_type"`
	Description        string         `json:"description"`
	Reason             string         `json:"reason"`
	PriorityScore      float64        `json:"priority_score"`
	DetailedScores     DetailedScores `json:"detailed_scores"`
	SupportingPatterns []string       `json:"supporting_patterns"`
	ExampleUseCases    []string       `json:"example_use_cases"`
}

// TrendAnalysis summarizes session cadence over the corpus.
type TrendAnalysis struct {
	SessionFrequencyPerDay float64 `json:"session_frequency_per_day"`
	AvgFilesPerSession     float64 `json:"avg_files_per_session"`
	TotalSessions          int     `json:"total_sessions"`
	MostActiveAgent        string  `json:"most_active_agent,omitempty"`
}

// PriorityMatrix buckets recommendations by priority score.
type PriorityMatrix struct {
	HighPriority   []string `json:"high_priority"`
	MediumPriority []string `json:"medium_priority"`
	LowPriority    []string `json:"low_priority"`
}

// Report is the complete analysis output.
type Report struct {
	Metadata           Metadata              `json:"metadata"`
	Summary            Summary               `json:"summary"`
	Patterns           []PatternEntry        `json:"patterns"`
	Recommendations    []RecommendationEntry `json:"recommendations"`
	TrendAnalysis      TrendAnalysis         `json:"trend_analysis"`
	PriorityMatrix     PriorityMatrix        `json:"priority_matrix"`
	ActionableInsights []string              `json:"actionable_insights"`
}

// Generator builds and persists reports.
type Generator struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator returns a Generator. A nil cfg falls back to defaults and a
// nil logger discards.
func NewGenerator(cfg *config.Config, logger *zap.Logger) *Generator {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger, now: time.Now}
}

// Generate assembles the full report from detected patterns, ranked
// recommendations, and the session corpus they were derived from.
func (g *Generator) Generate(ctx context.Context, patterns map[string]pattern.Info, recs []recommend.Recommendation, corpus *session.Corpus) *Report {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "report.Generate")
	defer span.End()

	var sessions []session.Record
	if corpus != nil {
		sessions = corpus.Sessions
	}

	return &Report{
		Metadata: Metadata{
			GeneratedAt: g.now().Format(time.RFC3339),
			Analyzer:    analyzerName,
			Version:     analyzerVersion,
			RunID:       uuid.NewString(),
		},
		Summary:            buildSummary(patterns, recs, sessions),
		Patterns:           formatPatterns(patterns),
		Recommendations:    formatRecommendations(recs),
		TrendAnalysis:      buildTrendAnalysis(sessions),
		PriorityMatrix:     buildPriorityMatrix(recs),
		ActionableInsights: buildInsights(patterns, recs),
	}
}

func buildSummary(patterns map[string]pattern.Info, recs []recommend.Recommendation, sessions []session.Record) Summary {
	s := Summary{
		TotalSessionsAnalyzed: len(sessions),
		PatternsDetected:      len(patterns),
		SkillsRecommended:     len(recs),
	}
	if len(recs) > 0 {
		s.TopRecommendation = recs[0].SkillName
		s.HighestPriorityScore = recs[0].PriorityScore
	}
	if len(patterns) > 0 {
		keys := sortedKeys(patterns)
		best := keys[0]
		for _, k := range keys[1:] {
			if patterns[k].Frequency > patterns[best].Frequency {
				best = k
			}
		}
		s.MostFrequentPattern = best
	}
	return s
}

func formatPatterns(patterns map[string]pattern.Info) []PatternEntry {
	entries := make([]PatternEntry, 0, len(patterns))
	for _, key := range sortedKeys(patterns) {
		p := patterns[key]
		entries = append(entries, PatternEntry{
			Key:         key,
			Type:        p.Type,
			Description: p.Description,
			Frequency:   p.Frequency,
			Scores:      Scores{Impact: p.ImpactScore, Trend: p.TrendScore, Urgency: p.UrgencyScore},
			Examples:    p.Examples[:min(3, len(p.Examples))],
			Metadata:    p.Metadata,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Frequency > entries[j].Frequency })
	return entries
}

func formatRecommendations(recs []recommend.Recommendation) []RecommendationEntry {
	entries := make([]RecommendationEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, RecommendationEntry{
			SkillName:     r.SkillName,
			SkillType:     r.SkillType,
			Description:   r.Description,
			Reason:        r.Reason,
			PriorityScore: round3(r.PriorityScore),
			DetailedScores: DetailedScores{
				Frequency: round3(r.FrequencyScore),
				Impact:    round3(r.ImpactScore),
				Trend:     round3(r.TrendScore),
				Urgency:   round3(r.UrgencyScore),
				ROI:       round3(r.ROIScore),
			},
			SupportingPatterns: r.SupportingPatterns,
			ExampleUseCases:    r.ExampleUseCases[:min(5, len(r.ExampleUseCases))],
		})
	}
	return entries
}

func buildTrendAnalysis(sessions []session.Record) TrendAnalysis {
	if len(sessions) == 0 {
		return TrendAnalysis{}
	}

	totalFiles := 0
	for _, s := range sessions {
		totalFiles += s.TotalFiles
	}

	var timestamps []time.Time
	for _, s := range sessions {
		ts, err := time.Parse(memory.TimestampLayout, s.Timestamp)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	frequencyPerDay := 0.0
	if len(timestamps) >= 2 {
		spanHours := timestamps[len(timestamps)-1].Sub(timestamps[0]).Hours()
		if spanHours > 0 {
			frequencyPerDay = float64(len(timestamps)) / (spanHours / 24)
		}
	}

	return TrendAnalysis{
		SessionFrequencyPerDay: math.Round(frequencyPerDay*100) / 100,
		AvgFilesPerSession:     math.Round(float64(totalFiles)/float64(len(sessions))*10) / 10,
		TotalSessions:          len(sessions),
		MostActiveAgent:        mostActiveAgent(sessions),
	}
}

// mostActiveAgent tallies sessions per agent and returns the agent with the
// most. Ties go to the agent seen first.
func mostActiveAgent(sessions []session.Record) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range sessions {
		if _, ok := counts[s.Agent]; !ok {
			order = append(order, s.Agent)
		}
		counts[s.Agent]++
	}
	best := ""
	for _, agent := range order {
		if best == "" || counts[agent] > counts[best] {
			best = agent
		}
	}
	return best
}

func buildPriorityMatrix(recs []recommend.Recommendation) PriorityMatrix {
	var m PriorityMatrix
	for _, r := range recs {
		switch {
		case r.PriorityScore >= 0.7:
			m.HighPriority = append(m.HighPriority, r.SkillName)
		case r.PriorityScore >= 0.5:
			m.MediumPriority = append(m.MediumPriority, r.SkillName)
		default:
			m.LowPriority = append(m.LowPriority, r.SkillName)
		}
	}
	return m
}

func buildInsights(patterns map[string]pattern.Info, recs []recommend.Recommendation) []string {
	var insights []string

	urgent := 0
	problems := 0
	var gapDomains []string
	for _, key := range sortedKeys(patterns) {
		p := patterns[key]
		if p.UrgencyScore > 0.7 {
			urgent++
		}
		if p.Type == "problem_recurrence" {
			problems++
		}
		if p.Type == "skill_gap" {
			if domain, ok := p.Metadata["domain"].(string); ok && domain != "" {
				gapDomains = append(gapDomains, domain)
			}
		}
	}

	if urgent > 0 {
		insights = append(insights, fmt.Sprintf("Found %d high-urgency patterns that should be addressed immediately", urgent))
	}
	if len(recs) > 0 {
		insights = append(insights, fmt.Sprintf("Top recommendation: %s with priority score %.2f", recs[0].SkillName, recs[0].PriorityScore))
	}
	if problems > 0 {
		insights = append(insights, fmt.Sprintf("Detected %d recurring problems that could be prevented with automation", problems))
	}
	if len(gapDomains) > 0 {
		insights = append(insights, fmt.Sprintf("Identified skill gaps in: %s", strings.Join(gapDomains, ", ")))
	}
	highROI := 0
	for _, r := range recs {
		if r.ROIScore > 0.7 {
			highROI++
		}
	}
	if highROI > 0 {
		insights = append(insights, fmt.Sprintf("Found %d high-ROI skill opportunities that would provide significant value", highROI))
	}

	return insights
}

func sortedKeys(patterns map[string]pattern.Info) []string {
	keys := make([]string, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Save writes the report next to prefix with a .json and/or .txt suffix
// depending on format ("json", "text", or "both").
func (g *Generator) Save(report *Report, prefix, format string) error {
	if report == nil {
		return fmt.Errorf("report: nil report")
	}
	if format == "" {
		format = g.cfg.Output.ReportFormat
	}

	if format == "json" || format == "both" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("report: encode json: %w", err)
		}
		path := prefix + ".json"
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("report: write %s: %w", path, err)
		}
		g.logger.Info("saved json report", zap.String("path", path))
	}

	if format == "text" || format == "both" {
		path := prefix + ".txt"
		if err := os.WriteFile(path, []byte(g.renderText(report)), 0o644); err != nil {
			return fmt.Errorf("report: write %s: %w", path, err)
		}
		g.logger.Info("saved text report", zap.String("path", path))
	}

	return nil
}

func (g *Generator) renderText(report *Report) string {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\nSYNAPSE PATTERN DETECTION REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&sb, "Generated: %s\n", report.Metadata.GeneratedAt)
	fmt.Fprintf(&sb, "Analyzer: %s\n\n", report.Metadata.Analyzer)

	fmt.Fprintf(&sb, "SUMMARY\n%s\n", thin)
	s := report.Summary
	fmt.Fprintf(&sb, "Total Sessions Analyzed: %d\n", s.TotalSessionsAnalyzed)
	fmt.Fprintf(&sb, "Patterns Detected: %d\n", s.PatternsDetected)
	fmt.Fprintf(&sb, "Skills Recommended: %d\n", s.SkillsRecommended)
	if s.TopRecommendation != "" {
		fmt.Fprintf(&sb, "Top Recommendation: %s\n", s.TopRecommendation)
		fmt.Fprintf(&sb, "Highest Priority Score: %.3f\n", s.HighestPriorityScore)
	}
	if s.MostFrequentPattern != "" {
		fmt.Fprintf(&sb, "Most Frequent Pattern: %s\n", s.MostFrequentPattern)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "SKILL RECOMMENDATIONS\n%s\n", thin)
	for i, rec := range report.Recommendations {
		fmt.Fprintf(&sb, "\n%d. %s (Priority: %.2f)\n", i+1, rec.SkillName, rec.PriorityScore)
		fmt.Fprintf(&sb, "   Type: %s\n", rec.SkillType)
		fmt.Fprintf(&sb, "   Description: %s\n", rec.Description)
		fmt.Fprintf(&sb, "   Reason: %s\n", rec.Reason)
		sb.WriteString("   Scores:\n")
		d := rec.DetailedScores
		fmt.Fprintf(&sb, "     - Frequency: %.2f\n", d.Frequency)
		fmt.Fprintf(&sb, "     - Impact: %.2f\n", d.Impact)
		fmt.Fprintf(&sb, "     - Trend: %.2f\n", d.Trend)
		fmt.Fprintf(&sb, "     - Urgency: %.2f\n", d.Urgency)
		fmt.Fprintf(&sb, "     - Roi: %.2f\n", d.ROI)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "PRIORITY MATRIX\n%s\n", thin)
	m := report.PriorityMatrix
	fmt.Fprintf(&sb, "High Priority (%d): %s\n", len(m.HighPriority), joinOrNone(m.HighPriority))
	fmt.Fprintf(&sb, "Medium Priority (%d): %s\n", len(m.MediumPriority), joinOrNone(m.MediumPriority))
	fmt.Fprintf(&sb, "Low Priority (%d): %s\n\n", len(m.LowPriority), joinOrNone(m.LowPriority))

	fmt.Fprintf(&sb, "ACTIONABLE INSIGHTS\n%s\n", thin)
	for i, insight := range report.ActionableInsights {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, insight)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "DETECTED PATTERNS\n%s\n", thin)
	fmt.Fprintf(&sb, "Total patterns detected: %d\n", len(report.Patterns))
	sb.WriteString("\nTop 10 patterns by frequency:\n")
	for i, p := range report.Patterns[:min(10, len(report.Patterns))] {
		fmt.Fprintf(&sb, "%d. %s (Frequency: %d)\n", i+1, p.Description, p.Frequency)
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "%s\nEnd of Report\n%s\n", rule, rule)
	return sb.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

// Package pattern mines a session corpus for recurring activity signals.
//
// Six detectors run independently over the parsed sessions and git history:
// temporal clustering, file co-change correlation, problem recurrence,
// commit-message conventions, agent collaboration, and skill-gap keyword
// scoring. Each detector is a pure function of its inputs; thresholds come
// from configuration and score constants from the scoring.detector map.
package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/gitx"
	"github.com/fyrsmithlabs/synapse/internal/memory"
	"github.com/fyrsmithlabs/synapse/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/synapse/internal/pattern"

// Info is one detected recurring signal. Produced fresh on every analysis
// run and never persisted.
type Info struct {
	Type         string         `json:"pattern_type"`
	Description  string         `json:"description"`
	Frequency    int            `json:"frequency"`
	ImpactScore  float64        `json:"impact_score"`
	TrendScore   float64        `json:"trend_score"`
	UrgencyScore float64        `json:"urgency_score"`
	Examples     []string       `json:"examples"`
	Metadata     map[string]any `json:"metadata"`
}

// Detector runs the pattern mining pass. Construct with NewDetector.
type Detector struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewDetector returns a Detector using cfg for thresholds and score
// constants. A nil cfg falls back to defaults and a nil logger discards.
func NewDetector(cfg *config.Config, logger *zap.Logger) *Detector {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Analyze merges the output of all detectors into one pattern map. Keys are
// synthetic and unique within a run; a key names its detector plus a
// discriminator so collisions cannot occur across detectors.
func (d *Detector) Analyze(ctx context.Context, sessions []session.Record, commits []gitx.Commit) map[string]Info {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "pattern.Analyze")
	defer span.End()

	patterns := make(map[string]Info)
	if len(sessions) == 0 {
		d.logger.Warn("no sessions to analyze")
		return patterns
	}

	merge(patterns, d.temporalPatterns(sessions))
	merge(patterns, d.fileCorrelations(sessions))
	merge(patterns, d.problemRecurrence(sessions))
	merge(patterns, d.commitPatterns(commits))
	merge(patterns, d.agentCollaboration(sessions))
	merge(patterns, d.skillGaps(sessions, commits))

	d.logger.Info("pattern analysis complete", zap.Int("patterns", len(patterns)))
	return patterns
}

func merge(dst, src map[string]Info) {
	for k, v := range src {
		dst[k] = v
	}
}

func (d *Detector) scores(key string) config.DetectorScores {
	return d.cfg.DetectorScoresFor(key)
}

func (d *Detector) temporalPatterns(sessions []session.Record) map[string]Info {
	patterns := make(map[string]Info)

	var timestamps []time.Time
	for _, s := range sessions {
		ts, err := time.Parse(memory.TimestampLayout, s.Timestamp)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
	}
	if len(timestamps) < 2 {
		return patterns
	}

	var totalHours float64
	for i := 1; i < len(timestamps); i++ {
		totalHours += timestamps[i].Sub(timestamps[i-1]).Hours()
	}
	avgInterval := totalHours / float64(len(timestamps)-1)

	if avgInterval < 1 {
		sc := d.scores("temporal_high_frequency")
		patterns["high_frequency_sessions"] = Info{
			Type:         "temporal",
			Description:  "High frequency of sessions detected",
			Frequency:    len(sessions),
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("Average %.1f hours between sessions", avgInterval)},
			Metadata:     map[string]any{"avg_interval_hours": avgInterval},
		}
	}

	days := newTally[string]()
	for _, ts := range timestamps {
		days.add(ts.Weekday().String(), 1)
	}
	if top := days.top(1); len(top) > 0 && top[0].count >= 3 {
		day, count := top[0].key, top[0].count
		sc := d.scores("temporal_day_of_week")
		patterns["day_of_week_pattern"] = Info{
			Type:         "temporal",
			Description:  fmt.Sprintf("Most sessions on %s", day),
			Frequency:    count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("%d sessions on %s", count, day)},
			Metadata:     map[string]any{"day": day, "count": count},
		}
	}

	hours := newTally[int]()
	for _, ts := range timestamps {
		hours.add(ts.Hour(), 1)
	}
	if top := hours.top(1); len(top) > 0 {
		hour, count := top[0].key, top[0].count
		sc := d.scores("temporal_time_of_day")
		patterns["time_of_day_pattern"] = Info{
			Type:         "temporal",
			Description:  fmt.Sprintf("Most sessions around %d:00", hour),
			Frequency:    count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("%d sessions around %d:00", count, hour)},
			Metadata:     map[string]any{"hour": hour, "count": count},
		}
	}

	return patterns
}

func (d *Detector) fileCorrelations(sessions []session.Record) map[string]Info {
	patterns := make(map[string]Info)

	pairs := newTally[[2]string]()
	var allFiles []string
	for _, s := range sessions {
		files := s.ChangedFiles
		allFiles = append(allFiles, files...)
		for i, f1 := range files {
			for _, f2 := range files[i+1:] {
				a, b := f1, f2
				if b < a {
					a, b = b, a
				}
				pairs.add([2]string{a, b}, 1)
			}
		}
	}

	threshold := d.cfg.Analysis.FileCorrelationThreshold
	for _, e := range pairs.top(10) {
		if e.count < threshold {
			continue
		}
		f1, f2 := e.key[0], e.key[1]
		key := fmt.Sprintf("file_correlation_%d", len(patterns))
		sc := d.scores("file_correlation")
		patterns[key] = Info{
			Type:         "file_correlation",
			Description:  fmt.Sprintf("Files often modified together: %s and %s", f1, f2),
			Frequency:    e.count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("Modified together %d times", e.count)},
			Metadata:     map[string]any{"file1": f1, "file2": f2},
		}
	}

	exts := newTally[string]()
	for _, f := range allFiles {
		if ext := fileExtension(f); ext != "" {
			exts.add(ext, 1)
		}
	}
	for _, e := range exts.top(5) {
		if e.count < 5 {
			continue
		}
		sc := d.scores("file_type")
		patterns["file_type_"+e.key] = Info{
			Type:         "file_type",
			Description:  fmt.Sprintf("Frequent work with .%s files", e.key),
			Frequency:    e.count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("%d .%s files modified", e.count, e.key)},
			Metadata:     map[string]any{"extension": e.key},
		}
	}

	return patterns
}

var (
	reWord        = regexp.MustCompile(`\b\w+\b`)
	reLongWord    = regexp.MustCompile(`\b\w{4,}\b`)
	reCommitEmoji = regexp.MustCompile(`^([\x{1F300}-\x{1F9FF}]|:\w+:)`)
	reCommitType  = regexp.MustCompile(`^(\w+):`)
)

var problemStopwords = map[string]bool{
	"with": true, "from": true, "that": true, "this": true, "have": true, "been": true,
}

var commitStopwords = map[string]bool{
	"with": true, "from": true, "that": true, "this": true, "have": true,
}

func (d *Detector) problemRecurrence(sessions []session.Record) map[string]Info {
	patterns := make(map[string]Info)

	var allProblems []string
	for _, s := range sessions {
		allProblems = append(allProblems, s.ProblemsSolved...)
	}
	if len(allProblems) == 0 {
		return patterns
	}

	keywords := newTally[string]()
	for _, problem := range allProblems {
		for _, w := range reWord.FindAllString(strings.ToLower(problem), -1) {
			if len(w) > 3 && !problemStopwords[w] {
				keywords.add(w, 1)
			}
		}
	}

	threshold := d.cfg.Analysis.ProblemRecurrenceThreshold
	for _, e := range keywords.top(10) {
		if e.count < threshold {
			continue
		}
		var examples []string
		for _, p := range allProblems {
			if strings.Contains(strings.ToLower(p), e.key) {
				examples = append(examples, p)
				if len(examples) == 3 {
					break
				}
			}
		}
		sc := d.scores("problem_recurrence")
		patterns["recurring_problem_"+e.key] = Info{
			Type:         "problem_recurrence",
			Description:  fmt.Sprintf("Recurring issue related to: %s", e.key),
			Frequency:    e.count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     examples,
			Metadata:     map[string]any{"keyword": e.key},
		}
	}

	return patterns
}

func (d *Detector) commitPatterns(commits []gitx.Commit) map[string]Info {
	patterns := make(map[string]Info)
	if len(commits) == 0 {
		return patterns
	}

	types := newTally[string]()
	for _, c := range commits {
		if m := reCommitEmoji.FindStringSubmatch(c.Message); m != nil {
			types.add(m[1], 1)
		} else if m := reCommitType.FindStringSubmatch(c.Message); m != nil {
			types.add(m[1], 1)
		}
	}
	for _, e := range types.top(5) {
		if e.count < 3 {
			continue
		}
		var examples []string
		for _, c := range commits {
			if strings.Contains(c.Message, e.key) {
				examples = append(examples, c.Message)
				if len(examples) == 3 {
					break
				}
			}
		}
		sc := d.scores("commit_pattern")
		patterns["commit_type_"+e.key] = Info{
			Type:         "commit_pattern",
			Description:  fmt.Sprintf("Frequent commit type: %s", e.key),
			Frequency:    e.count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     examples,
			Metadata:     map[string]any{"commit_type": e.key},
		}
	}

	var messages []string
	for _, c := range commits {
		messages = append(messages, c.Message)
	}
	allMessages := strings.ToLower(strings.Join(messages, " "))
	keywords := newTally[string]()
	for _, w := range reLongWord.FindAllString(allMessages, -1) {
		keywords.add(w, 1)
	}
	for _, e := range keywords.top(10) {
		if e.count < 5 || commitStopwords[e.key] {
			continue
		}
		var examples []string
		for _, c := range commits {
			if strings.Contains(strings.ToLower(c.Message), e.key) {
				examples = append(examples, c.Message)
				if len(examples) == 3 {
					break
				}
			}
		}
		sc := d.scores("commit_keyword")
		patterns["commit_keyword_"+e.key] = Info{
			Type:         "commit_keyword",
			Description:  fmt.Sprintf("Frequent commit keyword: %s", e.key),
			Frequency:    e.count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     examples,
			Metadata:     map[string]any{"keyword": e.key},
		}
	}

	return patterns
}

func (d *Detector) agentCollaboration(sessions []session.Record) map[string]Info {
	patterns := make(map[string]Info)
	if len(sessions) < 2 {
		return patterns
	}

	transitions := newTally[[2]string]()
	for i := 1; i < len(sessions); i++ {
		prev, curr := sessions[i-1].Agent, sessions[i].Agent
		if prev != curr {
			transitions.add([2]string{prev, curr}, 1)
		}
	}
	if top := transitions.top(1); len(top) > 0 {
		from, to := top[0].key[0], top[0].key[1]
		count := top[0].count
		sc := d.scores("agent_collaboration")
		patterns["agent_handoff_pattern"] = Info{
			Type:         "agent_collaboration",
			Description:  fmt.Sprintf("Frequent handoff: %s → %s", from, to),
			Frequency:    count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("Handoff occurred %d times", count)},
			Metadata:     map[string]any{"from": from, "to": to},
		}
	}

	agentExts := make(map[string]*tally[string])
	var agentOrder []string
	for _, s := range sessions {
		for _, f := range s.ChangedFiles {
			ext := fileExtension(f)
			if ext == "" {
				continue
			}
			t, ok := agentExts[s.Agent]
			if !ok {
				t = newTally[string]()
				agentExts[s.Agent] = t
				agentOrder = append(agentOrder, s.Agent)
			}
			t.add(ext, 1)
		}
	}
	for _, agent := range agentOrder {
		top := agentExts[agent].top(1)
		if len(top) == 0 {
			continue
		}
		ext, count := top[0].key, top[0].count
		sc := d.scores("agent_specialization")
		patterns["agent_specialization_"+agent] = Info{
			Type:         "agent_specialization",
			Description:  fmt.Sprintf("%s frequently works with .%s files", agent, ext),
			Frequency:    count,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("%d .%s files", count, ext)},
			Metadata:     map[string]any{"agent": agent, "extension": ext},
		}
	}

	return patterns
}

// skillDomains maps each candidate skill domain to its keyword list. Order
// matters for deterministic output.
var skillDomains = []struct {
	name     string
	keywords []string
}{
	{"testing", []string{"test", "testing", "unittest", "pytest", "jest"}},
	{"deployment", []string{"deploy", "docker", "kubernetes", "ci/cd", "pipeline"}},
	{"documentation", []string{"readme", "docs", "documentation", "markdown"}},
	{"api", []string{"api", "endpoint", "request", "response", "rest"}},
	{"database", []string{"database", "sql", "query", "migration"}},
	{"frontend", []string{"react", "vue", "angular", "css", "html"}},
	{"backend", []string{"server", "backend", "node", "python", "java"}},
	{"performance", []string{"performance", "optimization", "cache", "speed"}},
	{"security", []string{"security", "auth", "authentication", "permission"}},
}

func (d *Detector) skillGaps(sessions []session.Record, commits []gitx.Commit) map[string]Info {
	patterns := make(map[string]Info)

	var parts []string
	for _, s := range sessions {
		parts = append(parts, s.ProblemsSolved...)
	}
	for _, c := range commits {
		parts = append(parts, c.Message)
	}
	allText := strings.ToLower(strings.Join(parts, " "))

	for _, domain := range skillDomains {
		score := 0
		for _, kw := range domain.keywords {
			score += strings.Count(allText, kw)
		}
		if score < 5 {
			continue
		}
		sc := d.scores("skill_gap")
		patterns["skill_gap_"+domain.name] = Info{
			Type:         "skill_gap",
			Description:  fmt.Sprintf("Potential skill gap in %s", domain.name),
			Frequency:    score,
			ImpactScore:  sc.Impact,
			TrendScore:   sc.Trend,
			UrgencyScore: sc.Urgency,
			Examples:     []string{fmt.Sprintf("%s mentioned %d times", domain.name, score)},
			Metadata:     map[string]any{"domain": domain.name},
		}
	}

	return patterns
}

func fileExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return ""
}

// tally counts keys while remembering first-seen order so top() breaks ties
// deterministically.
type entry[K comparable] struct {
	key   K
	count int
}

type tally[K comparable] struct {
	counts map[K]int
	order  []K
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: make(map[K]int)}
}

func (t *tally[K]) add(key K, n int) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key] += n
}

func (t *tally[K]) top(n int) []entry[K] {
	out := make([]entry[K], 0, len(t.order))
	for _, k := range t.order {
		out = append(out, entry[K]{key: k, count: t.counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Package recommend turns a pattern map into a ranked list of skill
// recommendations. Patterns are grouped into domains by keyword matching,
// each qualifying domain is scored along five axes, and the weighted sum
// orders the output.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/pattern"
)

const instrumentationName = "github.com/fyrsmithlabs/synapse/internal/recommend"

// Recommendation is one ranked skill suggestion.
type Recommendation struct {
	SkillName          string   `json:"skill_name"`
	SkillType          string   `json:"skill_type"`
	Description        string   `json:"description"`
	Reason             string   `json:"reason"`
	PriorityScore      float64  `json:"priority_score"`
	FrequencyScore     float64  `json:"frequency_score"`
	ImpactScore        float64  `json:"impact_score"`
	TrendScore         float64  `json:"trend_score"`
	UrgencyScore       float64  `json:"urgency_score"`
	ROIScore           float64  `json:"roi_score"`
	SupportingPatterns []string `json:"supporting_patterns"`
	ExampleUseCases    []string `json:"example_use_cases"`
}

type template struct {
	name         string
	skillType    string
	description  string
	capabilities []string
}

// skillTemplates is the catalog of installable skills per domain. Domains
// without a template never produce a recommendation.
var skillTemplates = map[string]template{
	"testing": {
		name:         "TEST-GUARDIAN",
		skillType:    "testing",
		description:  "Automated testing assistance and test generation",
		capabilities: []string{"test generation", "test automation", "coverage analysis"},
	},
	"deployment": {
		name:         "DEPLOY-SAGE",
		skillType:    "deployment",
		description:  "Deployment automation and CI/CD optimization",
		capabilities: []string{"deployment automation", "CI/CD", "container management"},
	},
	"documentation": {
		name:         "DOC-GENIUS",
		skillType:    "documentation",
		description:  "Automatic documentation generation and maintenance",
		capabilities: []string{"doc generation", "readme creation", "API documentation"},
	},
	"api": {
		name:         "API-MASTER",
		skillType:    "api",
		description:  "API design, implementation, and testing assistance",
		capabilities: []string{"API design", "endpoint creation", "API testing"},
	},
	"performance": {
		name:         "PERF-OPTIMIZER",
		skillType:    "performance",
		description:  "Performance analysis and optimization",
		capabilities: []string{"profiling", "optimization", "caching strategies"},
	},
	"security": {
		name:         "SECURITY-SHIELD",
		skillType:    "security",
		description:  "Security analysis and vulnerability detection",
		capabilities: []string{"security scanning", "vulnerability detection", "auth implementation"},
	},
	"refactoring": {
		name:         "CODE-REFINER",
		skillType:    "refactoring",
		description:  "Code refactoring and quality improvement",
		capabilities: []string{"code refactoring", "quality analysis", "pattern application"},
	},
	"data_processing": {
		name:         "DATA-WIZARD",
		skillType:    "data",
		description:  "Data processing and analysis automation",
		capabilities: []string{"data transformation", "ETL", "analysis"},
	},
}

// groupingDomains maps grouping keywords to domains. First match wins, in
// declaration order. This table is looser than the skill-gap detector's so
// that descriptive pattern text lands in a bucket.
var groupingDomains = []struct {
	name     string
	keywords []string
}{
	{"testing", []string{"test", "testing", "unittest", "pytest"}},
	{"deployment", []string{"deploy", "docker", "ci/cd", "pipeline"}},
	{"documentation", []string{"readme", "docs", "documentation", "md"}},
	{"api", []string{"api", "endpoint", "request", "response"}},
	{"performance", []string{"performance", "optimization", "cache"}},
	{"security", []string{"security", "auth", "authentication"}},
	{"refactoring", []string{"refactor", "cleanup", "quality"}},
	{"data_processing", []string{"data", "csv", "json", "process"}},
}

// Recommender ranks skill suggestions from detected patterns.
type Recommender struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRecommender returns a Recommender. A nil cfg falls back to defaults
// and a nil logger discards.
func NewRecommender(cfg *config.Config, logger *zap.Logger) *Recommender {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recommender{cfg: cfg, logger: logger}
}

// Recommend groups patterns into domains, scores every qualifying domain,
// and returns the recommendations meeting the minimum score in descending
// priority order.
func (r *Recommender) Recommend(ctx context.Context, patterns map[string]pattern.Info) []Recommendation {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "recommend.Recommend")
	defer span.End()

	grouped := groupByDomain(patterns)

	var recs []Recommendation
	for _, domain := range domainOrder(grouped) {
		list := grouped[domain]
		if !qualifies(list) {
			continue
		}
		if rec, ok := r.buildRecommendation(domain, list); ok {
			recs = append(recs, rec)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].PriorityScore > recs[j].PriorityScore })

	minScore := r.cfg.Thresholds.RecommendationMinScore
	filtered := recs[:0]
	for _, rec := range recs {
		if rec.PriorityScore >= minScore {
			filtered = append(filtered, rec)
		}
	}

	r.logger.Info("skill recommendations generated", zap.Int("count", len(filtered)))
	return filtered
}

// qualifies gates a domain: at least two supporting patterns, or one with
// frequency 5 or more.
func qualifies(list []pattern.Info) bool {
	if len(list) >= 2 {
		return true
	}
	for _, p := range list {
		if p.Frequency >= 5 {
			return true
		}
	}
	return false
}

// groupByDomain buckets patterns by keyword match over type plus
// description. Skill-gap patterns that match no keyword fall back to the
// domain named in their metadata. Everything else lands in "general",
// which has no template and is never recommended.
func groupByDomain(patterns map[string]pattern.Info) map[string][]pattern.Info {
	grouped := make(map[string][]pattern.Info)

	// Map iteration order is random; walk keys sorted so bucket contents
	// and downstream examples are deterministic.
	keys := make([]string, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		p := patterns[key]
		text := strings.ToLower(p.Type + " " + p.Description)

		matched := ""
		for _, domain := range groupingDomains {
			for _, kw := range domain.keywords {
				if strings.Contains(text, kw) {
					matched = domain.name
					break
				}
			}
			if matched != "" {
				break
			}
		}

		if matched == "" && strings.Contains(key, "skill_gap") {
			if domain, ok := p.Metadata["domain"].(string); ok && domain != "" {
				matched = domain
			}
		}

		if matched == "" {
			matched = "general"
		}
		grouped[matched] = append(grouped[matched], p)
	}

	return grouped
}

func domainOrder(grouped map[string][]pattern.Info) []string {
	order := make([]string, 0, len(grouped))
	for _, d := range groupingDomains {
		if _, ok := grouped[d.name]; ok {
			order = append(order, d.name)
		}
	}
	// Domains reached only through skill-gap metadata (database, frontend,
	// backend) come after the keyword table, sorted for determinism.
	var rest []string
	for name := range grouped {
		if name == "general" || containsString(order, name) {
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *Recommender) buildRecommendation(domain string, list []pattern.Info) (Recommendation, bool) {
	tmpl, ok := skillTemplates[domain]
	if !ok {
		return Recommendation{}, false
	}

	frequency := r.frequencyScore(list)
	impact := meanOf(list, func(p pattern.Info) float64 { return p.ImpactScore })
	trend := meanOf(list, func(p pattern.Info) float64 { return p.TrendScore })
	urgency := meanOf(list, func(p pattern.Info) float64 { return p.UrgencyScore })
	roi := roiScore(list)

	w := r.cfg.Scoring
	priority := frequency*w.FrequencyWeight +
		impact*w.ImpactWeight +
		trend*w.TrendWeight +
		urgency*w.UrgencyWeight +
		roi*w.ROIWeight

	var supporting []string
	for _, p := range list {
		supporting = append(supporting, p.Description)
	}
	var examples []string
	for _, p := range list[:min(3, len(list))] {
		examples = append(examples, p.Examples[:min(2, len(p.Examples))]...)
	}

	return Recommendation{
		SkillName:          tmpl.name,
		SkillType:          tmpl.skillType,
		Description:        tmpl.description,
		Reason:             buildReason(domain, list, impact),
		PriorityScore:      priority,
		FrequencyScore:     frequency,
		ImpactScore:        impact,
		TrendScore:         trend,
		UrgencyScore:       urgency,
		ROIScore:           roi,
		SupportingPatterns: supporting,
		ExampleUseCases:    examples,
	}, true
}

// frequencyScore normalizes total pattern frequency against the
// high-frequency threshold scaled by pattern count, capped at 1.
func (r *Recommender) frequencyScore(list []pattern.Info) float64 {
	total := 0
	for _, p := range list {
		total += p.Frequency
	}
	denom := float64(r.cfg.Thresholds.PatternFrequencyHigh * len(list))
	if denom == 0 {
		return 0
	}
	return min(float64(total)/denom, 1)
}

func roiScore(list []pattern.Info) float64 {
	if len(list) == 0 {
		return 0
	}
	total := 0
	for _, p := range list {
		total += p.Frequency
	}
	avgImpact := meanOf(list, func(p pattern.Info) float64 { return p.ImpactScore })
	return min(float64(total)/10*avgImpact, 1)
}

func meanOf(list []pattern.Info, f func(pattern.Info) float64) float64 {
	if len(list) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range list {
		sum += f(p)
	}
	return sum / float64(len(list))
}

func buildReason(domain string, list []pattern.Info, avgImpact float64) string {
	total := 0
	problems := 0
	gaps := 0
	for _, p := range list {
		total += p.Frequency
		switch p.Type {
		case "problem_recurrence":
			problems++
		case "skill_gap":
			gaps++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Detected %d patterns in %s domain with %d total occurrences. ", len(list), domain, total)
	if avgImpact > 0.7 {
		fmt.Fprintf(&sb, "High impact (%.1f) suggests significant productivity gains. ", avgImpact)
	}
	if problems > 0 {
		fmt.Fprintf(&sb, "Found %d recurring problems that could be automated. ", problems)
	}
	if gaps > 0 {
		fmt.Fprintf(&sb, "Skill gap detected: frequent %s work without specialized tooling. ", domain)
	}
	return strings.TrimSpace(sb.String())
}

package report

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/synapse/internal/pattern"
	"github.com/fyrsmithlabs/synapse/internal/recommend"
)

// PatternFromMap converts a previously serialized pattern, decoded as a
// loose JSON mapping, back into the canonical struct. This is the single
// normalization boundary: everything downstream works on pattern.Info and
// never branches on shape again.
//
// Legacy field aliases are honored: "count" for frequency and "priority"
// for the urgency score. Keys that are not canonical fields become
// metadata.
func PatternFromMap(key string, m map[string]any) pattern.Info {
	info := pattern.Info{
		Type:        stringField(m, "pattern_type", key),
		Description: stringField(m, "description", humanize(key)),
		Frequency:   intField(m, "frequency", intField(m, "count", 0)),
		ImpactScore: floatField(m, "impact_score", 0),
		TrendScore:  floatField(m, "trend_score", 0),
	}
	info.UrgencyScore = floatField(m, "urgency_score", floatField(m, "priority", 0))
	info.Examples = stringSliceField(m, "examples")

	canonical := map[string]bool{
		"pattern_type": true, "description": true, "frequency": true, "count": true,
		"impact_score": true, "trend_score": true, "urgency_score": true, "examples": true,
	}
	metadata := make(map[string]any)
	for k, v := range m {
		if !canonical[k] {
			metadata[k] = v
		}
	}
	info.Metadata = metadata
	return info
}

// RecommendationFromMap converts a previously serialized recommendation,
// decoded as a loose JSON mapping, into the canonical struct. Aliases:
// "frequency" for the frequency score and "priority" for the urgency score.
func RecommendationFromMap(m map[string]any) recommend.Recommendation {
	return recommend.Recommendation{
		SkillName:          stringField(m, "skill_name", "unnamed-skill"),
		SkillType:          stringField(m, "skill_type", "general"),
		Description:        stringField(m, "description", ""),
		Reason:             stringField(m, "reason", ""),
		PriorityScore:      floatField(m, "priority_score", 0),
		FrequencyScore:     floatField(m, "frequency_score", floatField(m, "frequency", 0)),
		ImpactScore:        floatField(m, "impact_score", 0),
		TrendScore:         floatField(m, "trend_score", 0),
		UrgencyScore:       floatField(m, "urgency_score", floatField(m, "priority", 0)),
		ROIScore:           floatField(m, "roi_score", 0),
		SupportingPatterns: stringSliceField(m, "supporting_patterns"),
		ExampleUseCases:    stringSliceField(m, "example_use_cases"),
	}
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// floatField accepts any JSON number form; encoding/json decodes numbers
// as float64 but callers may also hand us ints.
func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func intField(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return fallback
	}
}

func stringSliceField(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// humanize turns a pattern key like "skill_gap_testing" into a readable
// fallback description.
func humanize(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

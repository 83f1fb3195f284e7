package memory

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// maxContextsPerBucket caps the examples carried per event-type bucket.
const maxContextsPerBucket = 10

// skillSuggestions maps well-known event types to skill names. Unknown types
// fall back to a hyphenated "<type>-skill".
var skillSuggestions = map[string]string{
	"api_call":        "api-optimizer",
	"data_processing": "data-transformer",
	"file_operation":  "file-handler",
	"database_query":  "db-wizard",
	"test_execution":  "test-guardian",
	"deployment":      "deploy-sage",
	"error":           "error-resolver",
}

// PatternAnalysis buckets events from the trailing window by type and keeps
// buckets whose count meets the threshold, attaching a daily frequency, a
// priority tier, and a suggested skill name to each.
func (s *Store) PatternAnalysis(ctx context.Context, days, threshold int) (*Analysis, error) {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "memory.pattern_analysis")
	defer span.End()
	span.SetAttributes(
		attribute.Int("days", days),
		attribute.Int("threshold", threshold),
	)

	if days <= 0 {
		days = 7
	}
	if threshold <= 0 {
		threshold = 5
	}

	since := time.Now().AddDate(0, 0, -days)
	events, err := s.Events(EventFilter{Since: since})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	contexts := make(map[string][]EventContext)
	for _, e := range events {
		t := e.Type
		if t == "" {
			t = "unknown"
		}
		counts[t]++
		if len(contexts[t]) < maxContextsPerBucket {
			contexts[t] = append(contexts[t], EventContext{
				Description: e.Description,
				Metadata:    e.Metadata,
				Timestamp:   e.Timestamp,
			})
		}
	}

	patterns := make(map[string]TypePattern)
	for eventType, count := range counts {
		if count < threshold {
			continue
		}
		freq := float64(count) / float64(days)
		patterns[eventType] = TypePattern{
			Count:          count,
			Frequency:      freq,
			Contexts:       contexts[eventType],
			SuggestedSkill: suggestSkill(eventType),
			Priority:       priorityTier(freq),
		}
	}

	span.SetAttributes(attribute.Int("patterns_detected", len(patterns)))
	return &Analysis{
		AnalysisPeriodDays: days,
		Threshold:          threshold,
		PatternsDetected:   len(patterns),
		Patterns:           patterns,
		Timestamp:          time.Now(),
	}, nil
}

func suggestSkill(eventType string) string {
	if name, ok := skillSuggestions[eventType]; ok {
		return name
	}
	return strings.ReplaceAll(eventType, "_", "-") + "-skill"
}

// priorityTier maps a per-day frequency to its tier.
func priorityTier(perDay float64) string {
	switch {
	case perDay >= 3:
		return "critical"
	case perDay >= 1:
		return "high"
	case perDay >= 0.5:
		return "medium"
	default:
		return "low"
	}
}

package recommend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/pattern"
)

func testingPatterns() map[string]pattern.Info {
	return map[string]pattern.Info{
		"skill_gap_testing": {
			Type:         "skill_gap",
			Description:  "Potential skill gap in testing",
			Frequency:    8,
			ImpactScore:  0.8,
			TrendScore:   0.7,
			UrgencyScore: 0.7,
			Examples:     []string{"testing mentioned 8 times"},
			Metadata:     map[string]any{"domain": "testing"},
		},
		"recurring_problem_test": {
			Type:         "problem_recurrence",
			Description:  "Recurring issue related to: test",
			Frequency:    4,
			ImpactScore:  0.8,
			TrendScore:   0.7,
			UrgencyScore: 0.8,
			Examples:     []string{"test flake in CI", "test timeout"},
			Metadata:     map[string]any{"keyword": "test"},
		},
	}
}

func TestRecommend_QualifyingDomain(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	recs := r.Recommend(context.Background(), testingPatterns())

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "TEST-GUARDIAN", rec.SkillName)
	assert.Equal(t, "testing", rec.SkillType)
	assert.Len(t, rec.SupportingPatterns, 2)
	assert.NotEmpty(t, rec.ExampleUseCases)
	assert.Contains(t, rec.Reason, "2 patterns in testing domain")
	assert.Contains(t, rec.Reason, "12 total occurrences")
	assert.Contains(t, rec.Reason, "recurring problems")
	assert.Contains(t, rec.Reason, "Skill gap detected")
}

func TestRecommend_PriorityIsWeightedSum(t *testing.T) {
	cfg := config.Default()
	r := NewRecommender(cfg, nil)

	recs := r.Recommend(context.Background(), testingPatterns())
	require.Len(t, recs, 1)
	rec := recs[0]

	want := rec.FrequencyScore*cfg.Scoring.FrequencyWeight +
		rec.ImpactScore*cfg.Scoring.ImpactWeight +
		rec.TrendScore*cfg.Scoring.TrendWeight +
		rec.UrgencyScore*cfg.Scoring.UrgencyWeight +
		rec.ROIScore*cfg.Scoring.ROIWeight
	assert.InDelta(t, want, rec.PriorityScore, 1e-9)
}

func TestRecommend_SubScores(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	recs := r.Recommend(context.Background(), testingPatterns())
	require.Len(t, recs, 1)
	rec := recs[0]

	// total frequency 12 over high threshold 6 times 2 patterns caps at 1.
	assert.InDelta(t, 1.0, rec.FrequencyScore, 1e-9)
	assert.InDelta(t, 0.8, rec.ImpactScore, 1e-9)
	assert.InDelta(t, 0.7, rec.TrendScore, 1e-9)
	assert.InDelta(t, 0.75, rec.UrgencyScore, 1e-9)
	// roi = min(12/10 * 0.8, 1) = 0.96
	assert.InDelta(t, 0.96, rec.ROIScore, 1e-9)
}

func TestRecommend_SingleLowFrequencyPatternSkipped(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	recs := r.Recommend(context.Background(), map[string]pattern.Info{
		"recurring_problem_test": {
			Type:        "problem_recurrence",
			Description: "Recurring issue related to: test",
			Frequency:   3,
			ImpactScore: 0.8,
		},
	})
	assert.Empty(t, recs)
}

func TestRecommend_SinglePatternWithHighFrequencyQualifies(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	recs := r.Recommend(context.Background(), map[string]pattern.Info{
		"skill_gap_testing": {
			Type:         "skill_gap",
			Description:  "Potential skill gap in testing",
			Frequency:    6,
			ImpactScore:  0.8,
			TrendScore:   0.7,
			UrgencyScore: 0.7,
			Examples:     []string{"testing mentioned 6 times"},
			Metadata:     map[string]any{"domain": "testing"},
		},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "TEST-GUARDIAN", recs[0].SkillName)
}

func TestRecommend_GeneralBucketNeverRecommended(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	recs := r.Recommend(context.Background(), map[string]pattern.Info{
		"high_frequency_sessions": {
			Type:        "temporal",
			Description: "High frequency of sessions detected",
			Frequency:   20,
		},
		"day_of_week_pattern": {
			Type:        "temporal",
			Description: "Most sessions on Thursday",
			Frequency:   10,
		},
	})
	assert.Empty(t, recs)
}

func TestRecommend_DomainWithoutTemplateSkipped(t *testing.T) {
	r := NewRecommender(config.Default(), nil)

	// frontend has a skill-gap domain but no template in the catalog.
	recs := r.Recommend(context.Background(), map[string]pattern.Info{
		"skill_gap_frontend": {
			Type:        "skill_gap",
			Description: "Potential skill gap in frontend",
			Frequency:   9,
			Metadata:    map[string]any{"domain": "frontend"},
		},
	})
	assert.Empty(t, recs)
}

func TestRecommend_SortedDescendingAndFiltered(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.RecommendationMinScore = 0.1
	r := NewRecommender(cfg, nil)

	patterns := testingPatterns()
	patterns["skill_gap_deployment"] = pattern.Info{
		Type:         "skill_gap",
		Description:  "Potential skill gap in deployment",
		Frequency:    5,
		ImpactScore:  0.2,
		TrendScore:   0.1,
		UrgencyScore: 0.1,
		Examples:     []string{"deployment mentioned 5 times"},
		Metadata:     map[string]any{"domain": "deployment"},
	}

	recs := r.Recommend(context.Background(), patterns)

	require.Len(t, recs, 2)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].PriorityScore, recs[i].PriorityScore)
	}
	assert.Equal(t, "TEST-GUARDIAN", recs[0].SkillName)
}

func TestRecommend_MinScoreFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds.RecommendationMinScore = 0.99
	r := NewRecommender(cfg, nil)

	recs := r.Recommend(context.Background(), testingPatterns())
	assert.Empty(t, recs)
}

func TestGroupByDomain_FirstMatchWins(t *testing.T) {
	grouped := groupByDomain(map[string]pattern.Info{
		"commit_keyword_test": {
			Type:        "commit_keyword",
			Description: "Frequent commit keyword: test",
		},
	})
	assert.Len(t, grouped["testing"], 1)
}

func TestGroupByDomain_SkillGapMetadataFallback(t *testing.T) {
	grouped := groupByDomain(map[string]pattern.Info{
		"skill_gap_frontend": {
			Type:        "skill_gap",
			Description: "Potential skill gap in ui work",
			Metadata:    map[string]any{"domain": "frontend"},
		},
	})
	assert.Len(t, grouped["frontend"], 1)
}

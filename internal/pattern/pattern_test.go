package pattern

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/gitx"
	"github.com/fyrsmithlabs/synapse/internal/session"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	return NewDetector(config.Default(), nil)
}

func TestAnalyze_NoSessions(t *testing.T) {
	d := newDetector(t)
	patterns := d.Analyze(context.Background(), nil, nil)
	assert.Empty(t, patterns)
}

func TestFileCorrelation_PairAboveThreshold(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ChangedFiles: []string{"a.py", "b.py"}},
		{ChangedFiles: []string{"a.py", "b.py"}},
		{ChangedFiles: []string{"a.py", "b.py"}},
	}

	patterns := d.fileCorrelations(sessions)

	var correlations []Info
	for _, p := range patterns {
		if p.Type == "file_correlation" {
			correlations = append(correlations, p)
		}
	}
	require.Len(t, correlations, 1)
	assert.Equal(t, 3, correlations[0].Frequency)
	assert.Equal(t, "a.py", correlations[0].Metadata["file1"])
	assert.Equal(t, "b.py", correlations[0].Metadata["file2"])
}

func TestFileCorrelation_BelowThresholdSkipped(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ChangedFiles: []string{"a.py", "b.py"}},
	}

	patterns := d.fileCorrelations(sessions)
	for key := range patterns {
		assert.NotContains(t, key, "file_correlation")
	}
}

func TestFileCorrelation_PairOrderNormalized(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ChangedFiles: []string{"b.py", "a.py"}},
		{ChangedFiles: []string{"a.py", "b.py"}},
	}

	patterns := d.fileCorrelations(sessions)
	p, ok := patterns["file_correlation_0"]
	require.True(t, ok)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, "a.py", p.Metadata["file1"])
}

func TestFileType_RequiresFiveOccurrences(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ChangedFiles: []string{"a.go", "b.go", "c.go"}},
		{ChangedFiles: []string{"d.go", "e.go", "f.md"}},
	}

	patterns := d.fileCorrelations(sessions)
	p, ok := patterns["file_type_go"]
	require.True(t, ok)
	assert.Equal(t, 5, p.Frequency)
	_, ok = patterns["file_type_md"]
	assert.False(t, ok)
}

func TestSkillGap_OnlyMatchedDomainEmitted(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ProblemsSolved: []string{"test test test", "test test test"}},
	}

	patterns := d.skillGaps(sessions, nil)

	p, ok := patterns["skill_gap_testing"]
	require.True(t, ok)
	assert.GreaterOrEqual(t, p.Frequency, 5)
	assert.Len(t, patterns, 1)
}

func TestSkillGap_CountsCommitsToo(t *testing.T) {
	d := newDetector(t)
	commits := []gitx.Commit{
		{Message: "deploy docker image"},
		{Message: "deploy via pipeline"},
		{Message: "deploy to kubernetes"},
	}

	patterns := d.skillGaps(nil, commits)
	p, ok := patterns["skill_gap_deployment"]
	require.True(t, ok)
	assert.Equal(t, 6, p.Frequency)
}

func TestProblemRecurrence_StopwordsAndShortWordsFiltered(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{ProblemsSolved: []string{"timeout with db", "timeout from db"}},
	}

	patterns := d.problemRecurrence(sessions)

	p, ok := patterns["recurring_problem_timeout"]
	require.True(t, ok)
	assert.Equal(t, 2, p.Frequency)
	assert.Len(t, p.Examples, 2)
	_, ok = patterns["recurring_problem_with"]
	assert.False(t, ok)
	_, ok = patterns["recurring_problem_db"]
	assert.False(t, ok)
}

func TestCommitPatterns_TypePrefix(t *testing.T) {
	d := newDetector(t)
	commits := []gitx.Commit{
		{Message: "fix: one"},
		{Message: "fix: two"},
		{Message: "fix: three"},
		{Message: "feat: once"},
	}

	patterns := d.commitPatterns(commits)

	p, ok := patterns["commit_type_fix"]
	require.True(t, ok)
	assert.Equal(t, 3, p.Frequency)
	assert.Len(t, p.Examples, 3)
	_, ok = patterns["commit_type_feat"]
	assert.False(t, ok)
}

func TestCommitPatterns_KeywordThreshold(t *testing.T) {
	d := newDetector(t)
	var commits []gitx.Commit
	for i := 0; i < 5; i++ {
		commits = append(commits, gitx.Commit{Message: fmt.Sprintf("adjust parser step %d", i)})
	}

	patterns := d.commitPatterns(commits)

	p, ok := patterns["commit_keyword_parser"]
	require.True(t, ok)
	assert.Equal(t, 5, p.Frequency)
	// "step" appears 5 times too but is exactly 4 chars, so it qualifies.
	_, ok = patterns["commit_keyword_step"]
	assert.True(t, ok)
}

func TestTemporal_HighFrequency(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{Timestamp: "2026-08-20-10:00"},
		{Timestamp: "2026-08-20-10:30"},
		{Timestamp: "2026-08-20-11:00"},
	}

	patterns := d.temporalPatterns(sessions)

	p, ok := patterns["high_frequency_sessions"]
	require.True(t, ok)
	assert.Equal(t, 3, p.Frequency)
	assert.InDelta(t, 0.5, p.Metadata["avg_interval_hours"].(float64), 1e-9)

	// Three sessions on one day of the week meets the day threshold.
	day, ok := patterns["day_of_week_pattern"]
	require.True(t, ok)
	assert.Equal(t, 3, day.Frequency)

	hour, ok := patterns["time_of_day_pattern"]
	require.True(t, ok)
	assert.Equal(t, 2, hour.Frequency)
	assert.Equal(t, 10, hour.Metadata["hour"])
}

func TestTemporal_SingleSessionSkipped(t *testing.T) {
	d := newDetector(t)
	patterns := d.temporalPatterns([]session.Record{{Timestamp: "2026-08-20-10:00"}})
	assert.Empty(t, patterns)
}

func TestAgentCollaboration_Handoff(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{Agent: "alpha", ChangedFiles: []string{"x.go"}},
		{Agent: "beta", ChangedFiles: []string{"y.md"}},
		{Agent: "alpha"},
		{Agent: "beta"},
	}

	patterns := d.agentCollaboration(sessions)

	p, ok := patterns["agent_handoff_pattern"]
	require.True(t, ok)
	assert.Equal(t, 2, p.Frequency)
	assert.Equal(t, "alpha", p.Metadata["from"])
	assert.Equal(t, "beta", p.Metadata["to"])

	spec, ok := patterns["agent_specialization_alpha"]
	require.True(t, ok)
	assert.Equal(t, "go", spec.Metadata["extension"])
}

func TestAnalyze_MergesAllDetectors(t *testing.T) {
	d := newDetector(t)
	sessions := []session.Record{
		{Timestamp: "2026-08-20-10:00", Agent: "alpha", ChangedFiles: []string{"a.py", "b.py"}, ProblemsSolved: []string{"test failure in test suite"}},
		{Timestamp: "2026-08-20-10:20", Agent: "beta", ChangedFiles: []string{"a.py", "b.py"}},
		{Timestamp: "2026-08-20-10:40", Agent: "alpha", ChangedFiles: []string{"a.py", "b.py"}},
	}
	commits := []gitx.Commit{
		{Message: "fix: test flake"},
		{Message: "fix: another test"},
		{Message: "fix: test again"},
	}

	patterns := d.Analyze(context.Background(), sessions, commits)

	assert.Contains(t, patterns, "high_frequency_sessions")
	assert.Contains(t, patterns, "file_correlation_0")
	assert.Contains(t, patterns, "commit_type_fix")
	assert.Contains(t, patterns, "agent_handoff_pattern")
	assert.Contains(t, patterns, "skill_gap_testing")
}

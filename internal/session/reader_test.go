package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/synapse/internal/memory"
)

const sampleBlock = `# Agent Work Log - Session 2026-08-20-14:30

## Session Information
- **Agent**: Claude (Synapse Agent)
- **Repository**: demo

## Files Changed This Session
- **Total Files**: 4
- **Modified**: 2 files
- **Added**: 1 files
- **Deleted**: 0 files
- **Untracked**: 1 files

### Changed Files
- **Modified**: api/server.go, api/handler.go
- **Untracked**: notes.md

## Recent Commits
- **a1b2c3d**: fix: handle nil session (2026-08-19)
- **d4e5f6a**: feat: add report output (2026-08-18)

## Problems Solved This Session
- **Fix**: fix: handle nil session

## Current Repository State
- **Git Status**: 4 files changed
- **Branch**: feature/report
`

func newTestReader(t *testing.T, logContent string) *Reader {
	t.Helper()
	store, err := memory.Open(t.TempDir(), memory.Options{})
	require.NoError(t, err)
	if logContent != "" {
		require.NoError(t, os.WriteFile(store.LogPath(), []byte(logContent), 0o644))
	}
	return NewReader(store, Options{})
}

func TestParseBlock_FullBlock(t *testing.T) {
	rec := parseBlock(sampleBlock)

	assert.Equal(t, "2026-08-20-14:30", rec.Timestamp)
	assert.Equal(t, "Claude (Synapse Agent)", rec.Agent)
	assert.Equal(t, "demo", rec.Repository)
	assert.Equal(t, 4, rec.TotalFiles)
	assert.Equal(t, 2, rec.ModifiedFiles)
	assert.Equal(t, 1, rec.AddedFiles)
	assert.Equal(t, 0, rec.DeletedFiles)
	assert.Equal(t, 1, rec.UntrackedFiles)
	assert.Equal(t, "feature/report", rec.Branch)
	assert.Equal(t, "4 files changed", rec.GitStatus)

	require.Len(t, rec.RecentCommits, 2)
	assert.Equal(t, "a1b2c3d", rec.RecentCommits[0].Hash)
	assert.Equal(t, "fix: handle nil session", rec.RecentCommits[0].Message)

	assert.Equal(t, []string{"fix: handle nil session"}, rec.ProblemsSolved)
	assert.Contains(t, rec.ChangedFiles, "api/server.go")
}

func TestParseBlock_EmptyFieldsDefault(t *testing.T) {
	rec := parseBlock("just some text without labels")

	assert.Empty(t, rec.Timestamp)
	assert.Empty(t, rec.Agent)
	assert.Zero(t, rec.TotalFiles)
	assert.Equal(t, "main", rec.Branch)
	assert.Empty(t, rec.ProblemsSolved)
}

func TestReadAll_SplitsOnSeparator(t *testing.T) {
	log := sampleBlock + "\n" + memory.SessionSeparator + "\n" + sampleBlock
	r := newTestReader(t, log)

	corpus, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, corpus.Sessions, 2)
	// Status snapshot is present as a loose mapping.
	assert.Equal(t, "Synapse System", corpus.CurrentStatus["agent"])
}

func TestReadAll_EmptyLog(t *testing.T) {
	r := newTestReader(t, "")

	corpus, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, corpus.Sessions)
}

func TestReadSessions_TailReadRealigns(t *testing.T) {
	// Build a log larger than the parse ceiling; old sessions fall away and
	// the tail realigns on the separator so no torn block is parsed.
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "# Agent Work Log - Session 2026-08-%02d-10:00\n", (i%27)+1)
		sb.WriteString("- **Agent**: bulk\n")
		sb.WriteString(strings.Repeat("filler line for size\n", 50))
		sb.WriteString("\n" + memory.SessionSeparator + "\n")
	}
	logContent := sb.String()

	store, err := memory.Open(t.TempDir(), memory.Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.LogPath(), []byte(logContent), 0o644))

	r := NewReader(store, Options{MaxParseBytes: 8 * 1024})
	sessions, err := r.readSessions()
	require.NoError(t, err)

	require.NotEmpty(t, sessions)
	assert.Less(t, len(sessions), 50)
	for _, rec := range sessions {
		assert.Equal(t, "bulk", rec.Agent)
	}
}

func TestReadHandoff(t *testing.T) {
	store, err := memory.Open(t.TempDir(), memory.Options{})
	require.NoError(t, err)
	require.NoError(t, store.WriteHandoff(`# Agent Handoff - 2026-08-20-14:30

**Project**: demo
**Status**: Clean

## Next Steps (Priority Order)
1. Review the session log
2. Run the analysis

## Recent Work
- Latest: feat: add report output
`))

	r := NewReader(store, Options{})
	h := r.readHandoff()

	assert.Equal(t, "demo", h.Project)
	assert.Equal(t, "Clean", h.Status)
	assert.Equal(t, []string{"Review the session log", "Run the analysis"}, h.NextSteps)
	assert.Equal(t, "feat: add report output", h.RecentWork)
}

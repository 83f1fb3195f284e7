package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/memory"
)

func seedSessions(t *testing.T, dir string, n int) {
	t.Helper()
	store, err := memory.Open(dir, memory.Options{})
	require.NoError(t, err)

	var blocks []string
	for i := 0; i < n; i++ {
		blocks = append(blocks, fmt.Sprintf(`# Agent Work Log - Session 2026-08-20-10:%02d

## Session Information
- **Agent**: Claude (Synapse Agent)
- **Repository**: demo

## Files Changed This Session
- **Total Files**: 2
- **Modified**: 2 files

### Changed Files
- **Modified**: handler.go, handler_test.go

## Problems Solved This Session
- **Fix**: fix: flaky test in handler suite
`, i*10))
	}
	log := strings.Join(blocks, "\n"+memory.SessionSeparator+"\n")
	require.NoError(t, os.WriteFile(store.LogPath(), []byte(log), 0o644))
}

func TestRun_NoSessions(t *testing.T) {
	a := New(config.Default(), nil)

	_, err := a.Run(context.Background(), Options{RepoPath: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoSessions)
}

func TestRun_ProducesReport(t *testing.T) {
	dir := t.TempDir()
	seedSessions(t, dir, 3)

	a := New(config.Default(), nil)
	rep, err := a.Run(context.Background(), Options{RepoPath: dir})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Summary.TotalSessionsAnalyzed)
	assert.NotZero(t, rep.Summary.PatternsDetected)
	assert.NotEmpty(t, rep.Metadata.RunID)
	// Three sessions in thirty minutes reads as high frequency.
	keys := make([]string, 0, len(rep.Patterns))
	for _, p := range rep.Patterns {
		keys = append(keys, p.Key)
	}
	assert.Contains(t, keys, "high_frequency_sessions")
}

func TestRun_HonorsLogParseCeiling(t *testing.T) {
	dir := t.TempDir()
	seedSessions(t, dir, 6)

	// Covers the last block and the separator before it, nothing more.
	cfg := config.Default()
	cfg.Analysis.MaxLogParseBytes = 500

	a := New(cfg, nil)
	rep, err := a.Run(context.Background(), Options{RepoPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.TotalSessionsAnalyzed)

	// The full default ceiling sees every seeded session.
	a = New(config.Default(), nil)
	rep, err = a.Run(context.Background(), Options{RepoPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Summary.TotalSessionsAnalyzed)
}

func TestRun_SavesReportFiles(t *testing.T) {
	dir := t.TempDir()
	seedSessions(t, dir, 3)

	prefix := filepath.Join(t.TempDir(), "report")
	a := New(config.Default(), nil)
	_, err := a.Run(context.Background(), Options{RepoPath: dir, OutputPrefix: prefix, Format: "both"})
	require.NoError(t, err)

	_, err = os.Stat(prefix + ".json")
	assert.NoError(t, err)
	_, err = os.Stat(prefix + ".txt")
	assert.NoError(t, err)
}

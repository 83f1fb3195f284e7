// Package trace captures the current working session as agent memory: a
// markdown work-log block, a machine-readable status snapshot, and handoff
// notes for whoever picks the repository up next.
package trace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/gitx"
	"github.com/fyrsmithlabs/synapse/internal/memory"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/synapse/internal/trace"

	agentName          = "Claude (Synapse Agent)"
	recentCommitsLimit = 5
	maxFilesShown      = 5
)

var (
	problemIndicators  = []string{"fix", "bug", "error", "issue", "problem", "critical", "broken"}
	solutionIndicators = []string{"implement", "add", "create", "update", "improve", "optimize"}
)

// Problem is a solved problem derived from a commit message.
type Problem struct {
	Commit      string
	Description string
	Date        string
	Type        string
}

// Result lists the files a trace run wrote.
type Result struct {
	LogPath     string
	StatusPath  string
	HandoffPath string
}

// Tracer writes session memory files through a Store.
type Tracer struct {
	store  *memory.Store
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewTracer returns a Tracer over the given store. A nil cfg falls back to
// defaults and a nil logger discards.
func NewTracer(store *memory.Store, cfg *config.Config, logger *zap.Logger) (*Tracer, error) {
	if store == nil {
		return nil, fmt.Errorf("trace: store is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{store: store, cfg: cfg, logger: logger, now: time.Now}, nil
}

// Run snapshots the repository, renders the work log, status, and handoff
// files, and records a session_traced event. The event record is
// best-effort; a failure there never fails the trace.
func (t *Tracer) Run(ctx context.Context) (*Result, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "trace.Run")
	defer span.End()

	timestamp := t.now().Format(memory.TimestampLayout)
	snap := gitx.TakeSnapshot(t.store.RepoPath(), t.logger)
	var commits []gitx.Commit
	if snap.HasGit {
		commits = gitx.Log(ctx, t.store.RepoPath(), recentCommitsLimit, t.cfg.GitTimeout(), t.logger)
	}
	problems := extractProblems(commits)

	block := t.renderWorkLog(timestamp, snap, commits, problems)
	if err := t.appendWorkLog(block); err != nil {
		return nil, err
	}
	if err := t.writeStatus(timestamp, snap, commits); err != nil {
		return nil, err
	}
	if err := t.store.WriteHandoff(t.renderHandoff(timestamp, snap, commits)); err != nil {
		return nil, fmt.Errorf("trace: write handoff: %w", err)
	}

	if err := t.store.AddEvent(ctx, "session_traced",
		fmt.Sprintf("Session traced with %d file changes", snap.Changes.Total()),
		map[string]any{
			"files_changed":    snap.Changes.Total(),
			"git_clean":        snap.Changes.Total() == 0,
			"branch":           snap.Branch,
			"commits_analyzed": len(commits),
		}); err != nil {
		t.logger.Warn("failed to record trace event", zap.Error(err))
	}

	t.logger.Info("session traced",
		zap.Int("files_changed", snap.Changes.Total()),
		zap.Int("commits", len(commits)))

	return &Result{
		LogPath:     t.store.LogPath(),
		StatusPath:  t.store.StatusPath(),
		HandoffPath: t.store.HandoffPath(),
	}, nil
}

// extractProblems classifies commit messages into fixes and enhancements.
// Problem keywords take precedence over solution keywords.
func extractProblems(commits []gitx.Commit) []Problem {
	var problems []Problem
	for _, c := range commits {
		lower := strings.ToLower(c.Message)
		kind := ""
		if containsAny(lower, problemIndicators) {
			kind = "fix"
		} else if containsAny(lower, solutionIndicators) {
			kind = "enhancement"
		}
		if kind == "" {
			continue
		}
		problems = append(problems, Problem{
			Commit:      c.Hash,
			Description: c.Message,
			Date:        c.Date,
			Type:        kind,
		})
	}
	return problems
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// appendWorkLog appends the rendered block, preceded by the session
// separator when the log already holds earlier sessions.
func (t *Tracer) appendWorkLog(block string) error {
	if size := t.logSize(); size > 0 {
		block = "\n" + memory.SessionSeparator + "\n\n" + block
	}
	if err := t.store.AppendLog(block); err != nil {
		return fmt.Errorf("trace: append work log: %w", err)
	}
	return nil
}

func (t *Tracer) logSize() int64 {
	info, err := os.Stat(t.store.LogPath())
	if err != nil {
		return 0
	}
	return info.Size()
}

func (t *Tracer) renderWorkLog(timestamp string, snap gitx.Snapshot, commits []gitx.Commit, problems []Problem) string {
	repoName := filepath.Base(t.store.RepoPath())
	total := snap.Changes.Total()

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Agent Work Log - Session %s\n\n", timestamp)
	sb.WriteString("## Session Information\n")
	fmt.Fprintf(&sb, "- **Agent**: %s\n", agentName)
	fmt.Fprintf(&sb, "- **Timestamp**: %s\n", t.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- **Repository**: %s\n", repoName)
	fmt.Fprintf(&sb, "- **Working Directory**: %s\n\n", t.store.RepoPath())

	sb.WriteString("## Files Changed This Session\n")
	fmt.Fprintf(&sb, "- **Total Files**: %d\n", total)
	if snap.HasGit {
		fmt.Fprintf(&sb, "- **Modified**: %d files\n", len(snap.Changes.Modified))
		fmt.Fprintf(&sb, "- **Added**: %d files\n", len(snap.Changes.Added))
		fmt.Fprintf(&sb, "- **Deleted**: %d files\n", len(snap.Changes.Deleted))
		fmt.Fprintf(&sb, "- **Untracked**: %d files\n", len(snap.Changes.Untracked))

		sb.WriteString("\n### Changed Files\n")
		writeFileList(&sb, "Modified", snap.Changes.Modified)
		writeFileList(&sb, "Added", snap.Changes.Added)
		writeFileList(&sb, "Deleted", snap.Changes.Deleted)
		writeFileList(&sb, "Untracked", snap.Changes.Untracked)
	}

	if len(commits) > 0 {
		sb.WriteString("\n## Recent Commits\n")
		for _, c := range commits[:min(3, len(commits))] {
			fmt.Fprintf(&sb, "- **%s**: %s (%s)\n", c.Hash, c.Message, c.Date)
		}
	}

	if len(problems) > 0 {
		sb.WriteString("\n## Problems Solved This Session\n")
		for _, p := range problems {
			fmt.Fprintf(&sb, "- **%s**: %s\n", titleWord(p.Type), p.Description)
		}
	}

	gitStatus := "Clean"
	if total > 0 {
		gitStatus = fmt.Sprintf("%d files changed", total)
	}
	lastCommit := "No recent commits"
	if len(commits) > 0 {
		lastCommit = commits[0].Message
	}
	branch := snap.Branch
	if branch == "" {
		branch = "unknown"
	}

	sb.WriteString("\n## Current Repository State\n")
	fmt.Fprintf(&sb, "- **Git Status**: %s\n", gitStatus)
	fmt.Fprintf(&sb, "- **Branch**: %s\n", branch)
	fmt.Fprintf(&sb, "- **Last Commit**: %s\n\n", lastCommit)

	sb.WriteString("## Recommendations for Next Agent\n")
	sb.WriteString("1. Check git status for any uncommitted changes\n")
	sb.WriteString("2. Review recent commits to understand latest changes\n")
	sb.WriteString("3. Run tests to verify current state\n")
	sb.WriteString("4. Continue with planned development tasks\n")

	return sb.String()
}

func writeFileList(sb *strings.Builder, label string, files []string) {
	if len(files) == 0 {
		return
	}
	shown := files[:min(maxFilesShown, len(files))]
	list := strings.Join(shown, ", ")
	if len(files) > maxFilesShown {
		list += fmt.Sprintf(" (and %d more)", len(files)-maxFilesShown)
	}
	fmt.Fprintf(sb, "- **%s**: %s\n", label, list)
}

// writeStatus refreshes the status snapshot while preserving the recorded
// event history.
func (t *Tracer) writeStatus(timestamp string, snap gitx.Snapshot, commits []gitx.Commit) error {
	status, err := t.store.LoadStatus()
	if err != nil {
		return fmt.Errorf("trace: load status: %w", err)
	}
	status.Timestamp = timestamp
	status.Agent = agentName
	status.Repository = t.store.RepoPath()
	status.SessionInfo = memory.SessionInfo{
		HasGit:            snap.HasGit,
		TotalFilesChanged: snap.Changes.Total(),
		GitClean:          snap.Changes.Total() == 0,
	}
	if snap.HasGit {
		status.SessionInfo.Branch = snap.Branch
		status.SessionInfo.RecentCommits = len(commits)
	}
	if err := t.store.SaveStatus(status); err != nil {
		return fmt.Errorf("trace: save status: %w", err)
	}
	return nil
}

func (t *Tracer) renderHandoff(timestamp string, snap gitx.Snapshot, commits []gitx.Commit) string {
	total := snap.Changes.Total()
	statusLine := "Clean"
	if total > 0 {
		statusLine = fmt.Sprintf("%d files changed", total)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Agent Handoff - %s\n\n", timestamp)
	sb.WriteString("## Ready to Continue\n")
	fmt.Fprintf(&sb, "**Project**: %s\n", filepath.Base(t.store.RepoPath()))
	fmt.Fprintf(&sb, "**Status**: %s\n\n", statusLine)

	sb.WriteString("## Next Steps (Priority Order)\n")
	fmt.Fprintf(&sb, "1. Review %s for detailed session information\n", filepath.Base(t.store.LogPath()))
	fmt.Fprintf(&sb, "2. Check %s for machine-readable status\n", filepath.Base(t.store.StatusPath()))
	sb.WriteString("3. Run git status to see current repository state\n")
	sb.WriteString("4. Continue with development tasks\n")

	if len(commits) > 0 {
		sb.WriteString("\n## Recent Work\n")
		fmt.Fprintf(&sb, "- Latest: %s\n", commits[0].Message)
	}

	return sb.String()
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// Package gitx reads commit history and working-tree state from a repository.
//
// History comes from the git executable so the reader sees exactly what any
// other tool on the machine sees; the call carries a deadline and every
// failure mode (git absent, not a repository, timeout) degrades to "no data"
// rather than an error. Working-tree snapshots use go-git in process.
package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the git subprocess on large repositories.
const DefaultTimeout = 10 * time.Second

// Commit is one entry of recent history.
type Commit struct {
	Hash    string `json:"hash"`
	Author  string `json:"author,omitempty"`
	Email   string `json:"email,omitempty"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

// Log returns up to limit recent commits for the repository at dir.
// Any failure yields an empty slice; history is auxiliary context and its
// absence must never abort an analysis run.
func Log(ctx context.Context, dir string, limit int, timeout time.Duration, logger *zap.Logger) []Commit {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 50
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "log",
		fmt.Sprintf("-%d", limit),
		"--pretty=format:%H|%an|%ae|%ad|%s",
		"--date=short",
	)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		logger.Warn("git log unavailable, continuing without history",
			zap.String("dir", dir), zap.Error(err))
		return nil
	}

	return parseLog(string(out))
}

// parseLog splits pipe-delimited git log output into commits.
// Malformed lines are skipped; commit subjects containing pipes keep their
// trailing fields intact.
func parseLog(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 5)
		if len(parts) != 5 {
			continue
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Author:  parts[1],
			Email:   parts[2],
			Date:    parts[3],
			Message: parts[4],
		})
	}
	return commits
}

// Changes groups working-tree paths by their status.
type Changes struct {
	Modified  []string
	Added     []string
	Deleted   []string
	Untracked []string
}

// Total returns the number of changed paths across all categories.
func (c Changes) Total() int {
	return len(c.Modified) + len(c.Added) + len(c.Deleted) + len(c.Untracked)
}

// Snapshot is a point-in-time view of the working tree.
type Snapshot struct {
	HasGit  bool
	Branch  string
	Changes Changes
}

// TakeSnapshot inspects the repository at dir.
// A directory that is not a git repository yields HasGit=false, not an error.
func TakeSnapshot(dir string, logger *zap.Logger) Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logger.Debug("no git repository detected", zap.String("dir", dir))
		return Snapshot{}
	}

	snap := Snapshot{HasGit: true, Branch: "unknown"}

	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		snap.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		logger.Warn("failed to open worktree", zap.Error(err))
		return snap
	}
	status, err := wt.Status()
	if err != nil {
		logger.Warn("failed to read worktree status", zap.Error(err))
		return snap
	}

	for path, st := range status {
		switch {
		case st.Worktree == git.Untracked || st.Staging == git.Untracked:
			snap.Changes.Untracked = append(snap.Changes.Untracked, path)
		case st.Worktree == git.Deleted || st.Staging == git.Deleted:
			snap.Changes.Deleted = append(snap.Changes.Deleted, path)
		case st.Staging == git.Added:
			snap.Changes.Added = append(snap.Changes.Added, path)
		case st.Worktree == git.Modified || st.Staging == git.Modified:
			snap.Changes.Modified = append(snap.Changes.Modified, path)
		}
	}

	return snap
}

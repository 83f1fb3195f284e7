// Package session turns the on-disk memory files into typed session records.
//
// The companion log is a sequence of markdown blocks separated by a fixed
// separator line; blocks carry labelled fields ("**Agent**: X") that are
// extracted positionally. Oversized logs are read from the tail only and
// realigned to the next separator, so the oldest sessions of an overlong log
// are not visible to analysis.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/gitx"
	"github.com/fyrsmithlabs/synapse/internal/memory"
)

// defaultMaxParseBytes bounds how much of the log is read at once.
const defaultMaxParseBytes = 2_000_000

var (
	reSessionStamp = regexp.MustCompile(`Session (\d{4}-\d{2}-\d{2}-\d{2}:\d{2})`)
	reAgent        = regexp.MustCompile(`\*\*Agent\*\*: (.+)`)
	reRepository   = regexp.MustCompile(`\*\*Repository\*\*: (.+)`)
	reTotalFiles   = regexp.MustCompile(`\*\*Total Files\*\*: (\d+)`)
	reModified     = regexp.MustCompile(`\*\*Modified\*\*: (\d+)`)
	reAdded        = regexp.MustCompile(`\*\*Added\*\*: (\d+)`)
	reDeleted      = regexp.MustCompile(`\*\*Deleted\*\*: (\d+)`)
	reUntracked    = regexp.MustCompile(`\*\*Untracked\*\*: (\d+)`)
	reFix          = regexp.MustCompile(`\*\*(?:Fix|Enhancement)\*\*: (.+)`)
	reGitStatus    = regexp.MustCompile(`\*\*Git Status\*\*: (.+)`)
	reBranch       = regexp.MustCompile(`\*\*Branch\*\*: (.+)`)
	reCommitLine   = regexp.MustCompile(`\*\*([0-9a-f]+)\*\*: (.+?) \((\d{4}-\d{2}-\d{2})\)`)
	reFilesSection = regexp.MustCompile(`(?s)### Changed Files\n(.+?)(?:\n\n|\n##|$)`)
	reFileEntry    = regexp.MustCompile(`(?:Modified|Deleted|Added|Untracked): (.+?)(?:\n|,|\(and)`)

	reHandoffProject = regexp.MustCompile(`\*\*Project\*\*: (.+)`)
	reHandoffStatus  = regexp.MustCompile(`\*\*Status\*\*: (.+)`)
	reHandoffSteps   = regexp.MustCompile(`(?s)## .*Next Steps.*?\n(.*?)(?:\n##|$)`)
	reHandoffStep    = regexp.MustCompile(`\d+\.\s+(.+)`)
	reHandoffLatest  = regexp.MustCompile(`- Latest: (.+)`)
)

// Options bounds the reader.
type Options struct {
	// MaxParseBytes caps how many trailing bytes of the log are parsed
	// (default 2 MB).
	MaxParseBytes int64
	// GitLogLimit caps fetched commit history (default 50).
	GitLogLimit int
	// GitTimeout bounds the git subprocess (default gitx.DefaultTimeout).
	GitTimeout time.Duration
	// Logger receives per-record parse warnings. Nil means silent.
	Logger *zap.Logger
}

// Reader parses the memory files of one repository.
type Reader struct {
	store  *memory.Store
	opts   Options
	logger *zap.Logger
}

// NewReader creates a reader over the given store's files.
func NewReader(store *memory.Store, opts Options) *Reader {
	if opts.MaxParseBytes <= 0 {
		opts.MaxParseBytes = defaultMaxParseBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reader{store: store, opts: opts, logger: opts.Logger}
}

// ReadAll assembles the full analysis corpus. Individual sources failing
// (missing files, dead git) degrade to empty values; ReadAll itself only
// fails on unexpected I/O faults.
func (r *Reader) ReadAll(ctx context.Context) (*Corpus, error) {
	corpus := &Corpus{
		CurrentStatus: map[string]any{},
	}

	sessions, err := r.readSessions()
	if err != nil {
		return nil, err
	}
	corpus.Sessions = sessions

	if status := r.readStatus(); status != nil {
		corpus.CurrentStatus = status
	}
	corpus.Handoff = r.readHandoff()
	corpus.Commits = gitx.Log(ctx, r.store.RepoPath(), r.opts.GitLogLimit, r.opts.GitTimeout, r.logger)

	r.logger.Info("read analysis corpus",
		zap.Int("sessions", len(corpus.Sessions)),
		zap.Int("commits", len(corpus.Commits)))
	return corpus, nil
}

// readSessions reads and splits the session log. Logs above MaxParseBytes
// are read from the tail and realigned to the next separator.
func (r *Reader) readSessions() ([]Record, error) {
	f, err := os.Open(r.store.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Warn("session log not found", zap.String("path", r.store.LogPath()))
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var data []byte
	if info.Size() > r.opts.MaxParseBytes {
		if _, err := f.Seek(-r.opts.MaxParseBytes, io.SeekEnd); err != nil {
			return nil, err
		}
		data, err = io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		if idx := bytes.Index(data, []byte(memory.SessionSeparator)); idx >= 0 {
			data = data[idx:]
		}
	} else {
		data, err = io.ReadAll(f)
		if err != nil {
			return nil, err
		}
	}

	var sessions []Record
	for _, block := range strings.Split(string(data), memory.SessionSeparator) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		sessions = append(sessions, parseBlock(block))
	}

	return sessions, nil
}

// parseBlock extracts one session record from a log block. Absent fields
// default to empty or zero.
func parseBlock(block string) Record {
	rec := Record{
		Timestamp:  firstGroup(reSessionStamp, block),
		Agent:      firstGroup(reAgent, block),
		Repository: firstGroup(reRepository, block),
		GitStatus:  firstGroup(reGitStatus, block),

		TotalFiles:     extractInt(reTotalFiles, block),
		ModifiedFiles:  extractInt(reModified, block),
		AddedFiles:     extractInt(reAdded, block),
		DeletedFiles:   extractInt(reDeleted, block),
		UntrackedFiles: extractInt(reUntracked, block),
	}

	rec.Branch = firstGroup(reBranch, block)
	if rec.Branch == "" {
		rec.Branch = "main"
	}

	for _, m := range reFix.FindAllStringSubmatch(block, -1) {
		rec.ProblemsSolved = append(rec.ProblemsSolved, strings.TrimSpace(m[1]))
	}

	for _, m := range reCommitLine.FindAllStringSubmatch(block, -1) {
		rec.RecentCommits = append(rec.RecentCommits, gitx.Commit{
			Hash:    m[1],
			Message: m[2],
			Date:    m[3],
		})
	}

	if section := reFilesSection.FindStringSubmatch(block); section != nil {
		for _, m := range reFileEntry.FindAllStringSubmatch(section[1], -1) {
			rec.ChangedFiles = append(rec.ChangedFiles, strings.TrimSpace(m[1]))
		}
	}

	return rec
}

// readStatus loads the status snapshot as a loose mapping; the analysis
// pipeline treats it as opaque context.
func (r *Reader) readStatus() map[string]any {
	data, err := os.ReadFile(r.store.StatusPath())
	if err != nil {
		r.logger.Warn("status snapshot not readable", zap.Error(err))
		return nil
	}
	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		r.logger.Warn("status snapshot malformed, ignoring", zap.Error(err))
		return nil
	}
	return status
}

func (r *Reader) readHandoff() Handoff {
	content := r.store.ReadHandoff()
	if content == "" {
		return Handoff{}
	}

	h := Handoff{
		Project:    firstGroup(reHandoffProject, content),
		Status:     firstGroup(reHandoffStatus, content),
		RecentWork: firstGroup(reHandoffLatest, content),
	}
	if section := reHandoffSteps.FindStringSubmatch(content); section != nil {
		for _, m := range reHandoffStep.FindAllStringSubmatch(section[1], -1) {
			h.NextSteps = append(h.NextSteps, strings.TrimSpace(m[1]))
		}
	}
	return h
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractInt(re *regexp.Regexp, s string) int {
	if m := re.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

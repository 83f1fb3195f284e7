package memory

import (
	"strings"
	"time"
)

// SessionSeparator delimits session blocks in the companion log. The session
// reader and the log truncation realignment both depend on this exact string.
var SessionSeparator = strings.Repeat("=", 80)

// TimestampLayout is the layout of session-level timestamps in the status
// file and the log blocks.
const TimestampLayout = "2006-01-02-15:04"

// Event is one typed, timestamped record of agent activity. Events are
// immutable once appended.
type Event struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata"`
}

// SessionInfo summarizes repository state at the time of the last trace.
// Fields are additive only: other processes read the status file live.
type SessionInfo struct {
	HasGit            bool   `json:"has_git"`
	TotalFilesChanged int    `json:"total_files_changed"`
	GitClean          bool   `json:"git_clean"`
	Branch            string `json:"branch,omitempty"`
	RecentCommits     int    `json:"recent_commits,omitempty"`
}

// Status is the persisted shape of the per-repository status file.
type Status struct {
	Timestamp    string      `json:"timestamp"`
	Agent        string      `json:"agent"`
	Repository   string      `json:"repository"`
	SessionInfo  SessionInfo `json:"session_info"`
	CustomEvents []Event     `json:"custom_events"`
}

// EventFilter narrows the result of Events. Filters compose: type first,
// then time, then limit-to-most-recent.
type EventFilter struct {
	// Type keeps only events of this type when non-empty.
	Type string
	// Since keeps only events at or after this instant when non-zero.
	Since time.Time
	// Limit keeps at most this many events from the tail when positive.
	Limit int
}

// TypePattern is one event-type bucket that cleared the analysis threshold.
type TypePattern struct {
	Count          int            `json:"count"`
	Frequency      float64        `json:"frequency"`
	Contexts       []EventContext `json:"contexts"`
	SuggestedSkill string         `json:"suggested_skill"`
	Priority       string         `json:"priority"`
}

// EventContext is a compact view of one event inside a bucket.
type EventContext struct {
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Analysis is the result of the event-level pattern convenience API.
type Analysis struct {
	AnalysisPeriodDays int                    `json:"analysis_period_days"`
	Threshold          int                    `json:"threshold"`
	PatternsDetected   int                    `json:"patterns_detected"`
	Patterns           map[string]TypePattern `json:"patterns"`
	Timestamp          time.Time              `json:"timestamp"`
}

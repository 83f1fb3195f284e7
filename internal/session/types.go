package session

import "github.com/fyrsmithlabs/synapse/internal/gitx"

// Record is a point-in-time snapshot of one agent working session, parsed
// from a log block. Missing fields default to empty or zero; a block never
// fails to parse partially.
type Record struct {
	// Timestamp uses the 2006-01-02-15:04 layout.
	Timestamp      string
	Agent          string
	Repository     string
	TotalFiles     int
	ModifiedFiles  int
	AddedFiles     int
	DeletedFiles   int
	UntrackedFiles int
	RecentCommits  []gitx.Commit
	ProblemsSolved []string
	GitStatus      string
	Branch         string
	ChangedFiles   []string
}

// Handoff is the parsed handoff note.
type Handoff struct {
	Project    string   `json:"project"`
	Status     string   `json:"status"`
	NextSteps  []string `json:"next_steps"`
	RecentWork string   `json:"recent_work"`
}

// Corpus is everything the analysis pipeline consumes: the chronological
// session records plus auxiliary context.
type Corpus struct {
	Sessions      []Record
	CurrentStatus map[string]any
	Handoff       Handoff
	Commits       []gitx.Commit
}

// Package analyzer wires the full pipeline together: read the session
// corpus, detect patterns, rank skill recommendations, and assemble the
// report.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/memory"
	"github.com/fyrsmithlabs/synapse/internal/pattern"
	"github.com/fyrsmithlabs/synapse/internal/recommend"
	"github.com/fyrsmithlabs/synapse/internal/report"
	"github.com/fyrsmithlabs/synapse/internal/session"
)

const instrumentationName = "github.com/fyrsmithlabs/synapse/internal/analyzer"

// ErrNoSessions signals an empty corpus: nothing has been traced yet, so
// there is nothing to analyze.
var ErrNoSessions = errors.New("no sessions recorded")

// Options selects what one analysis run reads and writes.
type Options struct {
	// RepoPath is the repository whose memory files are analyzed.
	RepoPath string
	// OutputPrefix, when set, saves the report as <prefix>.json/.txt.
	OutputPrefix string
	// Format selects the saved artifacts: "json", "text", or "both".
	// Empty uses the configured default.
	Format string
}

// Analyzer runs the detection pipeline end to end.
type Analyzer struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New returns an Analyzer. A nil cfg falls back to defaults and a nil
// logger discards.
func New(cfg *config.Config, logger *zap.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Run executes one analysis pass over the repository's memory files and
// returns the assembled report. ErrNoSessions is returned when the session
// log holds no parseable sessions.
func (a *Analyzer) Run(ctx context.Context, opts Options) (*report.Report, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "analyzer.Run")
	defer span.End()

	store, err := memory.Open(opts.RepoPath, memory.Options{
		MaxEvents:   a.cfg.Memory.MaxEvents,
		MaxLogBytes: a.cfg.Memory.MaxLogMB << 20,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: open store: %w", err)
	}

	reader := session.NewReader(store, session.Options{
		MaxParseBytes: a.cfg.Analysis.MaxLogParseBytes,
		GitLogLimit:   a.cfg.Analysis.GitLogLimit,
		GitTimeout:    a.cfg.GitTimeout(),
		Logger:        a.logger,
	})
	corpus, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzer: read corpus: %w", err)
	}
	if len(corpus.Sessions) == 0 {
		return nil, ErrNoSessions
	}
	a.logger.Info("corpus loaded",
		zap.Int("sessions", len(corpus.Sessions)),
		zap.Int("commits", len(corpus.Commits)))

	patterns := pattern.NewDetector(a.cfg, a.logger).Analyze(ctx, corpus.Sessions, corpus.Commits)
	recs := recommend.NewRecommender(a.cfg, a.logger).Recommend(ctx, patterns)

	gen := report.NewGenerator(a.cfg, a.logger)
	rep := gen.Generate(ctx, patterns, recs, corpus)

	if opts.OutputPrefix != "" {
		if err := gen.Save(rep, opts.OutputPrefix, opts.Format); err != nil {
			return nil, fmt.Errorf("analyzer: save report: %w", err)
		}
	}

	return rep, nil
}

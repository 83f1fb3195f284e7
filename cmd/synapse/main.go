// Package main implements the synapse CLI: session tracing, event
// bookkeeping, pattern analysis, and the MCP server.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/analyzer"
	"github.com/fyrsmithlabs/synapse/internal/config"
	"github.com/fyrsmithlabs/synapse/internal/logging"
	"github.com/fyrsmithlabs/synapse/internal/mcpserver"
	"github.com/fyrsmithlabs/synapse/internal/memory"
	"github.com/fyrsmithlabs/synapse/internal/report"
	"github.com/fyrsmithlabs/synapse/internal/trace"
)

var (
	version = "dev"

	configPath string
	repoPath   string
	quiet      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Agent memory bookkeeping and pattern analysis",
	Long: `synapse records AI coding-agent sessions to local memory files, mines
them for recurring activity patterns, and recommends specialized skills.

Memory lives next to the repository as .synapse_status.json,
.synapse_log.md, and .synapse_handoff.md.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (JSON)")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "repository path")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console output")

	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "report path prefix (writes <prefix>.json/.txt)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "report format: json, text, or both")

	eventsListCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type")
	eventsListCmd.Flags().IntVar(&eventsDays, "days", 0, "only events from the last N days")
	eventsListCmd.Flags().IntVar(&eventsLimit, "limit", 0, "maximum number of events")

	eventsCmd.AddCommand(eventsAddCmd)
	eventsCmd.AddCommand(eventsListCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(mcpCmd)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.DefaultConfig()
	if quiet {
		logCfg.Level = "error"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, err
	}

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (*memory.Store, error) {
	return memory.Open(repoPath, memory.Options{
		MaxEvents:   cfg.Memory.MaxEvents,
		MaxLogBytes: cfg.Memory.MaxLogMB << 20,
		Logger:      logger,
	})
}

var (
	analyzeOutput string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Detect patterns and recommend skills from recorded sessions",
	Long: `Read the session work log, run the pattern detectors, and rank skill
recommendations.

Examples:
  # Analyze the current repository
  synapse analyze

  # Save the report next to the repository
  synapse analyze --output synapse_report --format both`,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rep, err := analyzer.New(cfg, logger).Run(cmd.Context(), analyzer.Options{
		RepoPath:     repoPath,
		OutputPrefix: analyzeOutput,
		Format:       analyzeFormat,
	})
	if err != nil {
		if errors.Is(err, analyzer.ErrNoSessions) {
			return fmt.Errorf("no sessions recorded yet; run `synapse trace` first")
		}
		return err
	}

	if !quiet {
		printSummary(rep)
	}
	return nil
}

func printSummary(rep *report.Report) {
	fmt.Printf("Sessions analyzed: %d\n", rep.Summary.TotalSessionsAnalyzed)
	fmt.Printf("Patterns detected: %d\n", rep.Summary.PatternsDetected)
	fmt.Printf("Skills recommended: %d\n", rep.Summary.SkillsRecommended)
	if rep.Summary.MostFrequentPattern != "" {
		fmt.Printf("Most frequent pattern: %s\n", rep.Summary.MostFrequentPattern)
	}
	if len(rep.Recommendations) > 0 {
		fmt.Println("\nTop recommendations:")
		for i, rec := range rep.Recommendations[:min(3, len(rep.Recommendations))] {
			fmt.Printf("  %d. %s (priority %.2f)\n", i+1, rec.SkillName, rec.PriorityScore)
		}
	}
	for _, insight := range rep.ActionableInsights {
		fmt.Printf("- %s\n", insight)
	}
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Snapshot the current session into the agent memory files",
	Long: `Capture the repository's working-tree state and recent history into the
work log, status snapshot, and handoff notes.

Examples:
  # Trace the current repository
  synapse trace

  # Trace another repository
  synapse trace --repo ../service`,
	RunE: runTrace,
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	tracer, err := trace.NewTracer(store, cfg, logger)
	if err != nil {
		return err
	}
	res, err := tracer.Run(cmd.Context())
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Println("Session traced:")
		for _, path := range []string{res.LogPath, res.StatusPath, res.HandoffPath} {
			fmt.Printf("  - %s\n", path)
		}
	}
	return nil
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Record and inspect custom events",
}

var eventsAddCmd = &cobra.Command{
	Use:   "add <type> <description>",
	Short: "Record a custom event",
	Long: `Record a custom event in the repository's agent memory.

Examples:
  synapse events add api_call "GET /users returned 500"
  synapse events add test_execution "unit suite passed"`,
	Args: cobra.ExactArgs(2),
	RunE: runEventsAdd,
}

func runEventsAdd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if err := store.AddEvent(cmd.Context(), args[0], args[1], nil); err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("Event recorded: %s\n", args[0])
	}
	return nil
}

var (
	eventsType  string
	eventsDays  int
	eventsLimit int
)

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events as JSON",
	RunE:  runEventsList,
}

func runEventsList(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	filter := memory.EventFilter{Type: eventsType, Limit: eventsLimit}
	if eventsDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -eventsDays)
	}
	events, err := store.Events(filter)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Expose the memory store and the analysis pipeline as MCP tools over
stdio, for use as an agent tool server.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	srvCfg := mcpserver.DefaultConfig()
	srvCfg.Version = version
	srvCfg.Logger = logger
	srv, err := mcpserver.NewServer(srvCfg, cfg)
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}

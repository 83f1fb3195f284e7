package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/synapse/internal/analyzer"
	"github.com/fyrsmithlabs/synapse/internal/memory"
)

type eventRecordInput struct {
	RepoPath    string         `json:"repo_path,omitempty" jsonschema:"Repository path (default: current directory)"`
	EventType   string         `json:"event_type" jsonschema:"required,Event type, e.g. api_call or test_execution"`
	Description string         `json:"description" jsonschema:"required,Human-readable event description"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"Additional event metadata"`
}

type eventRecordOutput struct {
	EventType string `json:"event_type" jsonschema:"Recorded event type"`
	Timestamp string `json:"timestamp" jsonschema:"Record time (RFC 3339)"`
}

type eventListInput struct {
	RepoPath  string `json:"repo_path,omitempty" jsonschema:"Repository path (default: current directory)"`
	EventType string `json:"event_type,omitempty" jsonschema:"Filter by event type"`
	SinceDays int    `json:"since_days,omitempty" jsonschema:"Only events from the last N days"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of events returned"`
}

type eventListOutput struct {
	Events []memory.Event `json:"events" jsonschema:"Matching events, oldest first"`
	Count  int            `json:"count" jsonschema:"Number of events returned"`
}

type patternAnalysisInput struct {
	RepoPath  string `json:"repo_path,omitempty" jsonschema:"Repository path (default: current directory)"`
	Days      int    `json:"days,omitempty" jsonschema:"Trailing window in days (default 7)"`
	Threshold int    `json:"threshold,omitempty" jsonschema:"Minimum event count per type (default 5)"`
}

type sessionAnalyzeInput struct {
	RepoPath     string `json:"repo_path,omitempty" jsonschema:"Repository path (default: current directory)"`
	OutputPrefix string `json:"output_prefix,omitempty" jsonschema:"Save the report as <prefix>.json/.txt when set"`
	Format       string `json:"format,omitempty" jsonschema:"Report format: json, text, or both"`
}

type sessionAnalyzeOutput struct {
	SessionsAnalyzed  int                 `json:"sessions_analyzed" jsonschema:"Sessions read from the work log"`
	PatternsDetected  int                 `json:"patterns_detected" jsonschema:"Patterns found"`
	SkillsRecommended int                 `json:"skills_recommended" jsonschema:"Recommendations produced"`
	TopRecommendation string              `json:"top_recommendation,omitempty" jsonschema:"Highest-ranked skill"`
	Recommendations   []recommendationRow `json:"recommendations" jsonschema:"Ranked recommendations"`
	Insights          []string            `json:"insights" jsonschema:"Actionable insights"`
}

type recommendationRow struct {
	SkillName     string  `json:"skill_name" jsonschema:"Skill name"`
	SkillType     string  `json:"skill_type" jsonschema:"Skill domain"`
	PriorityScore float64 `json:"priority_score" jsonschema:"Weighted priority score"`
	Reason        string  `json:"reason" jsonschema:"Why this skill is recommended"`
}

type sessionTraceInput struct {
	RepoPath string `json:"repo_path,omitempty" jsonschema:"Repository path (default: current directory)"`
}

type sessionTraceOutput struct {
	LogPath     string `json:"log_path" jsonschema:"Session work log file"`
	StatusPath  string `json:"status_path" jsonschema:"Machine-readable status file"`
	HandoffPath string `json:"handoff_path" jsonschema:"Handoff notes file"`
}

func (s *Server) registerEventTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "event_record",
		Description: "Record a custom event in the repository's agent memory",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args eventRecordInput) (*mcp.CallToolResult, eventRecordOutput, error) {
		store, err := s.storeFor(args.RepoPath)
		if err != nil {
			return nil, eventRecordOutput{}, err
		}
		if args.EventType == "" {
			return nil, eventRecordOutput{}, fmt.Errorf("event_type is required")
		}
		if err := store.AddEvent(ctx, args.EventType, args.Description, args.Metadata); err != nil {
			return nil, eventRecordOutput{}, fmt.Errorf("event record failed: %w", err)
		}
		out := eventRecordOutput{
			EventType: args.EventType,
			Timestamp: time.Now().Format(time.RFC3339),
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Event recorded: %s", args.EventType)},
			},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "event_list",
		Description: "List recorded events, optionally filtered by type, recency, and count",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args eventListInput) (*mcp.CallToolResult, eventListOutput, error) {
		store, err := s.storeFor(args.RepoPath)
		if err != nil {
			return nil, eventListOutput{}, err
		}
		filter := memory.EventFilter{Type: args.EventType, Limit: args.Limit}
		if args.SinceDays > 0 {
			filter.Since = time.Now().AddDate(0, 0, -args.SinceDays)
		}
		events, err := store.Events(filter)
		if err != nil {
			return nil, eventListOutput{}, fmt.Errorf("event list failed: %w", err)
		}
		out := eventListOutput{Events: events, Count: len(events)}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d events", len(events))},
			},
		}, out, nil
	})
}

func (s *Server) registerAnalysisTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pattern_analysis",
		Description: "Analyze recorded events for recurring activity over a trailing window",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args patternAnalysisInput) (*mcp.CallToolResult, *memory.Analysis, error) {
		store, err := s.storeFor(args.RepoPath)
		if err != nil {
			return nil, nil, err
		}
		analysis, err := store.PatternAnalysis(ctx, args.Days, args.Threshold)
		if err != nil {
			return nil, nil, fmt.Errorf("pattern analysis failed: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d patterns detected", analysis.PatternsDetected)},
			},
		}, analysis, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_analyze",
		Description: "Run the full pipeline: read sessions, detect patterns, recommend skills",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionAnalyzeInput) (*mcp.CallToolResult, sessionAnalyzeOutput, error) {
		rep, err := s.analyzer.Run(ctx, analyzer.Options{
			RepoPath:     args.RepoPath,
			OutputPrefix: args.OutputPrefix,
			Format:       args.Format,
		})
		if err != nil {
			return nil, sessionAnalyzeOutput{}, fmt.Errorf("session analyze failed: %w", err)
		}

		out := sessionAnalyzeOutput{
			SessionsAnalyzed:  rep.Summary.TotalSessionsAnalyzed,
			PatternsDetected:  rep.Summary.PatternsDetected,
			SkillsRecommended: rep.Summary.SkillsRecommended,
			TopRecommendation: rep.Summary.TopRecommendation,
			Insights:          rep.ActionableInsights,
		}
		for _, rec := range rep.Recommendations {
			out.Recommendations = append(out.Recommendations, recommendationRow{
				SkillName:     rec.SkillName,
				SkillType:     rec.SkillType,
				PriorityScore: rec.PriorityScore,
				Reason:        rec.Reason,
			})
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d patterns, %d recommendations",
					out.PatternsDetected, out.SkillsRecommended)},
			},
		}, out, nil
	})
}

func (s *Server) registerTraceTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_trace",
		Description: "Snapshot the current session into the agent memory files",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionTraceInput) (*mcp.CallToolResult, sessionTraceOutput, error) {
		tracer, err := s.traceFor(args.RepoPath)
		if err != nil {
			return nil, sessionTraceOutput{}, err
		}
		res, err := tracer.Run(ctx)
		if err != nil {
			s.logger.Warn("session trace failed", zap.Error(err))
			return nil, sessionTraceOutput{}, fmt.Errorf("session trace failed: %w", err)
		}
		out := sessionTraceOutput{
			LogPath:     res.LogPath,
			StatusPath:  res.StatusPath,
			HandoffPath: res.HandoffPath,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Session traced"},
			},
		}, out, nil
	})
}

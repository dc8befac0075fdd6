package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/service"
)

func (s *Server) registerPipelineTools() {
	s.mcp.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List the pipelines ballpark can run, with the tables they write"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListPipelines)

	s.mcp.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Run a pipeline and load its rows into the warehouse. Appends rows; runs of the same pipeline never overlap."),
		mcp.WithString("pipeline", mcp.Description("Pipeline name (use list_pipelines to see them)"), mcp.Required()),
		mcp.WithString("gameIds", mcp.Description("Comma-separated game pks; when set the schedule is not listed")),
		mcp.WithString("teamIds", mcp.Description("Comma-separated team ids (defaults to the configured teams)")),
		mcp.WithString("startDate", mcp.Description("First schedule date, YYYY-MM-DD")),
		mcp.WithString("endDate", mcp.Description("Last schedule date, YYYY-MM-DD")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(false)}),
	), s.handleRunPipeline)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent pipeline runs, newest first"),
		mcp.WithString("pipeline", mcp.Description("Only runs of this pipeline (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListRuns)

	s.mcp.AddTool(mcp.NewTool("list_skips",
		mcp.WithDescription("List the identifiers a run skipped because they had no data or kept failing"),
		mcp.WithString("runId", mcp.Description("Run ID from list_runs"), mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleListSkips)
}

func (s *Server) handleListPipelines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.pipelines.ListPipelines())
}

// runOutcome is what run_pipeline reports back.
type runOutcome struct {
	Run    *domain.RunLog  `json:"run"`
	Result *etl.SyncResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (s *Server) handleRunPipeline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("pipeline", "")
	if name == "" {
		return nil, fmt.Errorf("pipeline is required")
	}
	runReq, err := requestFromArgs(req)
	if err != nil {
		return nil, err
	}

	run, res, err := s.pipelines.Run(ctx, name, runReq)
	switch {
	case errors.Is(err, etl.ErrUnknownPipeline), errors.Is(err, service.ErrAlreadyRunning):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil && run == nil:
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	out := runOutcome{Run: run, Result: res}
	if err != nil {
		out.Error = err.Error()
	}
	result, mErr := jsonResult(out)
	if mErr != nil {
		return nil, mErr
	}
	result.IsError = err != nil
	return result, nil
}

func requestFromArgs(req mcp.CallToolRequest) (etl.Request, error) {
	var out etl.Request
	var err error
	if out.GameIDs, err = parseIdentifiers(req.GetString("gameIds", "")); err != nil {
		return out, err
	}
	if out.TeamIDs, err = parseInts(req.GetString("teamIds", "")); err != nil {
		return out, err
	}
	if out.StartDate, err = parseDate("startDate", req.GetString("startDate", "")); err != nil {
		return out, err
	}
	if out.EndDate, err = parseDate("endDate", req.GetString("endDate", "")); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.pipelines.ListRuns(req.GetString("pipeline", ""), req.GetInt("limit", 20))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.RunLog{}
	}
	return jsonResult(runs)
}

func (s *Server) handleListSkips(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := req.GetString("runId", "")
	if runID == "" {
		return nil, fmt.Errorf("runId is required")
	}
	skips, err := s.pipelines.ListSkips(runID)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	if skips == nil {
		skips = []domain.SkipRecord{}
	}
	return jsonResult(skips)
}

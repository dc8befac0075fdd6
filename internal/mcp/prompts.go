package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("triage_run",
		mcp.WithPromptDescription("Explain why a pipeline run skipped or failed identifiers and suggest a rerun"),
		mcp.WithArgument("runId",
			mcp.ArgumentDescription("Run ID from list_runs"),
			mcp.RequiredArgument(),
		),
	), s.handleTriageRunPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("backfill_season",
		mcp.WithPromptDescription("Load scores, venues and elevations for a team over a date range"),
		mcp.WithArgument("teamId",
			mcp.ArgumentDescription("MLB team id, e.g. 147 for the Yankees"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("startDate",
			mcp.ArgumentDescription("First date, YYYY-MM-DD"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("endDate",
			mcp.ArgumentDescription("Last date, YYYY-MM-DD"),
			mcp.RequiredArgument(),
		),
	), s.handleBackfillPrompt)
}

func (s *Server) handleTriageRunPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	runID := req.Params.Arguments["runId"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Triage run %s", runID),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Triage pipeline run %s:

1. Use list_runs to find the run and read its counts and error.
2. Use list_skips with runId %s. Identifiers with reason "empty" had no data upstream (postponed or future games) and need no action. Identifiers with reason "failed" exhausted their retries; group them by error text.
3. If the failures look transient (timeouts, 5xx, 429), rerun only those games with run_pipeline and the gameIds argument.
4. Summarise what was loaded, what was skipped and what you reran.`, runID, runID),
				},
			},
		},
	}, nil
}

func (s *Server) handleBackfillPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Backfill team %s from %s to %s", args["teamId"], args["startDate"], args["endDate"]),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Backfill team %s from %s to %s:

1. Run the "games" pipeline with teamIds %s, startDate %s and endDate %s.
2. Run the "elevation" pipeline so the new venues get elevations.
3. Check both runs with list_runs and report any skipped identifiers.`,
						args["teamId"], args["startDate"], args["endDate"],
						args["teamId"], args["startDate"], args["endDate"]),
				},
			},
		},
	}, nil
}

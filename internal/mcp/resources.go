package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	pipelinesURI = "ballpark://pipelines"
	runsURI      = "ballpark://runs"
	runSkipsURI  = "ballpark://runs/{runId}/skips"
)

func (s *Server) registerResources() {
	// ── ballpark://pipelines ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		pipelinesURI,
		"Pipelines",
		mcp.WithResourceDescription("Every runnable pipeline with its tables and upstream sources"),
		mcp.WithMIMEType("application/json"),
	), s.handlePipelinesResource)

	// ── ballpark://runs ────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		runsURI,
		"Recent Runs",
		mcp.WithResourceDescription("The 20 most recent pipeline runs"),
		mcp.WithMIMEType("application/json"),
	), s.handleRunsResource)

	// ── ballpark://runs/{runId}/skips ──────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			runSkipsURI,
			"Skipped Identifiers of a Run",
		),
		s.handleRunSkipsResource,
	)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handlePipelinesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(pipelinesURI, s.pipelines.ListPipelines())
}

func (s *Server) handleRunsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.pipelines.ListRuns("", 20)
	if err != nil {
		return nil, err
	}
	return jsonContents(runsURI, runs)
}

func (s *Server) handleRunSkipsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	runID, ok := runIDFromURI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid URI: %s", uri)
	}
	skips, err := s.pipelines.ListSkips(runID)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, skips)
}

// runIDFromURI extracts runId from ballpark://runs/{runId}/skips.
func runIDFromURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "ballpark://runs/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/skips")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ballpark/internal/service"
)

// Server is the MCP server for ballpark.
// It exposes tools, resources, and prompts so AI agents can run pipelines
// and inspect their history.
type Server struct {
	mcp       *server.MCPServer
	pipelines *service.PipelineService
	logger    *slog.Logger
}

// Deps holds all dependencies passed from the CLI layer to the MCP server.
type Deps struct {
	Pipelines *service.PipelineService
	Notifier  *Notifier // optional; attached to the new server
	Logger    *slog.Logger
	Version   string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		pipelines: deps.Pipelines,
		logger:    logger,
	}

	s.mcp = server.NewMCPServer(
		"ballpark-mcp",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
		server.WithLogging(),
	)

	s.registerPipelineTools()
	s.registerResources()
	s.registerPrompts()

	if deps.Notifier != nil {
		deps.Notifier.attach(s.mcp)
	}
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp: starting stdio server")
	return server.ServeStdio(s.mcp)
}

// ── Notifier ───────────────────────────────────────────────

// Notifier forwards pipeline run notifications to connected MCP clients
// as log messages. Until a server is attached it only logs.
type Notifier struct {
	mu     sync.RWMutex
	srv    *server.MCPServer
	Logger *slog.Logger
}

func (n *Notifier) attach(srv *server.MCPServer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.srv = srv
}

func (n *Notifier) Emit(ctx context.Context, event string, data any) {
	if n.Logger != nil {
		n.Logger.DebugContext(ctx, event, "data", data)
	}
	n.mu.RLock()
	srv := n.srv
	n.mu.RUnlock()
	if srv == nil {
		return
	}
	srv.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  "info",
		"logger": "ballpark",
		"data":   map[string]any{"event": event, "payload": data},
	})
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func boolPtr(v bool) *bool { return &v }

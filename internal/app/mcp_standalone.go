package app

import (
	"context"
	"time"

	mcpserver "ballpark/internal/mcp"
)

// ServeMCP runs ballpark as an MCP server on stdin/stdout until the client
// disconnects. Pipeline runs started from tools finish before it returns.
func ServeMCP(ctx context.Context, opts Options, version string) error {
	notifier := &mcpserver.Notifier{}
	opts.Emitter = notifier
	a, err := New(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	notifier.Logger = a.Logger

	srv := mcpserver.New(mcpserver.Deps{
		Pipelines: a.Pipelines,
		Notifier:  notifier,
		Logger:    a.Logger,
		Version:   version,
	})
	serveErr := srv.ServeStdio()

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Pipelines.WaitRunning(waitCtx)
	return serveErr
}

package app

import (
	"context"
	"fmt"
	"time"
)

// Serve runs the configured cron schedules until ctx is cancelled,
// rescheduling whenever the config file changes. On shutdown it waits up
// to grace for in-flight runs.
func (a *App) Serve(ctx context.Context, grace time.Duration) error {
	n := a.Pipelines.StartSchedules(ctx, Schedules(a.Config))
	if n == 0 {
		a.Logger.Warn("serve: no schedules configured; waiting for config changes")
	}
	if err := a.Pipelines.WatchConfig(ctx, a.ConfigPath, a.ReloadSchedules); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	<-ctx.Done()
	a.Logger.Info("serve: shutting down", "running", a.Pipelines.Running())
	a.Pipelines.Stop()

	waitCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	a.Pipelines.WaitRunning(waitCtx)
	return nil
}

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ballpark/internal/service"
)

// ─────────────────────────────────────────────────────────────
// runningGuard tests
// ─────────────────────────────────────────────────────────────

func TestRunningGuard_TryLock(t *testing.T) {
	var g service.ExportedRunningGuard

	require.True(t, g.TryLock("scores"), "first TryLock")
	require.False(t, g.TryLock("scores"), "second TryLock for the same pipeline")
	require.True(t, g.TryLock("elevation"), "TryLock for a different pipeline")
	require.ElementsMatch(t, []string{"scores", "elevation"}, g.Running())

	g.Unlock("scores")
	g.Unlock("elevation")
	require.Empty(t, g.Running())

	require.True(t, g.TryLock("scores"), "TryLock after unlock")
	g.Unlock("scores")
}

func TestRunningGuard_WaitAll(t *testing.T) {
	var g service.ExportedRunningGuard
	require.True(t, g.TryLock("scores"))

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	g.Unlock("scores")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll did not return after unlock")
	}
}

func TestRunningGuard_WaitAllHonoursContext(t *testing.T) {
	var g service.ExportedRunningGuard
	require.True(t, g.TryLock("scores"))
	defer g.Unlock("scores")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	g.WaitAll(ctx)
	require.Less(t, time.Since(start), time.Second)
}

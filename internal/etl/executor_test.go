package etl_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ballpark/internal/etl"
)

func TestSerialExecutor_RunsInline(t *testing.T) {
	ran := false
	h := etl.SerialExecutor{}.Submit(context.Background(), func(ctx context.Context) error {
		ran = true
		return errors.New("done")
	})
	require.True(t, ran)
	require.EqualError(t, h.Wait(), "done")
}

func TestSerialExecutor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := etl.SerialExecutor{}.Submit(ctx, func(ctx context.Context) error {
		t.Fatal("task must not run")
		return nil
	})
	require.ErrorIs(t, h.Wait(), context.Canceled)
}

func TestPoolExecutor_BoundsConcurrency(t *testing.T) {
	pool := etl.NewPoolExecutor(3)
	var running, peak atomic.Int32

	handles := make([]etl.Handle, 0, 12)
	for i := 0; i < 12; i++ {
		handles = append(handles, pool.Submit(context.Background(), func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
	require.LessOrEqual(t, peak.Load(), int32(3))
	require.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestNewExecutor(t *testing.T) {
	require.IsType(t, etl.SerialExecutor{}, etl.NewExecutor(0))
	require.IsType(t, etl.SerialExecutor{}, etl.NewExecutor(1))
	require.IsType(t, &etl.PoolExecutor{}, etl.NewExecutor(4))
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTriggerRunsImmediatelyAndPeriodically(t *testing.T) {
	var runs atomic.Int32
	trigger := NewTrigger("test", 20*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	}, zap.NewNop())

	require.NoError(t, trigger.Start(context.Background()))
	defer trigger.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTriggerKick(t *testing.T) {
	var runs atomic.Int32
	trigger := NewTrigger("test", time.Hour, func(ctx context.Context) {
		runs.Add(1)
	}, zap.NewNop())

	require.NoError(t, trigger.Start(context.Background()))
	defer trigger.Stop(context.Background())

	// Wait for the immediate startup run
	assert.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, time.Millisecond)

	trigger.Kick()
	assert.Eventually(t, func() bool {
		return runs.Load() == 2
	}, time.Second, time.Millisecond)
}

func TestTriggerKickNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	trigger := NewTrigger("test", time.Hour, func(ctx context.Context) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}, zap.NewNop())

	require.NoError(t, trigger.Start(context.Background()))

	// The job is blocked; repeated kicks must coalesce, not block
	for i := 0; i < 10; i++ {
		trigger.Kick()
	}
	close(release)

	require.NoError(t, trigger.Stop(context.Background()))
}

func TestTriggerStopIdempotent(t *testing.T) {
	trigger := NewTrigger("test", time.Hour, func(ctx context.Context) {}, zap.NewNop())
	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
}

func TestTriggerStartIdempotent(t *testing.T) {
	var runs atomic.Int32
	trigger := NewTrigger("test", time.Hour, func(ctx context.Context) {
		runs.Add(1)
	}, zap.NewNop())

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	defer trigger.Stop(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	// A second Start must not spawn a second loop
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

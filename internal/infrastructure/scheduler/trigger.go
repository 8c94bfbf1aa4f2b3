// Package scheduler drives the periodic background work of the server.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of background work. The trigger serializes calls, a
// running job is never overlapped by the next tick.
type Job func(ctx context.Context)

// Trigger runs a job on a fixed interval and on demand through Kick.
type Trigger struct {
	name     string
	interval time.Duration
	job      Job
	logger   *zap.Logger

	kick chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTrigger creates a trigger that runs job every interval.
func NewTrigger(name string, interval time.Duration, job Job, logger *zap.Logger) *Trigger {
	return &Trigger{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Start starts the trigger loop. The job runs once immediately.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Trigger started",
		zap.String("name", t.name),
		zap.Duration("interval", t.interval),
	)
	return nil
}

// Stop stops the trigger and waits for a running job to finish, bounded
// by the given context.
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Trigger stopped", zap.String("name", t.name))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kick requests an immediate run. It never blocks; if a run is already
// pending the request is coalesced into it.
func (t *Trigger) Kick() {
	select {
	case t.kick <- struct{}{}:
	default:
	}
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Run immediately on start
	t.runJob(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runJob(ctx)
		case <-t.kick:
			t.runJob(ctx)
		}
	}
}

func (t *Trigger) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	t.job(ctx)
	t.logger.Debug("Trigger job finished",
		zap.String("name", t.name),
		zap.Duration("duration", time.Since(start)),
	)
}

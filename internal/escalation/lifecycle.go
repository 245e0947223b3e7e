package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Start runs Tick every tick interval in the background.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return ErrEngineStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(ctx, e.done)

	e.log.Info("escalation engine started",
		slog.Duration("tick_interval", e.tickInterval),
		slog.Int("tiers", e.tiers.Max()),
		slog.Int("max_concurrency", e.maxConcurrency),
	)
	return nil
}

// Stop ends the loop and waits for a running tick to finish.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.cancel == nil {
		e.mu.Unlock()
		return ErrEngineNotStarted
	}
	cancel, done := e.cancel, e.done
	e.cancel = nil
	e.mu.Unlock()

	cancel()
	<-done

	e.log.Info("escalation engine stopped")
	return nil
}

// Run starts the engine and returns a function suitable for errgroup.
func (e *Engine) Run(ctx context.Context) func() error {
	return func() error {
		if err := e.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return e.Stop()
	}
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := e.Tick(ctx)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
			case errors.Is(err, ErrTickInProgress), errors.Is(err, ErrLeaseHeld):
				e.log.LogAttrs(ctx, slog.LevelDebug, "escalation tick skipped", logger.Error(err))
			default:
				e.log.LogAttrs(ctx, slog.LevelError, "escalation tick failed", logger.Error(err))
			}
		}
	}
}

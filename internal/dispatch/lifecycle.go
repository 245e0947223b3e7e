package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Start runs the retry queue loop in the background.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return ErrDispatcherStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.loop(ctx, d.done)

	d.log.Info("dispatcher started",
		slog.Duration("queue_interval", d.queueInterval),
		slog.Duration("batch_window", d.batchWindow),
	)
	return nil
}

// Stop ends the queue loop and flushes every open digest window. Once
// stopped, batchable notifications are sent immediately.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if d.cancel == nil {
		d.mu.Unlock()
		return ErrDispatcherNotStarted
	}
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	<-done

	flushed := d.batcher.Close(context.Background())
	d.metrics.PendingBatches(0)
	d.log.Info("dispatcher stopped", logger.Count(flushed))
	return nil
}

// Run starts the dispatcher and returns a function suitable for errgroup.
func (d *Dispatcher) Run(ctx context.Context) func() error {
	return func() error {
		if err := d.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return d.Stop()
	}
}

// Flush sends every open digest window now and returns how many were sent.
func (d *Dispatcher) Flush(ctx context.Context) int {
	n := d.batcher.Flush(ctx)
	d.metrics.PendingBatches(d.batcher.Len())
	return n
}

// PendingBatches returns the number of open digest windows.
func (d *Dispatcher) PendingBatches() int {
	return d.batcher.Len()
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.queueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			sum, err := d.ProcessQueue(ctx)
			if err != nil {
				d.log.LogAttrs(ctx, slog.LevelError, "queue pass failed", logger.Error(err))
				continue
			}
			if sum.Claimed > 0 {
				d.log.LogAttrs(ctx, slog.LevelInfo, "queue pass finished",
					slog.Int("claimed", sum.Claimed),
					slog.Int("completed", sum.Completed),
					slog.Int("retried", sum.Retried),
					slog.Int("failed", sum.Failed),
					logger.Duration(time.Since(start)),
				)
			}
		}
	}
}

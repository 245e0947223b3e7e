package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/metrics"
)

const (
	DefaultBatchWindow    = 60 * time.Second
	DefaultQueueInterval  = 30 * time.Second
	DefaultMaxConcurrency = 8
	DefaultQueueBatchSize = 100
	// DefaultQueueLockTimeout is how long a claimed entry stays with its
	// worker before another ProcessQueue may take it over.
	DefaultQueueLockTimeout = 5 * time.Minute
)

// Auditor records delivery decisions. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

type nopAuditor struct{}

func (nopAuditor) Log(context.Context, string, ...audit.EventOption) error { return nil }
func (nopAuditor) LogError(context.Context, string, error, ...audit.EventOption) error {
	return nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithClock replaces time.Now. Batch windows still run on wall-clock timers.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func WithEmail(s EmailSender) Option {
	return func(d *Dispatcher) { d.email = s }
}

func WithSMS(s SMSSender) Option {
	return func(d *Dispatcher) { d.sms = s }
}

func WithPush(s PushSender) Option {
	return func(d *Dispatcher) { d.push = s }
}

func WithInApp(p InAppPublisher) Option {
	return func(d *Dispatcher) { d.inApp = p }
}

func WithAuditor(a Auditor) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.audit = a
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithBatchWindow sets how long a digest window stays open.
func WithBatchWindow(w time.Duration) Option {
	return func(d *Dispatcher) {
		if w > 0 {
			d.batchWindow = w
		}
	}
}

// WithQueueInterval sets how often the retry queue is polled.
func WithQueueInterval(i time.Duration) Option {
	return func(d *Dispatcher) {
		if i > 0 {
			d.queueInterval = i
		}
	}
}

// WithMaxAttempts sets maxAttempts on newly queued entries.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithMaxConcurrency bounds parallel sends in SendMany and ProcessQueue.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// WithQueueBatchSize bounds how many entries one ProcessQueue call claims.
func WithQueueBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueBatchSize = n
		}
	}
}

// WithQueueLockTimeout sets how long a claimed queue entry is held. It should
// exceed the longest time a single delivery can take.
func WithQueueLockTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.queueLockTimeout = t
		}
	}
}

package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/metrics"
)

const (
	DefaultTickInterval   = 60 * time.Second
	DefaultMaxConcurrency = 8
	DefaultBatchSize      = 500
)

// Auditor records alert lifecycle events. *audit.Logger satisfies it.
type Auditor interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

type nopAuditor struct{}

func (nopAuditor) Log(context.Context, string, ...audit.EventOption) error { return nil }
func (nopAuditor) LogError(context.Context, string, error, ...audit.EventOption) error {
	return nil
}

// Lease guards a tick across replicas. *redis.Lease from pkg/redis
// satisfies it.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTiers replaces domain.DefaultTiers. New validates the ladder.
func WithTiers(t domain.Tiers) Option {
	return func(e *Engine) { e.tiers = t }
}

// WithMaxConcurrency bounds how many alerts one tick escalates in parallel.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithBatchSize bounds how many due alerts one tick picks up.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithLease makes every tick hold l for ttl so replicas never tick together.
func WithLease(l Lease, ttl time.Duration) Option {
	return func(e *Engine) {
		e.lease = l
		if ttl > 0 {
			e.leaseTTL = ttl
		}
	}
}

func WithPublisher(p eventbus.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

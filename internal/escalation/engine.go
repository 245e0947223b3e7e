package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/metrics"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Notifier sends notifications. *dispatch.Dispatcher satisfies it.
type Notifier interface {
	SendMany(ctx context.Context, ns []domain.Notification) []async.Result[domain.NotificationResult]
}

// Engine escalates overdue alerts and drives the alert lifecycle.
type Engine struct {
	store     store.Store
	notifier  Notifier
	publisher eventbus.Publisher
	audit     Auditor
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time

	tiers          domain.Tiers
	tickInterval   time.Duration
	maxConcurrency int
	batchSize      int
	lease          Lease
	leaseTTL       time.Duration

	ticking atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Engine. It fails with domain.ErrTierConfig when the tier
// ladder is invalid.
func New(st store.Store, n Notifier, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:          st,
		notifier:       n,
		publisher:      eventbus.Nop,
		audit:          nopAuditor{},
		log:            slog.Default(),
		now:            time.Now,
		tiers:          domain.DefaultTiers(),
		tickInterval:   DefaultTickInterval,
		maxConcurrency: DefaultMaxConcurrency,
		batchSize:      DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.tiers.Validate(); err != nil {
		return nil, err
	}
	if e.leaseTTL == 0 {
		e.leaseTTL = e.tickInterval
	}
	e.log = e.log.With(logger.Component("escalation"))
	return e, nil
}

// Tiers returns the configured ladder.
func (e *Engine) Tiers() domain.Tiers {
	return e.tiers
}

// Tick escalates every alert that is due. Alerts are processed concurrently
// and each gets its own result; one failing alert never affects another.
// A tick that overlaps a running one returns ErrTickInProgress.
func (e *Engine) Tick(ctx context.Context) ([]domain.EscalationResult, error) {
	if !e.ticking.CompareAndSwap(false, true) {
		e.metrics.TickSkipped()
		return nil, ErrTickInProgress
	}
	defer e.ticking.Store(false)

	if e.lease != nil {
		release, ok, err := e.lease.Acquire(ctx, e.leaseTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire tick lease: %w", err)
		}
		if !ok {
			e.metrics.TickSkipped()
			return nil, ErrLeaseHeld
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.log.LogAttrs(ctx, slog.LevelWarn, "failed to release tick lease", logger.Error(err))
			}
		}()
	}

	start := time.Now()
	ctx = logger.WithTickID(ctx, uuid.NewString())
	defer func() { e.metrics.TickDuration(time.Since(start)) }()

	alerts, err := e.store.GetAlertsDueForEscalation(ctx, e.now(), e.tiers.Max(), e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("load alerts due for escalation: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	settled := async.Map(ctx, alerts, e.maxConcurrency,
		func(ctx context.Context, a domain.Alert) (domain.EscalationResult, error) {
			return e.escalate(ctx, a, domain.ReasonTimeout, ""), nil
		})

	results := make([]domain.EscalationResult, len(alerts))
	var escalated, skipped, failed int
	for i, r := range settled {
		res := r.Value
		if r.Err != nil {
			res = domain.EscalationResult{
				AlertID:  alerts[i].ID,
				FromTier: alerts[i].EscalationLevel,
				ToTier:   alerts[i].EscalationLevel + 1,
				Err:      r.Err,
			}
		}
		switch {
		case res.Success:
			escalated++
		case res.Skipped:
			skipped++
		default:
			failed++
		}
		results[i] = res
	}

	e.log.LogAttrs(ctx, slog.LevelInfo, "escalation tick finished",
		logger.Count(len(alerts)),
		slog.Int("escalated", escalated),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		logger.Duration(time.Since(start)),
	)
	return results, nil
}

// Escalate advances alert by one tier because its timer ran out. It never
// returns an error; failures are reported in the result.
func (e *Engine) Escalate(ctx context.Context, alert domain.Alert) domain.EscalationResult {
	return e.escalate(ctx, alert, domain.ReasonTimeout, "")
}

// TriggerManualEscalation advances an alert by one tier on request. It
// returns domain.ErrInvalidState when the alert is not active or already at
// the final tier.
func (e *Engine) TriggerManualEscalation(ctx context.Context, alertID, actorID string) (domain.EscalationResult, error) {
	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return domain.EscalationResult{AlertID: alertID}, err
	}
	if err := alert.CanEscalate(e.tiers); err != nil {
		return domain.EscalationResult{AlertID: alertID, FromTier: alert.EscalationLevel}, err
	}

	res := e.escalate(ctx, alert, domain.ReasonManual, actorID)
	if res.Skipped {
		return res, fmt.Errorf("%w: alert %s changed while escalating", domain.ErrInvalidState, alertID)
	}
	return res, res.Err
}

func (e *Engine) escalate(ctx context.Context, alert domain.Alert, reason domain.EscalationReason, actorID string) domain.EscalationResult {
	from := alert.EscalationLevel
	to := from + 1
	res := domain.EscalationResult{AlertID: alert.ID, FromTier: from, ToTier: to}

	attrs := []slog.Attr{
		logger.AlertID(alert.ID),
		logger.HospitalID(alert.HospitalID),
		logger.Tier(from, to),
		slog.String("reason", string(reason)),
	}

	fromTier, err := e.tiers.At(from)
	var toTier domain.Tier
	if err == nil {
		toTier, err = e.tiers.At(to)
	}
	if err != nil {
		res.Err = err
		e.metrics.Escalation(string(reason), "error")
		e.log.LogAttrs(ctx, slog.LevelError, "escalation tier misconfigured", append(attrs, logger.Error(err))...)
		return res
	}

	now := e.now()
	next, err := e.tiers.NextEscalationAt(to, now)
	if err != nil {
		res.Err = err
		return res
	}

	var (
		won           bool
		recipients    []domain.User
		notifications []domain.Notification
	)
	err = e.store.InTx(ctx, func(tx store.Tx) error {
		ok, err := tx.UpdateAlertTierConditional(ctx, alert.ID, from, domain.EscalationUpdate{
			Level:            to,
			NextEscalationAt: next,
			UpdatedAt:        now,
		})
		if err != nil || !ok {
			return err
		}
		won = true

		if err := tx.InsertEscalationRecord(ctx, domain.EscalationRecord{
			ID:          uuid.NewString(),
			AlertID:     alert.ID,
			FromTier:    from,
			ToTier:      to,
			FromRole:    fromTier.Role,
			ToRole:      toTier.Role,
			Reason:      reason,
			EscalatedAt: now,
		}); err != nil {
			return err
		}

		recipients, err = tx.GetUsersByRole(ctx, store.RecipientQuery{
			HospitalID: alert.HospitalID,
			Roles:      []domain.Role{toTier.Role},
			OnDutyOnly: to < e.tiers.Max(),
		})
		if err != nil {
			return err
		}

		alert.EscalationLevel = to
		alert.NextEscalationAt = next
		alert.UpdatedAt = now
		notifications = e.notificationsFor(alert, recipients, domain.TypeAlertEscalated, domain.PriorityCritical, now,
			map[string]any{dispatch.DataRole: string(toTier.Role), dispatch.DataTier: to})
		if len(notifications) == 0 {
			return nil
		}
		return tx.InsertDeliveryLogs(ctx, placeholders(notifications, now)...)
	})
	if err != nil {
		res.Err = err
		e.metrics.Escalation(string(reason), "error")
		e.log.LogAttrs(ctx, slog.LevelError, "escalation failed", append(attrs, logger.Error(err))...)
		return res
	}
	if !won {
		res.Skipped = true
		e.metrics.Escalation(string(reason), "skipped")
		e.log.LogAttrs(ctx, slog.LevelDebug, "escalation skipped, alert changed concurrently", attrs...)
		return res
	}

	// The tier change is committed. A shutdown that cancels the tick must not
	// drop the page that goes with it.
	ctx = context.WithoutCancel(ctx)

	res.Success = true
	res.Recipients = len(recipients)
	e.metrics.Escalation(string(reason), "success")

	attrs = append(attrs, logger.Role(string(toTier.Role)), logger.Count(len(recipients)))
	e.log.LogAttrs(ctx, slog.LevelInfo, "alert escalated", attrs...)
	if len(recipients) == 0 {
		e.log.LogAttrs(ctx, slog.LevelWarn, "no staff available for escalation tier", attrs...)
	}

	e.publish(ctx, eventbus.NewEvent(eventbus.AlertEscalated, alert.HospitalID, alert.ID, map[string]any{
		"fromTier":         from,
		"toTier":           to,
		"fromRole":         string(fromTier.Role),
		"toRole":           string(toTier.Role),
		"reason":           string(reason),
		"roomNumber":       alert.RoomNumber,
		"alertType":        alert.AlertType,
		"urgencyLevel":     alert.UrgencyLevel,
		"recipients":       len(recipients),
		"nextEscalationAt": next,
	}, now))

	opts := []audit.EventOption{
		audit.WithResource("alert", alert.ID),
		audit.WithHospital(alert.HospitalID),
		audit.WithMetadata("from_tier", from),
		audit.WithMetadata("to_tier", to),
		audit.WithMetadata("to_role", string(toTier.Role)),
		audit.WithMetadata("reason", string(reason)),
		audit.WithMetadata("recipients", len(recipients)),
	}
	if actorID != "" {
		opts = append(opts, audit.WithActor(actorID))
	}
	e.auditLog(ctx, audit.ActionAlertEscalated, nil, opts...)

	e.notify(ctx, alert.ID, notifications)
	return res
}

func (e *Engine) publish(ctx context.Context, ev eventbus.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.LogAttrs(ctx, slog.LevelWarn, "failed to publish alert event",
			logger.AlertID(ev.AlertID),
			slog.String("event", string(ev.Type)),
			logger.Error(err),
		)
	}
}

func (e *Engine) auditLog(ctx context.Context, action string, cause error, opts ...audit.EventOption) {
	var err error
	if cause != nil {
		err = e.audit.LogError(ctx, action, cause, opts...)
	} else {
		err = e.audit.Log(ctx, action, opts...)
	}
	if err != nil {
		e.log.LogAttrs(ctx, slog.LevelWarn, "failed to write audit event",
			slog.String("action", action),
			logger.Error(err),
		)
	}
}

// notify hands notifications to the notifier. Delivery problems are logged;
// they never undo the transition that caused them.
func (e *Engine) notify(ctx context.Context, alertID string, ns []domain.Notification) {
	if len(ns) == 0 || e.notifier == nil {
		return
	}

	var errs []error
	undelivered := 0
	for i, r := range e.notifier.SendMany(ctx, ns) {
		switch {
		case r.Err != nil:
			errs = append(errs, fmt.Errorf("notify %s: %w", ns[i].Recipient.UserID, r.Err))
		case !r.Value.Success && r.Value.QueueEntryID == "" && !r.Value.Deferred:
			undelivered++
		}
	}
	if len(errs) > 0 || undelivered > 0 {
		e.log.LogAttrs(ctx, slog.LevelWarn, "some recipients were not notified",
			logger.AlertID(alertID),
			logger.Count(len(ns)),
			slog.Int("undelivered", undelivered),
			logger.Error(errors.Join(errs...)),
		)
	}
}

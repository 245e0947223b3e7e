package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/metrics"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/email/templates"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Dispatcher decides how each notification reaches its recipient and
// records every attempt. It is safe for concurrent use.
type Dispatcher struct {
	store   store.Store
	email   EmailSender
	sms     SMSSender
	push    PushSender
	inApp   InAppPublisher
	audit   Auditor
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time

	batchWindow      time.Duration
	queueInterval    time.Duration
	maxAttempts      int
	maxConcurrency   int
	queueBatchSize   int
	queueLockTimeout time.Duration

	batcher    *Batcher
	processing atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Dispatcher over st. Channels without an adapter fail with
// domain.ErrChannelNotConfigured and fall back like any other failure.
func New(st store.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:            st,
		audit:            nopAuditor{},
		log:              slog.Default(),
		now:              time.Now,
		batchWindow:      DefaultBatchWindow,
		queueInterval:    DefaultQueueInterval,
		maxAttempts:      domain.DefaultMaxAttempts,
		maxConcurrency:   DefaultMaxConcurrency,
		queueBatchSize:   DefaultQueueBatchSize,
		queueLockTimeout: DefaultQueueLockTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(logger.Component("dispatch"))
	d.batcher = NewBatcher(d.batchWindow, d.flushBatch)
	return d
}

// Send delivers n. Only a malformed or expired notification returns an
// error; channel failures are reported in the result.
func (d *Dispatcher) Send(ctx context.Context, n domain.Notification) (domain.NotificationResult, error) {
	if n.Type == domain.TypeDigest {
		return domain.NotificationResult{NotificationID: n.ID},
			fmt.Errorf("%w: digests are produced by batching", domain.ErrInvalidNotification)
	}
	return d.deliver(ctx, n, false)
}

// SendMany sends every notification with bounded concurrency and returns
// one result per input, in order.
func (d *Dispatcher) SendMany(ctx context.Context, ns []domain.Notification) []async.Result[domain.NotificationResult] {
	return async.Map(ctx, ns, d.maxConcurrency, d.Send)
}

// SendToUsers sends a copy of tmpl to each user. Every copy gets its own id.
func (d *Dispatcher) SendToUsers(ctx context.Context, userIDs []string, tmpl domain.Notification) []async.Result[domain.NotificationResult] {
	ns := make([]domain.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		n := tmpl
		n.ID = uuid.NewString()
		n.Recipient = domain.Recipient{UserID: id}
		n.Channels = slices.Clone(tmpl.Channels)
		ns = append(ns, n)
	}
	return d.SendMany(ctx, ns)
}

// deliver runs the full pipeline. fromQueue is set when replaying a queue
// entry: scheduling, batching and re-enqueueing are skipped.
func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification, fromQueue bool) (domain.NotificationResult, error) {
	now := d.now()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	res := domain.NotificationResult{NotificationID: n.ID}

	if err := n.Validate(now); err != nil {
		return res, err
	}

	if !fromQueue && n.ScheduledFor != nil && n.ScheduledFor.After(now) {
		entry, err := d.enqueue(ctx, n, "", *n.ScheduledFor, "")
		if err != nil {
			return res, err
		}
		res.QueueEntryID = entry.ID
		res.Success = true
		d.settle(ctx, n.ID, domain.DeliveryQueued)
		return res, nil
	}

	d.enrich(ctx, &n)

	channels, deferred := d.resolveChannels(ctx, n, now)
	if deferred {
		res.Deferred = true
		d.log.LogAttrs(ctx, slog.LevelDebug, "notification deferred by quiet hours",
			logger.NotificationID(n.ID),
			logger.UserID(n.Recipient.UserID),
			logger.Priority(n.Priority.String()),
		)
		d.auditLog(ctx, audit.ActionNotificationDeferred, nil, d.auditOpts(n)...)
		return res, nil
	}

	if !fromQueue && d.shouldBatch(n) && d.batch(ctx, n) {
		res.Batched = true
		res.Success = true
		return res, nil
	}

	if len(channels) == 0 {
		res.Errors = append(res.Errors, ErrNoChannels)
	} else {
		res.Results, res.Errors = d.sendNow(ctx, n, channels)
		d.record(ctx, n, res.Results)
	}
	res.Success = res.AnySuccess()

	if !res.Success && !fromQueue && n.Priority == domain.PriorityCritical {
		var first domain.Channel
		if len(channels) > 0 {
			first = channels[0]
		}
		entry, err := d.enqueue(ctx, n, first, now, joinErrors(res.Errors))
		if err != nil {
			res.Errors = append(res.Errors, err)
			d.log.LogAttrs(ctx, slog.LevelError, "critical notification could not be delivered or queued",
				logger.NotificationID(n.ID),
				logger.UserID(n.Recipient.UserID),
				logger.Error(err),
			)
			d.settle(ctx, n.ID, domain.DeliveryFailed)
			return res, nil
		}
		res.QueueEntryID = entry.ID
	}

	if !fromQueue {
		switch {
		case res.Success:
			d.settle(ctx, n.ID, domain.DeliverySent)
		case res.QueueEntryID != "":
			d.settle(ctx, n.ID, domain.DeliveryQueued)
		default:
			d.settle(ctx, n.ID, domain.DeliveryFailed)
		}
	}
	return res, nil
}

// settle closes the pending placeholder rows written for notificationID
// before it reached the dispatcher.
func (d *Dispatcher) settle(ctx context.Context, notificationID string, status domain.DeliveryStatus) {
	if _, err := d.store.SettlePendingDeliveryLogs(ctx, notificationID, status); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to settle pending delivery logs",
			logger.NotificationID(notificationID),
			logger.Error(err),
		)
	}
}

// enrich fills contact details and preferences from the store. Values the
// caller already set are kept. Lookup failures are logged and delivery goes
// on with what is known.
func (d *Dispatcher) enrich(ctx context.Context, n *domain.Notification) {
	r := &n.Recipient

	u, err := d.store.GetUser(ctx, r.UserID)
	switch {
	case err == nil:
		if r.Name == "" {
			r.Name = u.Name
		}
		if r.Email == "" {
			r.Email = u.Email
		}
		if r.Phone == "" {
			r.Phone = u.Phone
		}
		if len(r.PushTokens) == 0 {
			r.PushTokens = slices.Clone(u.PushTokens)
		}
		if n.OrganizationID == "" {
			n.OrganizationID = u.HospitalID
		}
	case errors.Is(err, domain.ErrUserNotFound):
		d.log.LogAttrs(ctx, slog.LevelWarn, "recipient not found, using supplied contact details",
			logger.NotificationID(n.ID),
			logger.UserID(r.UserID),
		)
	default:
		d.log.LogAttrs(ctx, slog.LevelError, "failed to load recipient",
			logger.NotificationID(n.ID),
			logger.UserID(r.UserID),
			logger.Error(err),
		)
	}

	if r.Preferences != nil {
		return
	}
	prefs, err := d.store.GetUserPreferences(ctx, r.UserID)
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to load preferences",
			logger.UserID(r.UserID),
			logger.Error(err),
		)
		return
	}
	r.Preferences = prefs
}

// resolveChannels returns the channels to try, in order. deferred is true
// when quiet hours hold back a notification below High.
func (d *Dispatcher) resolveChannels(ctx context.Context, n domain.Notification, now time.Time) (channels []domain.Channel, deferred bool) {
	if n.Priority == domain.PriorityCritical {
		if len(n.Channels) > 0 {
			return dedupe(n.Channels), false
		}
		if reachable := d.reachable(n.Recipient); len(reachable) > 0 {
			return reachable, false
		}
		return n.Type.DefaultChannels(), false
	}

	prefs := n.Recipient.Preferences
	if len(n.Channels) > 0 {
		channels = dedupe(n.Channels)
	} else {
		for _, c := range n.Type.DefaultChannels() {
			if prefs.Allows(n.Type, c) {
				channels = append(channels, c)
			}
		}
	}

	if prefs != nil && n.Priority < domain.PriorityHigh {
		quiet, err := prefs.QuietHours.Active(now)
		if err != nil {
			d.log.LogAttrs(ctx, slog.LevelWarn, "ignoring invalid quiet hours",
				logger.UserID(n.Recipient.UserID),
				logger.Error(err),
			)
		}
		if quiet {
			return nil, true
		}
	}

	if len(channels) == 0 && n.Priority >= domain.PriorityHigh && n.Recipient.Email != "" {
		channels = []domain.Channel{domain.ChannelEmail}
	}
	return channels, false
}

// reachable lists the channels a critical notification can use for r, most
// intrusive first. SMS rings a phone with no app or data connection; push
// needs a registered device. Email comes last because staff on call are not
// expected to watch an inbox. Fallback walks this order.
func (d *Dispatcher) reachable(r domain.Recipient) []domain.Channel {
	var out []domain.Channel
	if r.Phone != "" && d.sms != nil {
		out = append(out, domain.ChannelSMS)
	}
	if len(r.PushTokens) > 0 {
		out = append(out, domain.ChannelPush)
	}
	if r.Email != "" {
		out = append(out, domain.ChannelEmail)
	}
	return out
}

func dedupe(chs []domain.Channel) []domain.Channel {
	out := make([]domain.Channel, 0, len(chs))
	for _, c := range chs {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// shouldBatch applies the digest rule. Recipients without an email address
// are never batched because digests go out by email only.
func (d *Dispatcher) shouldBatch(n domain.Notification) bool {
	if n.Recipient.Email == "" {
		return false
	}
	switch n.Priority {
	case domain.PriorityLow:
		return true
	case domain.PriorityMedium:
		return n.Recipient.Preferences.FrequencyFor(n.Type) == domain.FrequencyBatch
	}
	return false
}

// sendNow tries each channel in order. A critical notification stops at the
// first success. A failed channel gets one attempt on its fallback unless the
// fallback is already part of the plan.
func (d *Dispatcher) sendNow(ctx context.Context, n domain.Notification, channels []domain.Channel) ([]domain.ChannelResult, []error) {
	var (
		results   []domain.ChannelResult
		errs      []error
		attempted = make(map[domain.Channel]bool, len(channels)+1)
		critical  = n.Priority == domain.PriorityCritical
	)

	for _, ch := range channels {
		if attempted[ch] {
			continue
		}
		attempted[ch] = true

		r, err := d.sendChannel(ctx, n, ch)
		results = append(results, r)
		if err == nil {
			if critical {
				break
			}
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", ch, err))

		fb, ok := ch.Fallback()
		if !ok || attempted[fb] || slices.Contains(channels, fb) {
			continue
		}
		attempted[fb] = true
		d.metrics.Fallback(string(ch), string(fb))

		fr, err := d.sendChannel(ctx, n, fb)
		fr.Fallback = true
		results = append(results, fr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s fallback: %w", fb, err))
			continue
		}
		if critical {
			break
		}
	}

	return results, errs
}

func (d *Dispatcher) sendChannel(ctx context.Context, n domain.Notification, ch domain.Channel) (domain.ChannelResult, error) {
	start := time.Now()
	rcpt, err := d.invoke(ctx, n, ch)

	r := domain.ChannelResult{
		Channel:   ch,
		Success:   err == nil,
		MessageID: rcpt.MessageID,
		Timestamp: d.now(),
	}
	d.metrics.Delivery(string(ch), err == nil)

	if err != nil {
		r.Error = err.Error()
		d.log.LogAttrs(ctx, slog.LevelWarn, "channel delivery failed",
			logger.NotificationID(n.ID),
			logger.UserID(n.Recipient.UserID),
			logger.Channel(string(ch)),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return r, err
	}

	d.log.LogAttrs(ctx, slog.LevelDebug, "channel delivery succeeded",
		logger.NotificationID(n.ID),
		logger.UserID(n.Recipient.UserID),
		logger.Channel(string(ch)),
		logger.MessageID(rcpt.MessageID),
		logger.Duration(time.Since(start)),
		slog.Any("metadata", rcpt.Metadata),
	)
	return r, nil
}

// invoke calls the adapter for ch. A panicking adapter is reported as an
// error like any other failure.
func (d *Dispatcher) invoke(ctx context.Context, n domain.Notification, ch domain.Channel) (rcpt Receipt, err error) {
	defer func() {
		if p := recover(); p != nil {
			rcpt, err = Receipt{}, fmt.Errorf("%w: %s: %v", ErrAdapterPanic, ch, p)
		}
	}()

	msg := compose(n)
	r := n.Recipient

	switch ch {
	case domain.ChannelEmail:
		if d.email == nil {
			return Receipt{}, notConfigured(ch)
		}
		if r.Email == "" {
			return Receipt{}, noContact(ch)
		}
		var tpl templ.Component
		if n.Type == domain.TypeDigest {
			tpl = digestEmail(msg, digestItems(n.Data))
		} else {
			tpl = notificationEmail(msg, n)
		}
		html, err := templates.Render(ctx, tpl)
		if err != nil {
			return Receipt{}, fmt.Errorf("render email: %w", err)
		}
		return d.email.SendEmail(ctx, EmailRequest{
			To:      r.Email,
			Subject: msg.Subject,
			HTML:    html,
			Tag:     string(n.Type),
		})

	case domain.ChannelSMS:
		if d.sms == nil {
			return Receipt{}, notConfigured(ch)
		}
		if r.Phone == "" {
			return Receipt{}, noContact(ch)
		}
		return d.sms.SendSMS(ctx, SMSRequest{To: r.Phone, Message: msg.Text, Priority: n.Priority})

	case domain.ChannelPush:
		if d.push == nil {
			return Receipt{}, notConfigured(ch)
		}
		if len(r.PushTokens) == 0 {
			return Receipt{}, noContact(ch)
		}
		return d.push.SendPush(ctx, PushRequest{
			Tokens:   r.PushTokens,
			Title:    msg.Subject,
			Body:     msg.Text,
			Data:     pushData(n),
			Priority: n.Priority,
		})

	case domain.ChannelInApp:
		if d.inApp == nil {
			return Receipt{}, notConfigured(ch)
		}
		return d.inApp.PublishInApp(ctx, InAppRequest{
			UserID:       r.UserID,
			HospitalID:   n.OrganizationID,
			Notification: n,
			Title:        msg.Subject,
			Body:         msg.Text,
		})
	}

	return Receipt{}, fmt.Errorf("%w: unknown channel %q", domain.ErrInvalidNotification, ch)
}

func notConfigured(ch domain.Channel) error {
	return fmt.Errorf("%w: %s", domain.ErrChannelNotConfigured, ch)
}

func noContact(ch domain.Channel) error {
	return fmt.Errorf("%w: %s", ErrNoContact, ch)
}

// record appends one delivery log row and one audit event per attempt.
func (d *Dispatcher) record(ctx context.Context, n domain.Notification, results []domain.ChannelResult) {
	if len(results) == 0 {
		return
	}

	logs := make([]domain.DeliveryLog, 0, len(results))
	for _, r := range results {
		row := domain.DeliveryLog{
			ID:             uuid.NewString(),
			NotificationID: n.ID,
			AlertID:        n.AlertID,
			UserID:         n.Recipient.UserID,
			Type:           n.Type,
			Channel:        r.Channel,
			Status:         domain.DeliverySent,
			MessageID:      r.MessageID,
			Error:          r.Error,
			CreatedAt:      r.Timestamp,
		}

		opts := append(d.auditOpts(n),
			audit.WithMetadata("channel", string(r.Channel)),
			audit.WithMetadata("fallback", r.Fallback),
		)
		if r.Success {
			d.auditLog(ctx, audit.ActionNotificationSent, nil,
				append(opts, audit.WithMetadata("message_id", r.MessageID))...)
		} else {
			row.Status = domain.DeliveryFailed
			d.auditLog(ctx, audit.ActionNotificationFailed, errors.New(r.Error), opts...)
		}
		logs = append(logs, row)
	}

	if err := d.store.InsertDeliveryLogs(ctx, logs...); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to write delivery log",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}
}

func (d *Dispatcher) auditOpts(n domain.Notification) []audit.EventOption {
	opts := []audit.EventOption{
		audit.WithResource("notification", n.ID),
		audit.WithMetadata("user_id", n.Recipient.UserID),
		audit.WithMetadata("type", string(n.Type)),
		audit.WithMetadata("priority", n.Priority.String()),
	}
	if n.OrganizationID != "" {
		opts = append(opts, audit.WithHospital(n.OrganizationID))
	}
	if n.AlertID != "" {
		opts = append(opts, audit.WithMetadata("alert_id", n.AlertID))
	}
	return opts
}

// auditLog writes an audit event and only logs storage failures.
func (d *Dispatcher) auditLog(ctx context.Context, action string, cause error, opts ...audit.EventOption) {
	var err error
	if cause != nil {
		err = d.audit.LogError(ctx, action, cause, opts...)
	} else {
		err = d.audit.Log(ctx, action, opts...)
	}
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "failed to write audit event",
			slog.String("action", action),
			logger.Error(err),
		)
	}
}

func joinErrors(errs []error) string {
	if err := errors.Join(errs...); err != nil {
		return err.Error()
	}
	return ""
}

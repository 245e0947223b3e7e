package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

var errDeferred = errors.New("deferred by quiet hours")

// QueueSummary reports one ProcessQueue pass.
type QueueSummary struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

// enqueue persists n for a later attempt at next.
func (d *Dispatcher) enqueue(ctx context.Context, n domain.Notification, ch domain.Channel, next time.Time, cause string) (domain.QueueEntry, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return domain.QueueEntry{}, errors.Join(ErrEnqueueFailed, err)
	}

	now := d.now()
	entry := domain.QueueEntry{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		UserID:         n.Recipient.UserID,
		Channel:        ch,
		Type:           n.Type,
		Priority:       n.Priority,
		Payload:        payload,
		Status:         domain.QueuePending,
		MaxAttempts:    d.maxAttempts,
		NextAttemptAt:  next,
		ScheduledFor:   n.ScheduledFor,
		LastError:      cause,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.store.EnqueueNotification(ctx, entry); err != nil {
		return domain.QueueEntry{}, errors.Join(ErrEnqueueFailed, err)
	}

	row := domain.DeliveryLog{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		AlertID:        n.AlertID,
		UserID:         n.Recipient.UserID,
		Type:           n.Type,
		Channel:        ch,
		Status:         domain.DeliveryQueued,
		Error:          cause,
		CreatedAt:      now,
	}
	if err := d.store.InsertDeliveryLogs(ctx, row); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to write delivery log",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}

	d.metrics.QueueEntry("enqueued")
	d.log.LogAttrs(ctx, slog.LevelInfo, "notification queued",
		logger.NotificationID(n.ID),
		logger.QueueEntryID(entry.ID),
		logger.UserID(entry.UserID),
		logger.Priority(n.Priority.String()),
		slog.Time("next_attempt_at", next),
	)
	d.auditLog(ctx, audit.ActionNotificationQueued, nil, append(d.auditOpts(n),
		audit.WithMetadata("queue_entry_id", entry.ID),
		audit.WithMetadata("next_attempt_at", next.UTC().Format(time.RFC3339)),
	)...)
	return entry, nil
}

// ProcessQueue claims due entries and re-sends them. A call that overlaps a
// running one returns immediately with an empty summary.
func (d *Dispatcher) ProcessQueue(ctx context.Context) (QueueSummary, error) {
	if !d.processing.CompareAndSwap(false, true) {
		return QueueSummary{}, nil
	}
	defer d.processing.Store(false)

	entries, err := d.store.ClaimDueQueueEntries(ctx, d.now(), d.queueLockTimeout, d.queueBatchSize)
	if err != nil {
		return QueueSummary{}, fmt.Errorf("claim queue entries: %w", err)
	}

	sum := QueueSummary{Claimed: len(entries)}
	if len(entries) == 0 {
		return sum, nil
	}

	results := async.Map(ctx, entries, d.maxConcurrency, d.processEntry)
	for i, r := range results {
		if r.Err != nil {
			// Entry never reached a terminal write; put it back as a failed attempt.
			entry := entries[i]
			entry.RecordFailure(d.now(), r.Err.Error())
			if err := d.store.UpdateQueueEntry(context.WithoutCancel(ctx), entry); err != nil {
				d.log.LogAttrs(ctx, slog.LevelError, "failed to release queue entry",
					logger.QueueEntryID(entry.ID),
					logger.Errors(r.Err, err),
				)
			}
			r.Value = entry.Status
		}

		switch r.Value {
		case domain.QueueCompleted:
			sum.Completed++
		case domain.QueuePending:
			sum.Retried++
		case domain.QueueFailed:
			sum.Failed++
		}
	}

	d.log.LogAttrs(ctx, slog.LevelDebug, "queue processed",
		slog.Int("claimed", sum.Claimed),
		slog.Int("completed", sum.Completed),
		slog.Int("retried", sum.Retried),
		slog.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (d *Dispatcher) processEntry(ctx context.Context, entry domain.QueueEntry) (domain.QueueStatus, error) {
	n, err := entry.Notification()
	if err != nil {
		entry.Attempts++
		entry.Status = domain.QueueFailed
		entry.LastError = "decode payload: " + err.Error()
		entry.UpdatedAt = d.now()
	} else {
		res, err := d.deliver(ctx, n, true)
		now := d.now()
		switch {
		case err != nil:
			// Validation failures are never retried.
			entry.Attempts++
			entry.Status = domain.QueueFailed
			entry.LastError = err.Error()
			entry.UpdatedAt = now
		case res.Success:
			entry.Attempts++
			entry.Status = domain.QueueCompleted
			entry.LastError = ""
			entry.UpdatedAt = now
		case res.Deferred:
			entry.RecordFailure(now, errDeferred.Error())
		default:
			cause := joinErrors(res.Errors)
			if cause == "" {
				cause = ErrNoChannels.Error()
			}
			entry.RecordFailure(now, cause)
		}
	}

	entry.LockedUntil = nil
	if err := d.store.UpdateQueueEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("update queue entry %s: %w", entry.ID, err)
	}

	attrs := []slog.Attr{
		logger.QueueEntryID(entry.ID),
		logger.NotificationID(entry.NotificationID),
		logger.UserID(entry.UserID),
		logger.RetryCount(entry.Attempts),
	}
	switch entry.Status {
	case domain.QueueCompleted:
		d.metrics.QueueEntry("completed")
		d.log.LogAttrs(ctx, slog.LevelInfo, "queued notification delivered", attrs...)
	case domain.QueuePending:
		d.metrics.QueueEntry("retried")
		d.log.LogAttrs(ctx, slog.LevelWarn, "queued notification will be retried",
			append(attrs, slog.Time("next_attempt_at", entry.NextAttemptAt), slog.String("error", entry.LastError))...)
	case domain.QueueFailed:
		d.metrics.QueueEntry("failed")
		d.log.LogAttrs(ctx, slog.LevelError, "queued notification exhausted its attempts",
			append(attrs, slog.String("error", entry.LastError))...)
		d.auditLog(ctx, audit.ActionQueueEntryExhausted, errors.New(entry.LastError),
			audit.WithResource("queue_entry", entry.ID),
			audit.WithMetadata("notification_id", entry.NotificationID),
			audit.WithMetadata("user_id", entry.UserID),
			audit.WithMetadata("attempts", entry.Attempts),
		)
	}
	return entry.Status, nil
}

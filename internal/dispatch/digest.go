package dispatch

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

// batch parks n in its digest window. It reports false when the batcher no
// longer accepts work, in which case the caller sends immediately.
func (d *Dispatcher) batch(ctx context.Context, n domain.Notification) bool {
	started, err := d.batcher.Add(n)
	if err != nil {
		return false
	}
	if started {
		d.metrics.PendingBatches(d.batcher.Len())
	}

	row := domain.DeliveryLog{
		ID:             uuid.NewString(),
		NotificationID: n.ID,
		AlertID:        n.AlertID,
		UserID:         n.Recipient.UserID,
		Type:           n.Type,
		Channel:        domain.ChannelEmail,
		Status:         domain.DeliveryBatched,
		CreatedAt:      d.now(),
	}
	if err := d.store.InsertDeliveryLogs(ctx, row); err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to write delivery log",
			logger.NotificationID(n.ID),
			logger.Error(err),
		)
	}

	d.log.LogAttrs(ctx, slog.LevelDebug, "notification batched",
		logger.NotificationID(n.ID),
		logger.UserID(n.Recipient.UserID),
		slog.String("type", string(n.Type)),
	)
	d.auditLog(ctx, audit.ActionNotificationBatched, nil, d.auditOpts(n)...)
	return true
}

// flushBatch merges one window into a digest email and marks the originals
// delivered once it is accepted.
func (d *Dispatcher) flushBatch(ctx context.Context, key BatchKey, items []domain.Notification) {
	if len(items) == 0 {
		return
	}

	last := items[len(items)-1]
	priority := domain.PriorityLow
	ids := make([]string, 0, len(items))
	summaries := make([]map[string]any, 0, len(items))
	for _, it := range items {
		msg := compose(it)
		summaries = append(summaries, map[string]any{
			"id":        it.ID,
			"type":      string(it.Type),
			"subject":   msg.Subject,
			"text":      msg.Text,
			"createdAt": it.CreatedAt,
		})
		ids = append(ids, it.ID)
		priority = max(priority, it.Priority)
	}

	digest := domain.Notification{
		ID:        uuid.NewString(),
		Type:      domain.TypeDigest,
		Recipient: last.Recipient,
		Priority:  priority,
		Channels:  []domain.Channel{domain.ChannelEmail},
		Data: map[string]any{
			DataNotifications: summaries,
			DataCount:         len(items),
			"batchType":       string(key.Type),
		},
		OrganizationID: last.OrganizationID,
		CreatedAt:      d.now(),
	}

	r, err := d.sendChannel(ctx, digest, domain.ChannelEmail)
	d.record(ctx, digest, []domain.ChannelResult{r})
	d.metrics.Digest(err == nil, len(items))
	d.metrics.PendingBatches(d.batcher.Len())

	opts := append(d.auditOpts(digest),
		audit.WithMetadata("count", len(items)),
		audit.WithMetadata("batch_type", string(key.Type)),
	)
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "digest delivery failed",
			logger.UserID(key.UserID),
			logger.Count(len(items)),
			logger.Error(err),
		)
		d.auditLog(ctx, audit.ActionDigestSent, err, opts...)
		return
	}

	marked, err := d.store.MarkDeliveryLogsDelivered(ctx, ids, r.MessageID)
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelError, "failed to mark batched notifications delivered",
			logger.UserID(key.UserID),
			logger.Error(err),
		)
	}
	if marked != len(items) && err == nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "digest marked fewer rows than notifications",
			logger.UserID(key.UserID),
			logger.Count(marked),
			slog.Int("expected", len(items)),
		)
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "digest sent",
		logger.UserID(key.UserID),
		logger.MessageID(r.MessageID),
		logger.Count(len(items)),
	)
	d.auditLog(ctx, audit.ActionDigestSent, nil, opts...)
}

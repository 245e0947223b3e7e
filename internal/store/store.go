package store

import (
	"context"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
)

// AlertFilter narrows ListAlerts. Zero fields match everything.
type AlertFilter struct {
	HospitalID string
	Status     domain.AlertStatus
	Limit      int
}

// DeliveryLogFilter narrows ListDeliveryLogs. Zero fields match everything.
type DeliveryLogFilter struct {
	AlertID        string
	UserID         string
	NotificationID string
	Status         domain.DeliveryStatus
	Limit          int
}

// RecipientQuery selects staff for an alert tier.
type RecipientQuery struct {
	HospitalID string
	Roles      []domain.Role
	// OnDutyOnly restricts the result to staff currently on duty.
	OnDutyOnly bool
}

// Tx is the set of writes that must commit atomically during an escalation
// or a status change.
type Tx interface {
	// UpdateAlertTierConditional advances an active alert whose level is still
	// fromTier. It reports false when no row matched.
	UpdateAlertTierConditional(ctx context.Context, alertID string, fromTier int, upd domain.EscalationUpdate) (bool, error)
	// UpdateAlertStatusConditional moves an alert from one status to another
	// and clears its escalation timer. It reports false when no row matched.
	UpdateAlertStatusConditional(ctx context.Context, alertID string, from, to domain.AlertStatus, actor string, at time.Time) (bool, error)
	InsertEscalationRecord(ctx context.Context, rec domain.EscalationRecord) error
	GetUsersByRole(ctx context.Context, q RecipientQuery) ([]domain.User, error)
	InsertDeliveryLogs(ctx context.Context, logs ...domain.DeliveryLog) error
}

// Store is the persistence contract shared by the engine and the dispatcher.
type Store interface {
	CreateAlert(ctx context.Context, alert domain.Alert) error
	GetAlert(ctx context.Context, id string) (domain.Alert, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]domain.Alert, error)
	// GetAlertsDueForEscalation returns active alerts whose timer is before
	// now and whose level is below maxTier, oldest deadline first.
	GetAlertsDueForEscalation(ctx context.Context, now time.Time, maxTier, limit int) ([]domain.Alert, error)
	ListEscalationRecords(ctx context.Context, alertID string) ([]domain.EscalationRecord, error)

	UpsertUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUsersByRole(ctx context.Context, q RecipientQuery) ([]domain.User, error)
	// GetUserPreferences returns nil, nil when the user never stored
	// preferences or does not exist.
	GetUserPreferences(ctx context.Context, userID string) (*domain.Preferences, error)
	SetUserPreferences(ctx context.Context, userID string, prefs domain.Preferences) error

	InsertDeliveryLogs(ctx context.Context, logs ...domain.DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, f DeliveryLogFilter) ([]domain.DeliveryLog, error)
	// MarkDeliveryLogsDelivered flips batched rows of the given notifications
	// to delivered and returns how many rows changed.
	MarkDeliveryLogsDelivered(ctx context.Context, notificationIDs []string, messageID string) (int, error)
	// SettlePendingDeliveryLogs moves the pending placeholder rows of a
	// notification to status once its first delivery pass has an outcome.
	SettlePendingDeliveryLogs(ctx context.Context, notificationID string, status domain.DeliveryStatus) (int, error)

	EnqueueNotification(ctx context.Context, entry domain.QueueEntry) error
	GetQueueEntry(ctx context.Context, id string) (domain.QueueEntry, error)
	// ClaimDueQueueEntries moves up to limit entries to processing, locked
	// until now+lockFor, and returns them. Pending entries with
	// nextAttemptAt <= now qualify, and so do processing entries whose lock
	// has expired because their worker never reported back.
	ClaimDueQueueEntries(ctx context.Context, now time.Time, lockFor time.Duration, limit int) ([]domain.QueueEntry, error)
	UpdateQueueEntry(ctx context.Context, entry domain.QueueEntry) error

	// InTx runs fn in one transaction. fn must only use the Tx it is given.
	InTx(ctx context.Context, fn func(Tx) error) error
}

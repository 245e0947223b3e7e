package domain

import (
	"encoding/json"
	"time"
)

// QueueStatus is the state of a retry queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// DefaultMaxAttempts bounds queue retries when no limit is configured.
const DefaultMaxAttempts = 5

// QueueEntry is a persisted notification awaiting a (re)delivery attempt.
// Payload holds the JSON-encoded Notification.
type QueueEntry struct {
	ID             string           `json:"id"`
	NotificationID string           `json:"notificationId"`
	UserID         string           `json:"userId"`
	Channel        Channel          `json:"channel"`
	Type           NotificationType `json:"type"`
	Priority       Priority         `json:"priority"`
	Payload        json.RawMessage  `json:"payload"`
	Status         QueueStatus      `json:"status"`
	Attempts       int              `json:"attempts"`
	MaxAttempts    int              `json:"maxAttempts"`
	NextAttemptAt  time.Time        `json:"nextAttemptAt"`
	ScheduledFor   *time.Time       `json:"scheduledFor,omitempty"`
	LastError      string           `json:"lastError,omitempty"`
	// LockedUntil is set while a worker holds the entry. A processing entry
	// whose lock has passed is claimable again.
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Claimable reports whether a worker may take the entry at now: it is due
// and pending, or a previous worker's lock on it has expired.
func (e QueueEntry) Claimable(now time.Time) bool {
	switch e.Status {
	case QueuePending:
		return !e.NextAttemptAt.After(now)
	case QueueProcessing:
		return e.LockedUntil != nil && !e.LockedUntil.After(now)
	}
	return false
}

// Notification decodes the payload.
func (e QueueEntry) Notification() (Notification, error) {
	var n Notification
	err := json.Unmarshal(e.Payload, &n)
	return n, err
}

// RecordFailure applies one failed attempt at now: the entry either becomes
// failed or is rescheduled after QueueBackoff.
func (e *QueueEntry) RecordFailure(now time.Time, cause string) {
	e.Attempts++
	e.LastError = cause
	e.UpdatedAt = now
	e.LockedUntil = nil
	if e.Attempts >= e.MaxAttempts {
		e.Status = QueueFailed
		return
	}
	e.Status = QueuePending
	e.NextAttemptAt = now.Add(QueueBackoff(e.Attempts))
}

// QueueBackoff is 2^attempts minutes.
func QueueBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 20 {
		attempts = 20
	}
	return time.Duration(1<<attempts) * time.Minute
}

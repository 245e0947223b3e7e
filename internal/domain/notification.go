package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType classifies what a notification is about.
type NotificationType string

const (
	TypeAlertCreated      NotificationType = "alert_created"
	TypeAlertEscalated    NotificationType = "alert_escalated"
	TypeAlertAcknowledged NotificationType = "alert_acknowledged"
	TypeAlertResolved     NotificationType = "alert_resolved"
	TypeShiftReminder     NotificationType = "shift_reminder"
	TypeSystemNotice      NotificationType = "system_notice"
	// TypeDigest is used for batched summaries and is never requested directly.
	TypeDigest NotificationType = "digest"
)

func (t NotificationType) Valid() bool {
	switch t {
	case TypeAlertCreated, TypeAlertEscalated, TypeAlertAcknowledged, TypeAlertResolved,
		TypeShiftReminder, TypeSystemNotice, TypeDigest:
		return true
	}
	return false
}

// DefaultChannels are used when a notification names no channels.
func (t NotificationType) DefaultChannels() []Channel {
	switch t {
	case TypeAlertCreated:
		return []Channel{ChannelInApp, ChannelPush, ChannelSMS}
	case TypeAlertEscalated:
		return []Channel{ChannelInApp, ChannelPush, ChannelSMS, ChannelEmail}
	case TypeAlertAcknowledged:
		return []Channel{ChannelInApp, ChannelPush}
	case TypeAlertResolved:
		return []Channel{ChannelInApp}
	case TypeShiftReminder:
		return []Channel{ChannelInApp, ChannelEmail}
	case TypeSystemNotice:
		return []Channel{ChannelEmail}
	case TypeDigest:
		return []Channel{ChannelEmail}
	}
	return nil
}

// Title is the short human label used in subjects and push titles.
func (t NotificationType) Title() string {
	switch t {
	case TypeAlertCreated:
		return "New alert"
	case TypeAlertEscalated:
		return "Alert escalated"
	case TypeAlertAcknowledged:
		return "Alert acknowledged"
	case TypeAlertResolved:
		return "Alert resolved"
	case TypeShiftReminder:
		return "Shift reminder"
	case TypeSystemNotice:
		return "System notice"
	case TypeDigest:
		return "Notification summary"
	}
	return string(t)
}

// Recipient is the addressee of a notification. Contact fields are filled in
// by the dispatcher before channels are chosen.
type Recipient struct {
	UserID      string       `json:"userId"`
	Name        string       `json:"name,omitempty"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	PushTokens  []string     `json:"pushTokens,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

// Notification is a request to inform one user.
type Notification struct {
	ID             string           `json:"id"`
	Type           NotificationType `json:"type"`
	Recipient      Recipient        `json:"recipient"`
	Priority       Priority         `json:"priority"`
	Channels       []Channel        `json:"channels,omitempty"`
	Data           map[string]any   `json:"data,omitempty"`
	OrganizationID string           `json:"organizationId,omitempty"`
	AlertID        string           `json:"alertId,omitempty"`
	ScheduledFor   *time.Time       `json:"scheduledFor,omitempty"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Validate rejects malformed or expired notifications.
func (n Notification) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(n.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidNotification)
	case strings.TrimSpace(n.Recipient.UserID) == "":
		return fmt.Errorf("%w: recipient user id is required", ErrInvalidNotification)
	case !n.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, n.Type)
	case !n.Priority.Valid():
		return fmt.Errorf("%w: unknown priority %d", ErrInvalidNotification, int(n.Priority))
	}
	for _, c := range n.Channels {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown channel %q", ErrInvalidNotification, c)
		}
	}
	if n.ExpiresAt != nil && n.ExpiresAt.Before(now) {
		return fmt.Errorf("%w: expired at %s", ErrExpiredNotification, n.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// ChannelResult is the outcome of one delivery attempt.
type ChannelResult struct {
	Channel   Channel   `json:"channel"`
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationResult aggregates every attempt made for one notification.
type NotificationResult struct {
	NotificationID string          `json:"notificationId"`
	Results        []ChannelResult `json:"results"`
	Errors         []error         `json:"-"`
	Success        bool            `json:"success"`
	// Batched means the notification joined a digest window.
	Batched bool `json:"batched,omitempty"`
	// Deferred means quiet hours left no channel to use.
	Deferred bool `json:"deferred,omitempty"`
	// QueueEntryID is set when delivery was handed to the retry queue.
	QueueEntryID string `json:"queueEntryId,omitempty"`
}

// AnySuccess reports whether at least one attempt succeeded.
func (r NotificationResult) AnySuccess() bool {
	for _, cr := range r.Results {
		if cr.Success {
			return true
		}
	}
	return false
}

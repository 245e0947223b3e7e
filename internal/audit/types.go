package audit

import (
	"context"
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Actions recorded by the engine and the dispatcher.
const (
	ActionAlertRaised          = "alert.raised"
	ActionAlertEscalated       = "alert.escalated"
	ActionAlertAcknowledged    = "alert.acknowledged"
	ActionAlertResolved        = "alert.resolved"
	ActionNotificationSent     = "notification.sent"
	ActionNotificationFailed   = "notification.failed"
	ActionNotificationBatched  = "notification.batched"
	ActionNotificationDeferred = "notification.deferred"
	ActionNotificationQueued   = "notification.queued"
	ActionDigestSent           = "notification.digest_sent"
	ActionQueueEntryExhausted  = "queue.exhausted"
)

// Event represents a single audit log entry
type Event struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	HospitalID string         `json:"hospital_id,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	PrevHash   string         `json:"prev_hash,omitempty"`
	Hash       string         `json:"hash"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	if e.Result == "" {
		return fmt.Errorf("%w: result is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// Criteria selects events. Zero fields do not filter.
type Criteria struct {
	Action     string
	ActorID    string
	HospitalID string
	Resource   string
	ResourceID string
	Result     Result
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

func (c Criteria) matches(e Event) bool {
	switch {
	case c.Action != "" && e.Action != c.Action:
		return false
	case c.ActorID != "" && e.ActorID != c.ActorID:
		return false
	case c.HospitalID != "" && e.HospitalID != c.HospitalID:
		return false
	case c.Resource != "" && e.Resource != c.Resource:
		return false
	case c.ResourceID != "" && e.ResourceID != c.ResourceID:
		return false
	case c.Result != "" && e.Result != c.Result:
		return false
	case !c.StartTime.IsZero() && e.CreatedAt.Before(c.StartTime):
		return false
	case !c.EndTime.IsZero() && !e.CreatedAt.Before(c.EndTime):
		return false
	}
	return true
}

// Storage persists and queries events. Query returns events oldest first.
type Storage interface {
	Store(ctx context.Context, event Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

// BatchStorage can persist several events atomically.
type BatchStorage interface {
	Storage
	StoreBatch(ctx context.Context, events []Event) error
}

// StorageCounter is implemented by storages with an efficient count.
type StorageCounter interface {
	Count(ctx context.Context, criteria Criteria) (int64, error)
}

package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type names what happened.
type Type string

const (
	AlertRaised       Type = "alert.raised"
	AlertEscalated    Type = "alert.escalated"
	AlertAcknowledged Type = "alert.acknowledged"
	AlertResolved     Type = "alert.resolved"
	// InAppNotification carries a notification addressed to a single user.
	InAppNotification Type = "notification.in_app"
)

// Event is one hospital-scoped occurrence.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	HospitalID string         `json:"hospitalId"`
	AlertID    string         `json:"alertId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// NewEvent stamps a fresh id on an event.
func NewEvent(typ Type, hospitalID, alertID string, payload map[string]any, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		HospitalID: hospitalID,
		AlertID:    alertID,
		Payload:    payload,
		OccurredAt: at.UTC(),
	}
}

// Validate checks the fields every sink relies on.
func (e Event) Validate() error {
	if e.HospitalID == "" {
		return ErrMissingHospital
	}
	return nil
}

// Publisher delivers events to a sink. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) error { return nil })

func encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errors.Join(ErrMarshalEvent, err)
	}
	return b, nil
}

func decode(b []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(b, &ev)
	return ev, err
}

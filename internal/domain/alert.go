package domain

import (
	"fmt"
	"strings"
	"time"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// AlertEvent drives AlertStatus transitions.
type AlertEvent string

const (
	EventAcknowledge AlertEvent = "acknowledge"
	EventResolve     AlertEvent = "resolve"
)

// alertTransitions is keyed by [from][event]. Escalation between tiers
// happens inside AlertActive and is guarded separately by CanEscalate.
var alertTransitions = map[AlertStatus]map[AlertEvent]AlertStatus{
	AlertActive: {
		EventAcknowledge: AlertAcknowledged,
		EventResolve:     AlertResolved,
	},
	AlertAcknowledged: {
		EventResolve: AlertResolved,
	},
}

// Transition returns the status reached by applying ev to s.
func (s AlertStatus) Transition(ev AlertEvent) (AlertStatus, error) {
	to, ok := alertTransitions[s][ev]
	if !ok {
		return s, fmt.Errorf("%w: cannot %s an alert that is %s", ErrInvalidState, ev, s)
	}
	return to, nil
}

// Alert is a clinical alert raised for a room.
type Alert struct {
	ID               string      `json:"id"`
	HospitalID       string      `json:"hospitalId"`
	RoomNumber       string      `json:"roomNumber"`
	AlertType        string      `json:"alertType"`
	UrgencyLevel     int         `json:"urgencyLevel"`
	Description      string      `json:"description,omitempty"`
	Status           AlertStatus `json:"status"`
	EscalationLevel  int         `json:"escalationLevel"`
	NextEscalationAt *time.Time  `json:"nextEscalationAt,omitempty"`
	CreatedBy        string      `json:"createdBy"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	AcknowledgedBy   string      `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt   *time.Time  `json:"acknowledgedAt,omitempty"`
	ResolvedBy       string      `json:"resolvedBy,omitempty"`
	ResolvedAt       *time.Time  `json:"resolvedAt,omitempty"`
}

// CanEscalate reports whether the alert may move from its current level to
// the next one.
func (a Alert) CanEscalate(tiers Tiers) error {
	if a.Status != AlertActive {
		return fmt.Errorf("%w: alert %s is %s", ErrInvalidState, a.ID, a.Status)
	}
	if a.EscalationLevel >= tiers.Max() {
		return fmt.Errorf("%w: alert %s is already at the final tier", ErrInvalidState, a.ID)
	}
	return nil
}

// DueForEscalation reports whether the tick at now should pick the alert up.
func (a Alert) DueForEscalation(now time.Time, maxTier int) bool {
	return a.Status == AlertActive &&
		a.NextEscalationAt != nil &&
		a.NextEscalationAt.Before(now) &&
		a.EscalationLevel < maxTier
}

// NewAlert carries the caller-supplied fields of a new alert.
type NewAlert struct {
	HospitalID   string `json:"hospitalId"`
	RoomNumber   string `json:"roomNumber"`
	AlertType    string `json:"alertType"`
	UrgencyLevel int    `json:"urgencyLevel"`
	Description  string `json:"description"`
	CreatedBy    string `json:"createdBy"`
}

// Validate checks required fields and the 1..5 urgency range.
func (n NewAlert) Validate() error {
	var missing []string
	if strings.TrimSpace(n.HospitalID) == "" {
		missing = append(missing, "hospitalId")
	}
	if strings.TrimSpace(n.RoomNumber) == "" {
		missing = append(missing, "roomNumber")
	}
	if strings.TrimSpace(n.AlertType) == "" {
		missing = append(missing, "alertType")
	}
	if strings.TrimSpace(n.CreatedBy) == "" {
		missing = append(missing, "createdBy")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidAlert, strings.Join(missing, ", "))
	}
	if n.UrgencyLevel < 1 || n.UrgencyLevel > 5 {
		return fmt.Errorf("%w: urgency level %d outside 1..5", ErrInvalidAlert, n.UrgencyLevel)
	}
	return nil
}

// UrgencyPriority maps an alert urgency (1 lowest, 5 highest) to the priority
// of the notification announcing it.
func UrgencyPriority(urgency int) Priority {
	switch {
	case urgency >= 4:
		return PriorityCritical
	case urgency == 3:
		return PriorityHigh
	case urgency == 2:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

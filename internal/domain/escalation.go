package domain

import "time"

// EscalationReason says why an alert moved up a tier.
type EscalationReason string

const (
	ReasonTimeout EscalationReason = "timeout"
	ReasonManual  EscalationReason = "manual"
)

// EscalationRecord is the history row written for every tier transition.
type EscalationRecord struct {
	ID          string           `json:"id"`
	AlertID     string           `json:"alertId"`
	FromTier    int              `json:"fromTier"`
	ToTier      int              `json:"toTier"`
	FromRole    Role             `json:"fromRole"`
	ToRole      Role             `json:"toRole"`
	Reason      EscalationReason `json:"reason"`
	EscalatedAt time.Time        `json:"escalatedAt"`
}

// EscalationResult is the per-alert outcome of an escalation attempt.
// Skipped means another worker won the race for the same transition.
type EscalationResult struct {
	AlertID    string `json:"alertId"`
	FromTier   int    `json:"fromTier"`
	ToTier     int    `json:"toTier"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Recipients int    `json:"recipients"`
	Err        error  `json:"-"`
}

// EscalationUpdate is the new tier state written by a conditional update.
type EscalationUpdate struct {
	Level            int
	NextEscalationAt *time.Time
	UpdatedAt        time.Time
}

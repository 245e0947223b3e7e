package domain

import (
	"fmt"
	"time"
)

// Role is a staff role an alert can be escalated to.
type Role string

const (
	RoleNurse          Role = "nurse"
	RoleDoctor         Role = "doctor"
	RoleAttending      Role = "attending"
	RoleDepartmentHead Role = "department_head"
)

// Tier is one rung of the escalation ladder. TimeoutMinutes is how long an
// alert may stay unacknowledged at this tier before moving up.
type Tier struct {
	Role           Role `yaml:"role" json:"role"`
	TimeoutMinutes int  `yaml:"timeout_minutes" json:"timeoutMinutes"`
}

// Timeout returns the tier timeout as a duration.
func (t Tier) Timeout() time.Duration {
	return time.Duration(t.TimeoutMinutes) * time.Minute
}

// Tiers is the ordered ladder. Levels are 1-indexed.
type Tiers []Tier

// DefaultTiers is used when no tier file is configured.
func DefaultTiers() Tiers {
	return Tiers{
		{Role: RoleNurse, TimeoutMinutes: 5},
		{Role: RoleDoctor, TimeoutMinutes: 10},
		{Role: RoleAttending, TimeoutMinutes: 15},
		{Role: RoleDepartmentHead, TimeoutMinutes: 0},
	}
}

// Validate checks the ladder. Every tier but the last needs a positive
// timeout; the last tier never times out.
func (t Tiers) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrTierConfig)
	}
	for i, tier := range t {
		level := i + 1
		if tier.Role == "" {
			return fmt.Errorf("%w: tier %d has no role", ErrTierConfig, level)
		}
		if tier.TimeoutMinutes < 0 || (level < len(t) && tier.TimeoutMinutes == 0) {
			return fmt.Errorf("%w: tier %d needs a positive timeout", ErrTierConfig, level)
		}
	}
	return nil
}

// Max is the highest level.
func (t Tiers) Max() int {
	return len(t)
}

// At returns the tier for a 1-indexed level.
func (t Tiers) At(level int) (Tier, error) {
	if level < 1 || level > len(t) {
		return Tier{}, fmt.Errorf("%w: level %d outside 1..%d", ErrTierConfig, level, len(t))
	}
	return t[level-1], nil
}

// NextEscalationAt returns when an alert that reached level at now escalates
// again, or nil at the final tier.
func (t Tiers) NextEscalationAt(level int, now time.Time) (*time.Time, error) {
	tier, err := t.At(level)
	if err != nil {
		return nil, err
	}
	if level >= t.Max() {
		return nil, nil
	}
	next := now.Add(tier.Timeout())
	return &next, nil
}

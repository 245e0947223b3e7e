package domain

import (
	"fmt"
	"time"
)

// Frequency controls whether a notification type is sent at once or batched.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyBatch     Frequency = "batch"
)

// Preferences are a user's per-type delivery choices. A missing entry means
// the channel is allowed and delivery is immediate.
type Preferences struct {
	Channels   map[NotificationType]map[Channel]bool `json:"channels,omitempty"`
	Frequency  map[NotificationType]Frequency        `json:"frequency,omitempty"`
	QuietHours *QuietHours                           `json:"quietHours,omitempty"`
}

// Allows reports whether channel c may be used for notification type t.
func (p *Preferences) Allows(t NotificationType, c Channel) bool {
	if p == nil {
		return true
	}
	enabled, ok := p.Channels[t][c]
	return !ok || enabled
}

// FrequencyFor returns the delivery frequency chosen for t.
func (p *Preferences) FrequencyFor(t NotificationType) Frequency {
	if p == nil {
		return FrequencyImmediate
	}
	if f, ok := p.Frequency[t]; ok {
		return f
	}
	return FrequencyImmediate
}

// QuietHours is a daily window, in local time of Timezone, during which
// non-urgent notifications are held back. Start after End wraps midnight.
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// Active reports whether now falls inside the window.
func (q *QuietHours) Active(now time.Time) (bool, error) {
	if q == nil {
		return false, nil
	}

	loc := time.UTC
	if q.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(q.Timezone); err != nil {
			return false, fmt.Errorf("quiet hours timezone %q: %w", q.Timezone, err)
		}
	}

	start, err := minuteOfDay(q.Start)
	if err != nil {
		return false, err
	}
	end, err := minuteOfDay(q.End)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	switch {
	case start == end:
		return false, nil
	case start < end:
		return cur >= start && cur < end, nil
	default:
		return cur >= start || cur < end, nil
	}
}

func minuteOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("quiet hours time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/domain"
)

func TestAlertStatus_Transition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    domain.AlertStatus
		event   domain.AlertEvent
		want    domain.AlertStatus
		wantErr bool
	}{
		{domain.AlertActive, domain.EventAcknowledge, domain.AlertAcknowledged, false},
		{domain.AlertActive, domain.EventResolve, domain.AlertResolved, false},
		{domain.AlertAcknowledged, domain.EventResolve, domain.AlertResolved, false},
		{domain.AlertAcknowledged, domain.EventAcknowledge, domain.AlertAcknowledged, true},
		{domain.AlertResolved, domain.EventResolve, domain.AlertResolved, true},
		{domain.AlertResolved, domain.EventAcknowledge, domain.AlertResolved, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			t.Parallel()
			got, err := tt.from.Transition(tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidState)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlert_CanEscalate(t *testing.T) {
	t.Parallel()
	tiers := domain.DefaultTiers()

	active := domain.Alert{ID: "a", Status: domain.AlertActive, EscalationLevel: 2}
	assert.NoError(t, active.CanEscalate(tiers))

	top := active
	top.EscalationLevel = tiers.Max()
	assert.ErrorIs(t, top.CanEscalate(tiers), domain.ErrInvalidState)

	acked := active
	acked.Status = domain.AlertAcknowledged
	assert.ErrorIs(t, acked.CanEscalate(tiers), domain.ErrInvalidState)
}

func TestAlert_DueForEscalation(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		alert domain.Alert
		want  bool
	}{
		{"due", domain.Alert{Status: domain.AlertActive, EscalationLevel: 1, NextEscalationAt: &past}, true},
		{"not yet", domain.Alert{Status: domain.AlertActive, EscalationLevel: 1, NextEscalationAt: &future}, false},
		{"exactly now", domain.Alert{Status: domain.AlertActive, EscalationLevel: 1, NextEscalationAt: &now}, false},
		{"acknowledged", domain.Alert{Status: domain.AlertAcknowledged, EscalationLevel: 1, NextEscalationAt: &past}, false},
		{"final tier", domain.Alert{Status: domain.AlertActive, EscalationLevel: 4, NextEscalationAt: &past}, false},
		{"no timer", domain.Alert{Status: domain.AlertActive, EscalationLevel: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.alert.DueForEscalation(now, 4))
		})
	}
}

func TestNewAlert_Validate(t *testing.T) {
	t.Parallel()

	valid := domain.NewAlert{HospitalID: "h1", RoomNumber: "12", AlertType: "fall", UrgencyLevel: 3, CreatedBy: "u1"}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.RoomNumber = ""
	missing.CreatedBy = " "
	err := missing.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidAlert)
	assert.Contains(t, err.Error(), "roomNumber, createdBy")

	urgent := valid
	urgent.UrgencyLevel = 6
	assert.ErrorIs(t, urgent.Validate(), domain.ErrInvalidAlert)
}

func TestUrgencyPriority(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.PriorityLow, domain.UrgencyPriority(1))
	assert.Equal(t, domain.PriorityMedium, domain.UrgencyPriority(2))
	assert.Equal(t, domain.PriorityHigh, domain.UrgencyPriority(3))
	assert.Equal(t, domain.PriorityCritical, domain.UrgencyPriority(4))
	assert.Equal(t, domain.PriorityCritical, domain.UrgencyPriority(5))
}

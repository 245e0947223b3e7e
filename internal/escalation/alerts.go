package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Raise creates an active alert at tier 1 and pages the tier-1 role. The
// notification priority follows the alert's urgency.
func (e *Engine) Raise(ctx context.Context, in domain.NewAlert) (domain.Alert, error) {
	if err := in.Validate(); err != nil {
		return domain.Alert{}, err
	}

	first, err := e.tiers.At(1)
	if err != nil {
		return domain.Alert{}, err
	}
	now := e.now()
	next, err := e.tiers.NextEscalationAt(1, now)
	if err != nil {
		return domain.Alert{}, err
	}

	alert := domain.Alert{
		ID:               uuid.NewString(),
		HospitalID:       in.HospitalID,
		RoomNumber:       in.RoomNumber,
		AlertType:        in.AlertType,
		UrgencyLevel:     in.UrgencyLevel,
		Description:      in.Description,
		Status:           domain.AlertActive,
		EscalationLevel:  1,
		NextEscalationAt: next,
		CreatedBy:        in.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return domain.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	// The alert is committed; paging tier 1 must not depend on the caller staying.
	ctx = context.WithoutCancel(ctx)
	e.metrics.AlertTransition(string(domain.AlertActive))

	recipients, err := e.store.GetUsersByRole(ctx, store.RecipientQuery{
		HospitalID: alert.HospitalID,
		Roles:      []domain.Role{first.Role},
		OnDutyOnly: e.tiers.Max() > 1,
	})
	if err != nil {
		e.log.LogAttrs(ctx, slog.LevelError, "failed to resolve tier-1 staff",
			logger.AlertID(alert.ID),
			logger.Error(err),
		)
	}

	e.log.LogAttrs(ctx, slog.LevelInfo, "alert raised",
		logger.AlertID(alert.ID),
		logger.HospitalID(alert.HospitalID),
		logger.Role(string(first.Role)),
		logger.Count(len(recipients)),
	)
	e.publish(ctx, eventbus.NewEvent(eventbus.AlertRaised, alert.HospitalID, alert.ID, map[string]any{
		"roomNumber":       alert.RoomNumber,
		"alertType":        alert.AlertType,
		"urgencyLevel":     alert.UrgencyLevel,
		"role":             string(first.Role),
		"nextEscalationAt": next,
	}, now))
	e.auditLog(ctx, audit.ActionAlertRaised, nil,
		audit.WithResource("alert", alert.ID),
		audit.WithHospital(alert.HospitalID),
		audit.WithActor(alert.CreatedBy),
		audit.WithMetadata("urgency_level", alert.UrgencyLevel),
		audit.WithMetadata("alert_type", alert.AlertType),
	)

	e.notify(ctx, alert.ID, e.notificationsFor(alert, recipients, domain.TypeAlertCreated,
		domain.UrgencyPriority(alert.UrgencyLevel), now,
		map[string]any{dispatch.DataRole: string(first.Role), dispatch.DataTier: 1}))

	return alert, nil
}

// Acknowledge stops escalation for an active alert.
func (e *Engine) Acknowledge(ctx context.Context, alertID, actorID string) (domain.Alert, error) {
	return e.transition(ctx, alertID, actorID, domain.EventAcknowledge)
}

// Resolve closes an active or acknowledged alert.
func (e *Engine) Resolve(ctx context.Context, alertID, actorID string) (domain.Alert, error) {
	return e.transition(ctx, alertID, actorID, domain.EventResolve)
}

var transitionEvents = map[domain.AlertStatus]struct {
	event    eventbus.Type
	action   string
	kind     domain.NotificationType
	priority domain.Priority
}{
	domain.AlertAcknowledged: {eventbus.AlertAcknowledged, audit.ActionAlertAcknowledged, domain.TypeAlertAcknowledged, domain.PriorityMedium},
	domain.AlertResolved:     {eventbus.AlertResolved, audit.ActionAlertResolved, domain.TypeAlertResolved, domain.PriorityLow},
}

func (e *Engine) transition(ctx context.Context, alertID, actorID string, ev domain.AlertEvent) (domain.Alert, error) {
	if actorID == "" {
		return domain.Alert{}, fmt.Errorf("%w: actor is required", domain.ErrInvalidAlert)
	}

	alert, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	to, err := alert.Status.Transition(ev)
	if err != nil {
		return alert, err
	}

	now := e.now()
	var ok bool
	err = e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		ok, err = tx.UpdateAlertStatusConditional(ctx, alertID, alert.Status, to, actorID, now)
		return err
	})
	if err != nil {
		return alert, fmt.Errorf("update alert status: %w", err)
	}
	if !ok {
		return alert, fmt.Errorf("%w: alert %s changed concurrently", domain.ErrInvalidState, alertID)
	}
	ctx = context.WithoutCancel(ctx)

	updated, err := e.store.GetAlert(ctx, alertID)
	if err != nil {
		return alert, err
	}
	e.metrics.AlertTransition(string(to))

	meta := transitionEvents[to]
	e.log.LogAttrs(ctx, slog.LevelInfo, "alert status changed",
		logger.AlertID(alertID),
		logger.HospitalID(updated.HospitalID),
		logger.UserID(actorID),
		slog.String("from", string(alert.Status)),
		slog.String("to", string(to)),
	)
	e.publish(ctx, eventbus.NewEvent(meta.event, updated.HospitalID, alertID, map[string]any{
		"status":          string(to),
		"actor":           actorID,
		"escalationLevel": updated.EscalationLevel,
		"roomNumber":      updated.RoomNumber,
	}, now))
	e.auditLog(ctx, meta.action, nil,
		audit.WithResource("alert", alertID),
		audit.WithHospital(updated.HospitalID),
		audit.WithActor(actorID),
		audit.WithMetadata("from_status", string(alert.Status)),
		audit.WithMetadata("escalation_level", updated.EscalationLevel),
	)

	// Tell everyone paged so far, except the person who acted.
	recipients, err := e.store.GetUsersByRole(ctx, store.RecipientQuery{
		HospitalID: updated.HospitalID,
		Roles:      e.pagedRoles(updated.EscalationLevel),
		OnDutyOnly: true,
	})
	if err != nil {
		e.log.LogAttrs(ctx, slog.LevelError, "failed to resolve staff to inform",
			logger.AlertID(alertID),
			logger.Error(err),
		)
	}
	recipients = slices.DeleteFunc(recipients, func(u domain.User) bool { return u.ID == actorID })
	e.notify(ctx, alertID, e.notificationsFor(updated, recipients, meta.kind, meta.priority, now,
		map[string]any{dispatch.DataActor: actorID}))

	return updated, nil
}

// pagedRoles lists the roles of tiers 1..level without duplicates.
func (e *Engine) pagedRoles(level int) []domain.Role {
	var roles []domain.Role
	for i := 1; i <= level && i <= e.tiers.Max(); i++ {
		t, _ := e.tiers.At(i)
		if !slices.Contains(roles, t.Role) {
			roles = append(roles, t.Role)
		}
	}
	return roles
}

func (e *Engine) notificationsFor(alert domain.Alert, users []domain.User, kind domain.NotificationType, p domain.Priority, at time.Time, extra map[string]any) []domain.Notification {
	data := alertData(alert)
	maps.Copy(data, extra)

	ns := make([]domain.Notification, 0, len(users))
	for _, u := range users {
		ns = append(ns, domain.Notification{
			ID:             uuid.NewString(),
			Type:           kind,
			Recipient:      domain.Recipient{UserID: u.ID},
			Priority:       p,
			Data:           maps.Clone(data),
			OrganizationID: alert.HospitalID,
			AlertID:        alert.ID,
			CreatedAt:      at,
		})
	}
	return ns
}

// placeholders are the pending delivery rows written with an escalation, so
// the log shows who was due a page even if dispatch never runs. The
// dispatcher settles them once the page has an outcome.
func placeholders(ns []domain.Notification, at time.Time) []domain.DeliveryLog {
	rows := make([]domain.DeliveryLog, 0, len(ns))
	for _, n := range ns {
		rows = append(rows, domain.DeliveryLog{
			ID:             uuid.NewString(),
			NotificationID: n.ID,
			AlertID:        n.AlertID,
			UserID:         n.Recipient.UserID,
			Type:           n.Type,
			Status:         domain.DeliveryPending,
			CreatedAt:      at,
		})
	}
	return rows
}

func alertData(a domain.Alert) map[string]any {
	data := map[string]any{
		dispatch.DataAlertID:      a.ID,
		dispatch.DataHospitalID:   a.HospitalID,
		dispatch.DataRoomNumber:   a.RoomNumber,
		dispatch.DataAlertType:    a.AlertType,
		dispatch.DataUrgencyLevel: a.UrgencyLevel,
	}
	if a.Description != "" {
		data[dispatch.DataDescription] = a.Description
	}
	return data
}

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/store"
)

type actorRequest struct {
	ActorID string `json:"actorId"`
}

type alertDetail struct {
	Alert       domain.Alert              `json:"alert"`
	Escalations []domain.EscalationRecord `json:"escalations"`
}

type escalationResponse struct {
	AlertID    string `json:"alertId"`
	FromTier   int    `json:"fromTier"`
	ToTier     int    `json:"toTier"`
	Recipients int    `json:"recipients"`
}

func (h *Handler) raiseAlert(w http.ResponseWriter, r *http.Request) {
	var in domain.NewAlert
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	alert, err := h.engine.Raise(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusCreated, alert)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	alerts, err := h.store.ListAlerts(r.Context(), store.AlertFilter{
		HospitalID: q.Get("hospitalId"),
		Status:     domain.AlertStatus(q.Get("status")),
		Limit:      limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	respondList(w, alerts, len(alerts))
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")
	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.store.ListEscalationRecords(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if records == nil {
		records = []domain.EscalationRecord{}
	}
	respond(w, http.StatusOK, alertDetail{Alert: alert, Escalations: records})
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	logs, err := h.store.ListDeliveryLogs(r.Context(), store.DeliveryLogFilter{
		AlertID: chi.URLParam(r, "alertID"),
		UserID:  q.Get("userId"),
		Status:  domain.DeliveryStatus(q.Get("status")),
		Limit:   limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if logs == nil {
		logs = []domain.DeliveryLog{}
	}
	respondList(w, logs, len(logs))
}

func (h *Handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Acknowledge)
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Resolve)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, alertID, actorID string) (domain.Alert, error)) {
	actor, err := decodeActor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	alert, err := fn(r.Context(), chi.URLParam(r, "alertID"), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, alert)
}

func (h *Handler) escalateAlert(w http.ResponseWriter, r *http.Request) {
	actor, err := decodeActor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.engine.TriggerManualEscalation(r.Context(), chi.URLParam(r, "alertID"), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, escalationResponse{
		AlertID:    res.AlertID,
		FromTier:   res.FromTier,
		ToTier:     res.ToTier,
		Recipients: res.Recipients,
	})
}

func decodeActor(r *http.Request) (string, error) {
	var req actorRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	actor := strings.TrimSpace(req.ActorID)
	if actor == "" {
		return "", ErrMissingActor
	}
	return actor, nil
}

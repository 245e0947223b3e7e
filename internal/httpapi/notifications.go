package httpapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/wardwatch/wardwatch/internal/domain"
)

type broadcastRequest struct {
	UserIDs      []string            `json:"userIds"`
	Notification domain.Notification `json:"notification"`
}

type broadcastItem struct {
	UserID string                     `json:"userId"`
	Result *domain.NotificationResult `json:"result,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var n domain.Notification
	if err := decodeJSON(r, &n); err != nil {
		h.fail(w, r, err)
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = h.now()
	}

	res, err := h.dispatcher.Send(r.Context(), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, res)
}

func (h *Handler) broadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.UserIDs) == 0 {
		h.fail(w, r, fmt.Errorf("%w: userIds is required", domain.ErrInvalidNotification))
		return
	}
	if req.Notification.CreatedAt.IsZero() {
		req.Notification.CreatedAt = h.now()
	}

	results := h.dispatcher.SendToUsers(r.Context(), req.UserIDs, req.Notification)
	items := make([]broadcastItem, len(results))
	for i, res := range results {
		items[i].UserID = req.UserIDs[i]
		if res.Err != nil {
			items[i].Error = res.Err.Error()
			continue
		}
		items[i].Result = &res.Value
	}
	respondList(w, items, len(items))
}

func (h *Handler) flushBatches(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]int{"flushed": h.dispatcher.Flush(r.Context())})
}

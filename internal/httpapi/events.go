package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

// streamEvents relays a hospital's alert events as server-sent events until
// the client goes away.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.fail(w, r, fmt.Errorf("%w: event stream", ErrNotConfigured))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, ErrNotImplemented)
		return
	}

	ctx := r.Context()
	hospitalID := chi.URLParam(r, "hospitalID")
	sub := h.events.Subscribe(ctx, hospitalID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			body, err := json.Marshal(ev)
			if err != nil {
				h.log.LogAttrs(ctx, slog.LevelWarn, "failed to encode event",
					logger.HospitalID(hospitalID),
					logger.Error(err),
				)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

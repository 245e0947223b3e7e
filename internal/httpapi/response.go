package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

// envelope is the body of every JSON response.
type envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *errorDetail   `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

func respondList(w http.ResponseWriter, data any, count int) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Meta: map[string]any{"count": count}})
}

// fail writes err as a JSON error. Client errors carry the error text; server
// errors are logged and answered with a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr, known := classify(err)
	msg := err.Error()
	if !known {
		msg = http.StatusText(httpErr.Code)
		h.log.LogAttrs(r.Context(), slog.LevelError, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeJSON(w, httpErr.Code, envelope{Error: &errorDetail{Code: httpErr.Key, Message: msg}})
}

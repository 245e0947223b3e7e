package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/metrics"
)

func TestNilMetricsAreNoops(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.Escalation("timeout", "success")
		m.TickDuration(time.Second)
		m.TickSkipped()
		m.AlertTransition("acknowledged")
		m.Delivery("sms", false)
		m.Fallback("sms", "email")
		m.QueueEntry("enqueued")
		m.Digest(true, 3)
		m.PendingBatches(1)
	})

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	m.Escalation("timeout", "success")
	m.Escalation("timeout", "success")
	m.Delivery("email", true)
	m.Fallback("sms", "email")
	m.Digest(true, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `wardwatch_escalations_total{outcome="success",reason="timeout"} 2`)
	assert.Contains(t, body, `wardwatch_notification_deliveries_total{channel="email",outcome="success"} 1`)
	assert.Contains(t, body, `wardwatch_notification_fallbacks_total{from="sms",to="email"} 1`)
	assert.Contains(t, body, `wardwatch_notification_batched_total 3`)
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/alerts/{alertID}/acknowledge", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a1", "a2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/alerts/"+id+"/acknowledge", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(),
		`wardwatch_http_requests_total{method="POST",path="/alerts/{alertID}/acknowledge",status="204"} 2`)
}

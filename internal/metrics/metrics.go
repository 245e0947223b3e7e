// Package metrics exposes Prometheus instruments for the escalation engine,
// the notification dispatcher and the admin HTTP surface.
//
// All recording methods are safe on a nil *Metrics, so components can take
// an optional instance without guarding every call.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wardwatch"

// Metrics holds every instrument. Create it with New.
type Metrics struct {
	gatherer prometheus.Gatherer

	escalations      *prometheus.CounterVec
	tickDuration     prometheus.Histogram
	ticksSkipped     prometheus.Counter
	alertTransitions *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	queueEntries     *prometheus.CounterVec
	digests          *prometheus.CounterVec
	batchedItems     prometheus.Counter
	pendingBatches   prometheus.Gauge
	requestCount     *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers all instruments on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation attempts by reason and outcome.",
		}, []string{"reason", "outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escalation_tick_duration_seconds",
			Help:      "Duration of escalation ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_ticks_skipped_total",
			Help:      "Ticks skipped because a previous tick or another replica was still running.",
		}),
		alertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert lifecycle transitions by target status.",
		}, []string{"status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Channel delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_fallbacks_total",
			Help:      "Fallback attempts by failed and fallback channel.",
		}, []string{"from", "to"}),
		queueEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_queue_entries_total",
			Help:      "Retry queue entries by outcome.",
		}, []string{"outcome"}),
		digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_digests_total",
			Help:      "Digest emails by outcome.",
		}, []string{"outcome"}),
		batchedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_batched_total",
			Help:      "Notifications folded into digests.",
		}),
		pendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_pending_batches",
			Help:      "Open digest windows.",
		}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response durations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}

	reg.MustRegister(
		m.escalations, m.tickDuration, m.ticksSkipped, m.alertTransitions,
		m.deliveries, m.fallbacks, m.queueEntries, m.digests, m.batchedItems, m.pendingBatches,
		m.requestCount, m.requestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Escalation(reason, outcome string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason, outcome).Inc()
}

func (m *Metrics) TickDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticksSkipped.Inc()
}

func (m *Metrics) AlertTransition(status string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) Delivery(channel string, ok bool) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome(ok)).Inc()
}

func (m *Metrics) Fallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

// QueueEntry counts enqueued, completed, retried and failed entries.
func (m *Metrics) QueueEntry(outcome string) {
	if m == nil {
		return
	}
	m.queueEntries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Digest(ok bool, items int) {
	if m == nil {
		return
	}
	m.digests.WithLabelValues(outcome(ok)).Inc()
	m.batchedItems.Add(float64(items))
}

func (m *Metrics) PendingBatches(n int) {
	if m == nil {
		return
	}
	m.pendingBatches.Set(float64(n))
}

// Middleware records request counts and durations labelled by chi route
// pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requestCount.WithLabelValues(path, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

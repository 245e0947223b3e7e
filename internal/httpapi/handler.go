package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/metrics"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/httpserver"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

// Engine drives the alert lifecycle. *escalation.Engine satisfies it.
type Engine interface {
	Raise(ctx context.Context, in domain.NewAlert) (domain.Alert, error)
	Acknowledge(ctx context.Context, alertID, actorID string) (domain.Alert, error)
	Resolve(ctx context.Context, alertID, actorID string) (domain.Alert, error)
	TriggerManualEscalation(ctx context.Context, alertID, actorID string) (domain.EscalationResult, error)
}

// Dispatcher sends notifications. *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, n domain.Notification) (domain.NotificationResult, error)
	SendToUsers(ctx context.Context, userIDs []string, tmpl domain.Notification) []async.Result[domain.NotificationResult]
	Flush(ctx context.Context) int
}

// AuditReader queries the audit trail. *audit.Reader satisfies it.
type AuditReader interface {
	Find(ctx context.Context, criteria audit.Criteria) ([]audit.Event, error)
	Verify(ctx context.Context, criteria audit.Criteria) error
}

// Subscriber streams hospital events. *eventbus.MemoryBus satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, hospitalID string) *eventbus.Subscription
}

// Handler serves the admin API.
type Handler struct {
	store      store.Store
	engine     Engine
	dispatcher Dispatcher
	audit      AuditReader
	events     Subscriber
	auth       Authorizer
	metrics    *metrics.Metrics
	checks     []httpserver.Check
	log        *slog.Logger
	now        func() time.Time
	keepAlive  time.Duration
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithAuthorizer guards /api. Without one every /api request is rejected.
func WithAuthorizer(a Authorizer) Option {
	return func(h *Handler) {
		if a != nil {
			h.auth = a
		}
	}
}

func WithAuditReader(r AuditReader) Option {
	return func(h *Handler) { h.audit = r }
}

func WithEvents(s Subscriber) Option {
	return func(h *Handler) { h.events = s }
}

// WithMetrics instruments every route and exposes /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithReadinessChecks are run by /health/ready.
func WithReadinessChecks(checks ...httpserver.Check) Option {
	return func(h *Handler) { h.checks = append(h.checks, checks...) }
}

// WithKeepAlive sets how often an idle event stream sends a comment line.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// New creates the admin API handler.
func New(st store.Store, e Engine, d Dispatcher, opts ...Option) *Handler {
	h := &Handler{
		store:      st,
		engine:     e,
		dispatcher: d,
		auth:       BearerToken(""),
		log:        slog.Default(),
		now:        time.Now,
		keepAlive:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("httpapi"))
	return h
}

// Router builds the route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)
	r.Use(h.logRequests)

	r.Get("/health/live", httpserver.HealthCheckHandler(h.log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(h.log, h.checks...))
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authorize)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.listAlerts)
			r.Post("/", h.raiseAlert)
			r.Route("/{alertID}", func(r chi.Router) {
				r.Get("/", h.getAlert)
				r.Get("/deliveries", h.listDeliveries)
				r.Post("/acknowledge", h.acknowledgeAlert)
				r.Post("/resolve", h.resolveAlert)
				r.Post("/escalate", h.escalateAlert)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", h.sendNotification)
			r.Post("/broadcast", h.broadcastNotification)
			r.Post("/flush", h.flushBatches)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Put("/", h.putUser)
			r.Get("/preferences", h.getPreferences)
			r.Put("/preferences", h.putPreferences)
		})

		r.Get("/audit", h.findAudit)
		r.Get("/audit/verify", h.verifyAudit)
		r.Get("/hospitals/{hospitalID}/events", h.streamEvents)
	})

	return r
}

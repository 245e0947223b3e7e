package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/escalation"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/httpapi"
	"github.com/wardwatch/wardwatch/internal/metrics"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

const token = "s3cret"

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (d *fakeDispatcher) Send(_ context.Context, n domain.Notification) (domain.NotificationResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return domain.NotificationResult{NotificationID: n.ID}, d.err
	}
	d.sent = append(d.sent, n)
	return domain.NotificationResult{NotificationID: n.ID, Success: true}, nil
}

func (d *fakeDispatcher) SendToUsers(ctx context.Context, ids []string, tmpl domain.Notification) []async.Result[domain.NotificationResult] {
	out := make([]async.Result[domain.NotificationResult], len(ids))
	for i, id := range ids {
		if id == "ghost" {
			out[i].Err = domain.ErrUserNotFound
			continue
		}
		n := tmpl
		n.ID = "n-" + id
		n.Recipient = domain.Recipient{UserID: id}
		out[i].Value, out[i].Err = d.Send(ctx, n)
	}
	return out
}

func (d *fakeDispatcher) Flush(context.Context) int { return 3 }

func (d *fakeDispatcher) notifications() []domain.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Notification(nil), d.sent...)
}

type fixture struct {
	router     http.Handler
	store      *store.MemoryStore
	engine     *escalation.Engine
	dispatcher *fakeDispatcher
	bus        *eventbus.MemoryBus
}

func newFixture(t *testing.T, opts ...httpapi.Option) *fixture {
	t.Helper()

	st := store.NewMemoryStore()
	storage := audit.NewMemoryStorage()
	bus := eventbus.NewMemoryBus(16)
	t.Cleanup(func() { _ = bus.Close() })
	now := func() time.Time { return t0 }

	e, err := escalation.New(st, nil,
		escalation.WithClock(now),
		escalation.WithLogger(logger.Nop()),
		escalation.WithPublisher(bus),
		escalation.WithAuditor(audit.NewLogger(storage)),
	)
	require.NoError(t, err)

	f := &fixture{store: st, engine: e, dispatcher: &fakeDispatcher{}, bus: bus}
	all := []httpapi.Option{
		httpapi.WithLogger(logger.Nop()),
		httpapi.WithClock(now),
		httpapi.WithAuthorizer(httpapi.BearerToken(token)),
		httpapi.WithAuditReader(audit.NewReader(storage, nil)),
		httpapi.WithEvents(bus),
		httpapi.WithMetrics(metrics.New()),
		httpapi.WithKeepAlive(20 * time.Millisecond),
	}
	f.router = httpapi.New(st, e, f.dispatcher, append(all, opts...)...).Router()
	return f
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f *fixture) seedStaff(t *testing.T) {
	t.Helper()
	for _, u := range []domain.User{
		{ID: "nurse-1", HospitalID: "h1", Role: domain.RoleNurse, OnDuty: true},
		{ID: "doctor-1", HospitalID: "h1", Role: domain.RoleDoctor, OnDuty: true},
	} {
		require.NoError(t, f.store.UpsertUser(context.Background(), u))
	}
}

func (f *fixture) raise(t *testing.T) domain.Alert {
	t.Helper()
	a, err := f.engine.Raise(context.Background(), domain.NewAlert{
		HospitalID: "h1", RoomNumber: "ICU-4", AlertType: "fall", UrgencyLevel: 3, CreatedBy: "nurse-1",
	})
	require.NoError(t, err)
	return a
}

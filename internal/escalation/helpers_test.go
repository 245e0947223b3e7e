package escalation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/escalation"
	"github.com/wardwatch/wardwatch/internal/eventbus"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/async"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder is a Notifier that keeps every notification it is handed.
type recorder struct {
	mu      sync.Mutex
	sent    []domain.Notification
	ctxErrs []error
	entered chan struct{}
	block   chan struct{}
}

func (r *recorder) SendMany(ctx context.Context, ns []domain.Notification) []async.Result[domain.NotificationResult] {
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, ns...)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())

	out := make([]async.Result[domain.NotificationResult], len(ns))
	for i, n := range ns {
		out[i].Value = domain.NotificationResult{NotificationID: n.ID, Success: true}
	}
	return out
}

func (r *recorder) notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.sent...)
}

// contextErrors lists ctx.Err() as seen by each SendMany call.
func (r *recorder) contextErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.ctxErrs...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.ctxErrs = nil
}

func recipientIDs(ns []domain.Notification) []string {
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.Recipient.UserID)
	}
	return ids
}

type fixture struct {
	e        *escalation.Engine
	store    store.Store
	mem      *store.MemoryStore
	clock    *clock
	notifier *recorder
	bus      *eventbus.MemoryBus
	audits   *audit.MemoryStorage
}

func newFixture(t *testing.T, opts ...escalation.Option) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	return newFixtureWithStore(t, mem, mem, opts...)
}

func newFixtureWithStore(t *testing.T, st store.Store, mem *store.MemoryStore, opts ...escalation.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:    st,
		mem:      mem,
		clock:    &clock{now: t0},
		notifier: &recorder{},
		bus:      eventbus.NewMemoryBus(64),
		audits:   audit.NewMemoryStorage(),
	}
	t.Cleanup(func() { _ = f.bus.Close() })

	all := []escalation.Option{
		escalation.WithClock(f.clock.Now),
		escalation.WithLogger(logger.Nop()),
		escalation.WithPublisher(f.bus),
		escalation.WithAuditor(audit.NewLogger(f.audits)),
	}
	e, err := escalation.New(st, f.notifier, append(all, opts...)...)
	require.NoError(t, err)
	f.e = e
	return f
}

// staff seeds hospital h1 with every role, on and off duty, plus a doctor
// working at another hospital.
func (f *fixture) staff(t *testing.T) {
	t.Helper()
	users := []domain.User{
		{ID: "nurse-on", HospitalID: "h1", Role: domain.RoleNurse, OnDuty: true, Phone: "+15550000001"},
		{ID: "nurse-off", HospitalID: "h1", Role: domain.RoleNurse},
		{ID: "doctor-on", HospitalID: "h1", Role: domain.RoleDoctor, OnDuty: true, Phone: "+15550000002"},
		{ID: "doctor-off", HospitalID: "h1", Role: domain.RoleDoctor, Phone: "+15550000003"},
		{ID: "attending-on", HospitalID: "h1", Role: domain.RoleAttending, OnDuty: true},
		{ID: "head-off", HospitalID: "h1", Role: domain.RoleDepartmentHead},
		{ID: "head-2-off", HospitalID: "h1", Role: domain.RoleDepartmentHead},
		{ID: "doctor-h2", HospitalID: "h2", Role: domain.RoleDoctor, OnDuty: true},
	}
	for _, u := range users {
		require.NoError(t, f.mem.UpsertUser(context.Background(), u))
	}
}

func (f *fixture) raise(t *testing.T) domain.Alert {
	t.Helper()
	a, err := f.e.Raise(context.Background(), domain.NewAlert{
		HospitalID:   "h1",
		RoomNumber:   "ICU-4",
		AlertType:    "fall",
		UrgencyLevel: 3,
		CreatedBy:    "nurse-on",
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) alert(t *testing.T, id string) domain.Alert {
	t.Helper()
	a, err := f.store.GetAlert(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) records(t *testing.T, alertID string) []domain.EscalationRecord {
	t.Helper()
	recs, err := f.store.ListEscalationRecords(context.Background(), alertID)
	require.NoError(t, err)
	return recs
}

func (f *fixture) actions() []string {
	var out []string
	for _, e := range f.audits.Events() {
		out = append(out, e.Action)
	}
	return out
}

var errBoom = errors.New("boom")

// faultyStore fails the tier update of one alert.
type faultyStore struct {
	*store.MemoryStore
	failAlert string
}

func (s *faultyStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(tx store.Tx) error {
		return fn(faultyTx{Tx: tx, failAlert: s.failAlert})
	})
}

type faultyTx struct {
	store.Tx
	failAlert string
}

func (tx faultyTx) UpdateAlertTierConditional(ctx context.Context, alertID string, fromTier int, upd domain.EscalationUpdate) (bool, error) {
	if alertID == tx.failAlert {
		return false, errBoom
	}
	return tx.Tx.UpdateAlertTierConditional(ctx, alertID, fromTier, upd)
}

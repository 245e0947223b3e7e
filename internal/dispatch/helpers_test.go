package dispatch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/store"
	"github.com/wardwatch/wardwatch/pkg/logger"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *clock { return &clock{now: at} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// channels records every adapter call and fails channels on demand.
type channels struct {
	mu     sync.Mutex
	emails []dispatch.EmailRequest
	sms    []dispatch.SMSRequest
	pushes []dispatch.PushRequest
	inApp  []dispatch.InAppRequest
	fails  map[domain.Channel]error
	panics map[domain.Channel]bool
}

func newChannels() *channels {
	return &channels{
		fails:  make(map[domain.Channel]error),
		panics: make(map[domain.Channel]bool),
	}
}

func (c *channels) fail(ch domain.Channel, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fails, ch)
		return
	}
	c.fails[ch] = err
}

func (c *channels) panicOn(ch domain.Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panics[ch] = true
}

func (c *channels) outcome(ch domain.Channel, n int) (dispatch.Receipt, error) {
	if c.panics[ch] {
		panic(fmt.Sprintf("%s adapter exploded", ch))
	}
	if err := c.fails[ch]; err != nil {
		return dispatch.Receipt{}, err
	}
	return dispatch.Receipt{MessageID: fmt.Sprintf("%s-%d", ch, n)}, nil
}

func (c *channels) count(ch domain.Channel) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch ch {
	case domain.ChannelEmail:
		return len(c.emails)
	case domain.ChannelSMS:
		return len(c.sms)
	case domain.ChannelPush:
		return len(c.pushes)
	case domain.ChannelInApp:
		return len(c.inApp)
	}
	return 0
}

func (c *channels) lastEmail() dispatch.EmailRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.emails) == 0 {
		return dispatch.EmailRequest{}
	}
	return c.emails[len(c.emails)-1]
}

func (c *channels) options() []dispatch.Option {
	return []dispatch.Option{
		dispatch.WithEmail(dispatch.EmailSenderFunc(func(_ context.Context, req dispatch.EmailRequest) (dispatch.Receipt, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.emails = append(c.emails, req)
			return c.outcome(domain.ChannelEmail, len(c.emails))
		})),
		dispatch.WithSMS(dispatch.SMSSenderFunc(func(_ context.Context, req dispatch.SMSRequest) (dispatch.Receipt, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.sms = append(c.sms, req)
			return c.outcome(domain.ChannelSMS, len(c.sms))
		})),
		dispatch.WithPush(dispatch.PushSenderFunc(func(_ context.Context, req dispatch.PushRequest) (dispatch.Receipt, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pushes = append(c.pushes, req)
			return c.outcome(domain.ChannelPush, len(c.pushes))
		})),
		dispatch.WithInApp(dispatch.InAppPublisherFunc(func(_ context.Context, req dispatch.InAppRequest) (dispatch.Receipt, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.inApp = append(c.inApp, req)
			return c.outcome(domain.ChannelInApp, len(c.inApp))
		})),
	}
}

type fixture struct {
	d      *dispatch.Dispatcher
	store  *store.MemoryStore
	ch     *channels
	clock  *clock
	audits *audit.MemoryStorage
}

func newFixture(t *testing.T, opts ...dispatch.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:  store.NewMemoryStore(),
		ch:     newChannels(),
		clock:  newClock(t0),
		audits: audit.NewMemoryStorage(),
	}

	all := append(f.ch.options(),
		dispatch.WithClock(f.clock.Now),
		dispatch.WithLogger(logger.Nop()),
		dispatch.WithAuditor(audit.NewLogger(f.audits)),
		dispatch.WithBatchWindow(time.Hour),
	)
	f.d = dispatch.New(f.store, append(all, opts...)...)
	return f
}

func (f *fixture) user(t *testing.T, u domain.User, prefs *domain.Preferences) {
	t.Helper()
	ctx := context.Background()
	if u.HospitalID == "" {
		u.HospitalID = "h1"
	}
	require.NoError(t, f.store.UpsertUser(ctx, u))
	if prefs != nil {
		require.NoError(t, f.store.SetUserPreferences(ctx, u.ID, *prefs))
	}
}

func (f *fixture) logs(t *testing.T, filter store.DeliveryLogFilter) []domain.DeliveryLog {
	t.Helper()
	logs, err := f.store.ListDeliveryLogs(context.Background(), filter)
	require.NoError(t, err)
	return logs
}

func (f *fixture) actions() []string {
	var out []string
	for _, e := range f.audits.Events() {
		out = append(out, e.Action)
	}
	return out
}

func reachableUser(id string) domain.User {
	return domain.User{
		ID:         id,
		Role:       domain.RoleDoctor,
		Name:       "Dr " + id,
		Email:      id + "@ward.example",
		Phone:      "+15550100" + fmt.Sprintf("%03d", len(id)),
		OnDuty:     true,
		PushTokens: []string{"tok-" + id},
	}
}

func notification(userID string, typ domain.NotificationType, p domain.Priority) domain.Notification {
	return domain.Notification{
		ID:        "n-" + userID + "-" + string(typ) + "-" + p.String(),
		Type:      typ,
		Recipient: domain.Recipient{UserID: userID},
		Priority:  p,
		Data: map[string]any{
			dispatch.DataRoomNumber: "12",
			dispatch.DataAlertType:  "fall_risk",
		},
	}
}

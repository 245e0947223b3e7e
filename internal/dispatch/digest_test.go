package dispatch_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
	"github.com/wardwatch/wardwatch/internal/dispatch"
	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/store"
)

func TestBatching_LowPriorityMergedIntoOneDigest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, dispatch.WithBatchWindow(100*time.Millisecond))
	f.user(t, reachableUser("u1"), nil)

	for i := range 3 {
		n := notification("u1", domain.TypeShiftReminder, domain.PriorityLow)
		n.ID = fmt.Sprintf("low-%d", i)
		n.Data = map[string]any{dispatch.DataMessage: fmt.Sprintf("Reminder %d", i)}

		res, err := f.d.Send(ctx, n)
		require.NoError(t, err)
		assert.True(t, res.Batched)
		assert.True(t, res.Success)
		assert.Empty(t, res.Results)
	}

	require.Eventually(t, func() bool {
		return len(f.logs(t, store.DeliveryLogFilter{UserID: "u1", Status: domain.DeliveryDelivered})) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, f.ch.count(domain.ChannelEmail))
	email := f.ch.lastEmail()
	assert.Equal(t, "Notification summary (3)", email.Subject)
	for i := range 3 {
		assert.Contains(t, email.HTML, fmt.Sprintf("Reminder %d", i))
	}

	for _, l := range f.logs(t, store.DeliveryLogFilter{UserID: "u1", Status: domain.DeliveryDelivered}) {
		assert.Equal(t, "email-1", l.MessageID)
	}
	assert.Empty(t, f.logs(t, store.DeliveryLogFilter{UserID: "u1", Status: domain.DeliveryBatched}))
	assert.Zero(t, f.ch.count(domain.ChannelInApp))
	assert.Zero(t, f.d.PendingBatches())
	assert.Contains(t, f.actions(), audit.ActionDigestSent)
}

func TestBatching_MediumFollowsFrequencyPreference(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, reachableUser("u1"), &domain.Preferences{
		Frequency: map[domain.NotificationType]domain.Frequency{
			domain.TypeShiftReminder: domain.FrequencyBatch,
		},
	})

	batched, err := f.d.Send(ctx, notification("u1", domain.TypeShiftReminder, domain.PriorityMedium))
	require.NoError(t, err)
	assert.True(t, batched.Batched)

	immediate, err := f.d.Send(ctx, notification("u1", domain.TypeAlertCreated, domain.PriorityMedium))
	require.NoError(t, err)
	assert.False(t, immediate.Batched)
	assert.True(t, immediate.Success)

	high, err := f.d.Send(ctx, notification("u1", domain.TypeShiftReminder, domain.PriorityHigh))
	require.NoError(t, err)
	assert.False(t, high.Batched)

	emailsBefore := f.ch.count(domain.ChannelEmail)
	assert.Equal(t, 1, f.d.PendingBatches())
	assert.Equal(t, 1, f.d.Flush(ctx))
	assert.Equal(t, emailsBefore+1, f.ch.count(domain.ChannelEmail))
	assert.Zero(t, f.d.PendingBatches())
}

func TestBatching_WindowsAreKeyedByUserAndType(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, reachableUser("u1"), nil)
	f.user(t, reachableUser("u2"), nil)

	send := func(user string, typ domain.NotificationType, id string) {
		n := notification(user, typ, domain.PriorityLow)
		n.ID = id
		res, err := f.d.Send(ctx, n)
		require.NoError(t, err)
		require.True(t, res.Batched)
	}
	send("u1", domain.TypeShiftReminder, "a")
	send("u1", domain.TypeShiftReminder, "b")
	send("u1", domain.TypeSystemNotice, "c")
	send("u2", domain.TypeShiftReminder, "d")

	assert.Equal(t, 3, f.d.PendingBatches())
	assert.Equal(t, 3, f.d.Flush(ctx))
	assert.Equal(t, 3, f.ch.count(domain.ChannelEmail))
	assert.Len(t, f.logs(t, store.DeliveryLogFilter{Status: domain.DeliveryDelivered}), 4)
}

func TestBatching_RecipientWithoutEmailIsSentImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.user(t, domain.User{ID: "u1", Role: domain.RoleNurse, PushTokens: []string{"tok"}}, nil)

	res, err := f.d.Send(context.Background(), notification("u1", domain.TypeAlertCreated, domain.PriorityLow))
	require.NoError(t, err)
	assert.False(t, res.Batched)
	assert.True(t, res.Success)
	assert.Zero(t, f.d.PendingBatches())
}

func TestBatching_FailedDigestLeavesRowsBatched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, reachableUser("u1"), nil)
	f.ch.fail(domain.ChannelEmail, assert.AnError)

	_, err := f.d.Send(ctx, notification("u1", domain.TypeShiftReminder, domain.PriorityLow))
	require.NoError(t, err)
	require.Equal(t, 1, f.d.Flush(ctx))

	assert.Len(t, f.logs(t, store.DeliveryLogFilter{UserID: "u1", Status: domain.DeliveryBatched}), 1)
	assert.Empty(t, f.logs(t, store.DeliveryLogFilter{UserID: "u1", Status: domain.DeliveryDelivered}))
}

func TestStop_FlushesOpenWindows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, reachableUser("u1"), nil)

	require.NoError(t, f.d.Start(ctx))
	require.ErrorIs(t, f.d.Start(ctx), dispatch.ErrDispatcherStarted)

	res, err := f.d.Send(ctx, notification("u1", domain.TypeShiftReminder, domain.PriorityLow))
	require.NoError(t, err)
	require.True(t, res.Batched)

	require.NoError(t, f.d.Stop())
	assert.Equal(t, 1, f.ch.count(domain.ChannelEmail))
	require.ErrorIs(t, f.d.Stop(), dispatch.ErrDispatcherNotStarted)

	// After shutdown nothing is parked.
	n := notification("u1", domain.TypeShiftReminder, domain.PriorityLow)
	n.ID = "after-stop"
	res, err = f.d.Send(ctx, n)
	require.NoError(t, err)
	assert.False(t, res.Batched)
	assert.True(t, res.Success)
}

package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/eventbus"
)

func escalated(hospitalID, alertID string) eventbus.Event {
	return eventbus.NewEvent(eventbus.AlertEscalated, hospitalID, alertID,
		map[string]any{"toTier": 2}, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func TestMemoryBus_Publish(t *testing.T) {
	t.Parallel()

	t.Run("delivers only to subscribers of the event hospital", func(t *testing.T) {
		t.Parallel()
		bus := eventbus.NewMemoryBus(4)
		defer bus.Close()

		ctx := context.Background()
		h1 := bus.Subscribe(ctx, "h1")
		h2 := bus.Subscribe(ctx, "h2")
		all := bus.Subscribe(ctx, "")

		require.NoError(t, bus.Publish(ctx, escalated("h1", "a1")))

		select {
		case ev := <-h1.Events():
			assert.Equal(t, "a1", ev.AlertID)
			assert.Equal(t, eventbus.AlertEscalated, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("h1 subscriber did not receive the event")
		}

		select {
		case ev := <-all.Events():
			assert.Equal(t, "h1", ev.HospitalID)
		case <-time.After(time.Second):
			t.Fatal("wildcard subscriber did not receive the event")
		}

		assert.Empty(t, h2.Events())
	})

	t.Run("rejects events without hospital", func(t *testing.T) {
		t.Parallel()
		bus := eventbus.NewMemoryBus(1)
		defer bus.Close()

		err := bus.Publish(context.Background(), eventbus.Event{Type: eventbus.AlertRaised})
		assert.ErrorIs(t, err, eventbus.ErrMissingHospital)
	})

	t.Run("drops slow subscribers without blocking", func(t *testing.T) {
		t.Parallel()
		bus := eventbus.NewMemoryBus(1)
		defer bus.Close()

		ctx := context.Background()
		slow := bus.Subscribe(ctx, "h1")

		require.NoError(t, bus.Publish(ctx, escalated("h1", "a1")))
		require.NoError(t, bus.Publish(ctx, escalated("h1", "a2")))

		require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

		ev, ok := <-slow.Events()
		require.True(t, ok)
		assert.Equal(t, "a1", ev.AlertID)
		_, ok = <-slow.Events()
		assert.False(t, ok)
	})

	t.Run("closed bus refuses publish and hands out closed subscriptions", func(t *testing.T) {
		t.Parallel()
		bus := eventbus.NewMemoryBus(1)
		require.NoError(t, bus.Close())
		require.NoError(t, bus.Close())

		assert.ErrorIs(t, bus.Publish(context.Background(), escalated("h1", "a1")), eventbus.ErrBusClosed)

		sub := bus.Subscribe(context.Background(), "h1")
		_, ok := <-sub.Events()
		assert.False(t, ok)
	})
}

func TestMemoryBus_SubscribeContextCancel(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewMemoryBus(1)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := bus.Subscribe(ctx, "h1")
	require.Equal(t, 1, bus.Subscribers())

	cancel()

	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestMemoryBus_CloseWithLiveContexts(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewMemoryBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Subscribe(ctx, "h1")

	done := make(chan struct{})
	go func() {
		_ = bus.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a subscription whose context is still live")
	}
}

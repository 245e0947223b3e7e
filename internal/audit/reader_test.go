package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/audit"
)

func seeded(t *testing.T) (*audit.MemoryStorage, *audit.Logger) {
	t.Helper()
	storage := audit.NewMemoryStorage()
	l := audit.NewLogger(storage, audit.WithClock(fixedClock()))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, audit.ActionAlertRaised, audit.WithHospital("h1"), audit.WithResource("alert", "a1")))
	require.NoError(t, l.Log(ctx, audit.ActionAlertEscalated, audit.WithHospital("h1"), audit.WithResource("alert", "a1")))
	require.NoError(t, l.Log(ctx, audit.ActionAlertRaised, audit.WithHospital("h2"), audit.WithResource("alert", "a2")))
	require.NoError(t, l.Log(ctx, audit.ActionAlertResolved, audit.WithHospital("h1"), audit.WithResource("alert", "a1")))
	return storage, l
}

func TestReader_Find(t *testing.T) {
	t.Parallel()

	storage, _ := seeded(t)
	r := audit.NewReader(storage, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		criteria audit.Criteria
		want     []string
	}{
		{"by resource", audit.Criteria{Resource: "alert", ResourceID: "a1"},
			[]string{audit.ActionAlertRaised, audit.ActionAlertEscalated, audit.ActionAlertResolved}},
		{"by hospital and action", audit.Criteria{HospitalID: "h2", Action: audit.ActionAlertRaised},
			[]string{audit.ActionAlertRaised}},
		{"limit and offset", audit.Criteria{HospitalID: "h1", Limit: 1, Offset: 1},
			[]string{audit.ActionAlertEscalated}},
		{"no match", audit.Criteria{ActorID: "nobody"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := r.Find(ctx, tt.criteria)
			require.NoError(t, err)
			var got []string
			for _, e := range events {
				got = append(got, e.Action)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_FindTimeWindow(t *testing.T) {
	t.Parallel()

	storage, _ := seeded(t)
	events := storage.Events()
	r := audit.NewReader(storage, nil)

	got, err := r.Find(context.Background(), audit.Criteria{
		StartTime: events[1].CreatedAt,
		EndTime:   events[3].CreatedAt,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events[1].ID, got[0].ID)
	assert.Equal(t, events[2].ID, got[1].ID)
}

func TestReader_Count(t *testing.T) {
	t.Parallel()

	storage, _ := seeded(t)
	r := audit.NewReader(storage, nil)

	n, err := r.Count(context.Background(), audit.Criteria{HospitalID: "h1", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestReader_Verify(t *testing.T) {
	t.Parallel()

	t.Run("intact chain", func(t *testing.T) {
		t.Parallel()
		storage, _ := seeded(t)
		assert.NoError(t, audit.NewReader(storage, nil).Verify(context.Background(), audit.Criteria{}))
	})

	t.Run("detects an edited event", func(t *testing.T) {
		t.Parallel()
		storage, _ := seeded(t)
		events := storage.Events()
		events[1].ResourceID = "a9"

		tampered := audit.NewMemoryStorage()
		for _, e := range events {
			require.NoError(t, tampered.Store(context.Background(), e))
		}
		err := audit.NewReader(tampered, nil).Verify(context.Background(), audit.Criteria{})
		assert.ErrorIs(t, err, audit.ErrChainBroken)
	})

	t.Run("detects a removed event", func(t *testing.T) {
		t.Parallel()
		storage, _ := seeded(t)
		events := storage.Events()

		tampered := audit.NewMemoryStorage()
		for i, e := range events {
			if i == 2 {
				continue
			}
			require.NoError(t, tampered.Store(context.Background(), e))
		}
		err := audit.NewReader(tampered, nil).Verify(context.Background(), audit.Criteria{})
		assert.ErrorIs(t, err, audit.ErrChainBroken)
	})

	t.Run("window may start mid-chain", func(t *testing.T) {
		t.Parallel()
		storage, _ := seeded(t)
		events := storage.Events()
		err := audit.NewReader(storage, nil).Verify(context.Background(), audit.Criteria{
			StartTime: events[2].CreatedAt,
			EndTime:   events[3].CreatedAt.Add(time.Second),
		})
		assert.NoError(t, err)
	})
}

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/internal/store"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *store.PostgresStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock, store.NewPostgresStore(db)
}

var alertCols = []string{
	"id", "hospital_id", "room_number", "alert_type", "urgency_level", "description", "status",
	"escalation_level", "next_escalation_at", "created_by", "created_at", "updated_at",
	"acknowledged_by", "acknowledged_at", "resolved_by", "resolved_at",
}

func TestPostgresStore_CreateAlert(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	a := activeAlert("a1", 1, t0.Add(5*time.Minute))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WithArgs("a1", "h1", "12", "fall", 3, "", "active", 1, t0.Add(5*time.Minute), "u-nurse", t0, t0, "", nil, "", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateAlert(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAlert_Duplicate(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alerts")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateAlert(context.Background(), activeAlert("a1", 1, t0))
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestPostgresStore_GetAlert(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	next := t0.Add(5 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM alerts WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow("a1", "h1", "12", "fall", 3, "", "active", 1, next, "u-nurse", t0, t0, "", nil, "", nil))

	a, err := s.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertActive, a.Status)
	require.NotNil(t, a.NextEscalationAt)
	assert.Equal(t, next, *a.NextEscalationAt)
	assert.Nil(t, a.AcknowledgedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAlert_NotFound(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM alerts WHERE id = $1")).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetAlert(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrAlertNotFound)
}

func TestPostgresStore_GetAlertsDueForEscalation(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	past := t0.Add(-time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'active' AND next_escalation_at < $1 AND escalation_level < $2")).
		WithArgs(t0, 4, 100).
		WillReturnRows(sqlmock.NewRows(alertCols).
			AddRow("a1", "h1", "12", "fall", 3, "", "active", 1, past, "u", t0, t0, "", nil, "", nil).
			AddRow("a2", "h1", "14", "fall", 2, "", "active", 3, past, "u", t0, t0, "", nil, "", nil))

	due, err := s.GetAlertsDueForEscalation(context.Background(), t0, 4, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, 3, due[1].EscalationLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_Escalation(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	ctx := context.Background()
	next := t0.Add(10 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts\n\t\tSET escalation_level = $3")).
		WithArgs("a1", 1, 2, next, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alert_escalations")).
		WithArgs("r1", "a1", 1, 2, "nurse", "doctor", "timeout", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("h1", "doctor", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hospital_id", "role", "name", "email", "phone", "on_duty", "push_tokens"}).
			AddRow("d1", "h1", "doctor", "Dr. Grey", "grey@example.com", "+14155550100", true, []byte(`["tok-1"]`)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_logs")).
		WithArgs("l1", "", "a1", "d1", "alert_escalated", "", "pending", "", "", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.InTx(ctx, func(tx store.Tx) error {
		ok, err := tx.UpdateAlertTierConditional(ctx, "a1", 1, domain.EscalationUpdate{Level: 2, NextEscalationAt: &next, UpdatedAt: t0})
		require.NoError(t, err)
		require.True(t, ok)

		if err := tx.InsertEscalationRecord(ctx, domain.EscalationRecord{
			ID: "r1", AlertID: "a1", FromTier: 1, ToTier: 2,
			FromRole: domain.RoleNurse, ToRole: domain.RoleDoctor, Reason: domain.ReasonTimeout, EscalatedAt: t0,
		}); err != nil {
			return err
		}

		users, err := tx.GetUsersByRole(ctx, store.RecipientQuery{HospitalID: "h1", Roles: []domain.Role{domain.RoleDoctor}, OnDutyOnly: true})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, []string{"tok-1"}, users[0].PushTokens)

		return tx.InsertDeliveryLogs(ctx, domain.DeliveryLog{
			ID: "l1", AlertID: "a1", UserID: "d1", Type: domain.TypeAlertEscalated, Status: domain.DeliveryPending, CreatedAt: t0,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_LostRace(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var won bool
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		var err error
		won, err = tx.UpdateAlertTierConditional(ctx, "a1", 1, domain.EscalationUpdate{Level: 2, UpdatedAt: t0})
		return err
	}))
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_RollbackOnError(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE alerts")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO alert_escalations")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.UpdateAlertTierConditional(ctx, "a1", 1, domain.EscalationUpdate{Level: 2}); err != nil {
			return err
		}
		return tx.InsertEscalationRecord(ctx, domain.EscalationRecord{ID: "r1", AlertID: "a1"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAlertStatusConditional(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("a1", "active", "acknowledged", "u-doc", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		ok, err := tx.UpdateAlertStatusConditional(ctx, "a1", domain.AlertActive, domain.AlertAcknowledged, "u-doc", t0)
		assert.True(t, ok)
		return err
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUserPreferences(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM users")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow(nil))
	prefs, err := s.GetUserPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, prefs)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM users")).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).
			AddRow([]byte(`{"frequency":{"shift_reminder":"batch"},"quietHours":{"start":"22:00","end":"06:00","timezone":"UTC"}}`)))
	prefs, err = s.GetUserPreferences(ctx, "u2")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, domain.FrequencyBatch, prefs.FrequencyFor(domain.TypeShiftReminder))
	assert.Equal(t, "06:00", prefs.QuietHours.End)

	// Unknown users have no preferences, same as the memory store.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM users")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	prefs, err = s.GetUserPreferences(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, prefs)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT preferences FROM users")).
		WithArgs("u3").
		WillReturnError(assert.AnError)
	_, err = s.GetUserPreferences(ctx, "u3")
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

var queueCols = []string{
	"id", "notification_id", "user_id", "channel", "type", "priority", "payload", "status",
	"attempts", "max_attempts", "next_attempt_at", "scheduled_for", "last_error", "locked_until", "created_at", "updated_at",
}

func TestPostgresStore_ClaimDueQueueEntries(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)
	lock := t0.Add(5 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("OR (status = 'processing' AND locked_until <= $1)")).
		WithArgs(t0, lock, 10).
		WillReturnRows(sqlmock.NewRows(queueCols).
			AddRow("q2", "n2", "u1", "sms", "alert_escalated", "critical", []byte(`{}`), "processing", 1, 5, t0, nil, "boom", lock, t0, t0).
			AddRow("q1", "n1", "u1", "sms", "alert_escalated", "critical", []byte(`{}`), "processing", 0, 5, t0.Add(-time.Minute), nil, "", lock, t0, t0))

	entries, err := s.ClaimDueQueueEntries(context.Background(), t0, 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q1", entries[0].ID)
	assert.Equal(t, domain.PriorityCritical, entries[0].Priority)
	assert.Equal(t, domain.QueueProcessing, entries[1].Status)
	require.NotNil(t, entries[0].LockedUntil)
	assert.Equal(t, lock, *entries[0].LockedUntil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateQueueEntry_ReleasesLock(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("locked_until = $6")).
		WithArgs("q1", "completed", 1, t0, "", nil, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpdateQueueEntry(context.Background(), domain.QueueEntry{
		ID: "q1", Status: domain.QueueCompleted, Attempts: 1, NextAttemptAt: t0, UpdatedAt: t0,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateQueueEntry_NotFound(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_queue")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateQueueEntry(context.Background(), domain.QueueEntry{ID: "q9", Status: domain.QueueFailed})
	assert.ErrorIs(t, err, domain.ErrQueueEntryNotFound)
}

func TestPostgresStore_SettlePendingDeliveryLogs(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_logs SET status = $2")).
		WithArgs("n1", "sent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := s.SettlePendingDeliveryLogs(context.Background(), "n1", domain.DeliverySent)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkDeliveryLogsDelivered(t *testing.T) {
	t.Parallel()
	_, mock, s := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_logs SET status = 'delivered'")).
		WithArgs("n1,n2,n3", "digest-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.MarkDeliveryLogsDelivered(context.Background(), []string{"n1", "n2", "n3"}, "digest-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.MarkDeliveryLogsDelivered(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

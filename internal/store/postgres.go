package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/pkg/pg"
)

// defaultBatch caps unbounded list queries.
const defaultBatch = 500

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps db, typically obtained from pg.OpenDB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const alertColumns = `id, hospital_id, room_number, alert_type, urgency_level, description, status,
	escalation_level, next_escalation_at, created_by, created_at, updated_at,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at`

func scanAlert(row scanner) (domain.Alert, error) {
	var a domain.Alert
	var status string
	err := row.Scan(
		&a.ID, &a.HospitalID, &a.RoomNumber, &a.AlertType, &a.UrgencyLevel, &a.Description, &status,
		&a.EscalationLevel, &a.NextEscalationAt, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedBy, &a.ResolvedAt,
	)
	a.Status = domain.AlertStatus(status)
	return a, err
}

func (s *PostgresStore) CreateAlert(ctx context.Context, a domain.Alert) error {
	if a.ID == "" {
		return ErrNilAlertID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.HospitalID, a.RoomNumber, a.AlertType, a.UrgencyLevel, a.Description, string(a.Status),
		a.EscalationLevel, a.NextEscalationAt, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
		a.AcknowledgedBy, a.AcknowledgedAt, a.ResolvedBy, a.ResolvedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicateID, err)
	}
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (domain.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return domain.Alert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, f AlertFilter) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE ($1 = '' OR hospital_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		f.HospitalID, string(f.Status), batchLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return collect(rows, scanAlert)
}

func (s *PostgresStore) GetAlertsDueForEscalation(ctx context.Context, now time.Time, maxTier, limit int) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts
		WHERE status = 'active' AND next_escalation_at < $1 AND escalation_level < $2
		ORDER BY next_escalation_at
		LIMIT $3`,
		now, maxTier, batchLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("select due alerts: %w", err)
	}
	return collect(rows, scanAlert)
}

func scanRecord(row scanner) (domain.EscalationRecord, error) {
	var r domain.EscalationRecord
	var from, to, reason string
	err := row.Scan(&r.ID, &r.AlertID, &r.FromTier, &r.ToTier, &from, &to, &reason, &r.EscalatedAt)
	r.FromRole, r.ToRole, r.Reason = domain.Role(from), domain.Role(to), domain.EscalationReason(reason)
	return r, err
}

func (s *PostgresStore) ListEscalationRecords(ctx context.Context, alertID string) ([]domain.EscalationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, alert_id, from_tier, to_tier, from_role, to_role, reason, escalated_at
		FROM alert_escalations WHERE alert_id = $1 ORDER BY to_tier`, alertID)
	if err != nil {
		return nil, fmt.Errorf("list escalation records: %w", err)
	}
	return collect(rows, scanRecord)
}

const userColumns = `id, hospital_id, role, name, email, phone, on_duty, push_tokens`

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	var role string
	var tokens []byte
	if err := row.Scan(&u.ID, &u.HospitalID, &role, &u.Name, &u.Email, &u.Phone, &u.OnDuty, &tokens); err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	if len(tokens) > 0 {
		if err := json.Unmarshal(tokens, &u.PushTokens); err != nil {
			return u, fmt.Errorf("decode push tokens: %w", err)
		}
	}
	return u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u domain.User) error {
	if u.ID == "" {
		return ErrNilUserID
	}
	tokens, err := json.Marshal(nonNil(u.PushTokens))
	if err != nil {
		return fmt.Errorf("encode push tokens: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			hospital_id = EXCLUDED.hospital_id, role = EXCLUDED.role, name = EXCLUDED.name,
			email = EXCLUDED.email, phone = EXCLUDED.phone, on_duty = EXCLUDED.on_duty,
			push_tokens = EXCLUDED.push_tokens`,
		u.ID, u.HospitalID, string(u.Role), u.Name, u.Email, u.Phone, u.OnDuty, tokens,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUsersByRole(ctx context.Context, q RecipientQuery) ([]domain.User, error) {
	return usersByRole(ctx, s.db, q)
}

func usersByRole(ctx context.Context, db querier, q RecipientQuery) ([]domain.User, error) {
	roles := make([]string, len(q.Roles))
	for i, r := range q.Roles {
		roles[i] = string(r)
	}
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users
		WHERE hospital_id = $1 AND role = ANY(string_to_array($2, ',')) AND (NOT $3 OR on_duty)
		ORDER BY id`,
		q.HospitalID, strings.Join(roles, ","), q.OnDutyOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select users by role: %w", err)
	}
	return collect(rows, scanUser)
}

func (s *PostgresStore) GetUserPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT preferences FROM users WHERE id = $1`, userID).Scan(&raw)
	if err != nil && !pg.IsNotFoundError(err) {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var p domain.Preferences
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SetUserPreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET preferences = $2 WHERE id = $1`, userID, raw)
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return nil
}

func (s *PostgresStore) InsertDeliveryLogs(ctx context.Context, logs ...domain.DeliveryLog) error {
	return insertDeliveryLogs(ctx, s.db, logs)
}

func insertDeliveryLogs(ctx context.Context, db querier, logs []domain.DeliveryLog) error {
	for _, l := range logs {
		_, err := db.ExecContext(ctx, `INSERT INTO notification_logs
			(id, notification_id, alert_id, user_id, type, channel, status, message_id, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			l.ID, l.NotificationID, l.AlertID, l.UserID, string(l.Type), string(l.Channel),
			string(l.Status), l.MessageID, l.Error, l.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert delivery log: %w", err)
		}
	}
	return nil
}

func scanDeliveryLog(row scanner) (domain.DeliveryLog, error) {
	var l domain.DeliveryLog
	var typ, channel, status string
	err := row.Scan(&l.ID, &l.NotificationID, &l.AlertID, &l.UserID, &typ, &channel, &status, &l.MessageID, &l.Error, &l.CreatedAt)
	l.Type, l.Channel, l.Status = domain.NotificationType(typ), domain.Channel(channel), domain.DeliveryStatus(status)
	return l, err
}

func (s *PostgresStore) ListDeliveryLogs(ctx context.Context, f DeliveryLogFilter) ([]domain.DeliveryLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, notification_id, alert_id, user_id, type, channel, status, message_id, error, created_at
		FROM notification_logs
		WHERE ($1 = '' OR alert_id = $1) AND ($2 = '' OR user_id = $2)
			AND ($3 = '' OR notification_id = $3) AND ($4 = '' OR status = $4)
		ORDER BY created_at
		LIMIT $5`,
		f.AlertID, f.UserID, f.NotificationID, string(f.Status), batchLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	return collect(rows, scanDeliveryLog)
}

func (s *PostgresStore) MarkDeliveryLogsDelivered(ctx context.Context, notificationIDs []string, messageID string) (int, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notification_logs SET status = 'delivered', message_id = $2
		WHERE status = 'batched' AND notification_id = ANY(string_to_array($1, ','))`,
		strings.Join(notificationIDs, ","), messageID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) SettlePendingDeliveryLogs(ctx context.Context, notificationID string, status domain.DeliveryStatus) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notification_logs SET status = $2
		WHERE status = 'pending' AND notification_id = $1`,
		notificationID, string(status),
	)
	if err != nil {
		return 0, fmt.Errorf("settle pending delivery logs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// InTx runs fn inside a database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return pg.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(&postgresTx{q: tx})
	})
}

type postgresTx struct {
	q querier
}

func (tx *postgresTx) UpdateAlertTierConditional(ctx context.Context, alertID string, fromTier int, upd domain.EscalationUpdate) (bool, error) {
	res, err := tx.q.ExecContext(ctx, `UPDATE alerts
		SET escalation_level = $3, next_escalation_at = $4, updated_at = $5
		WHERE id = $1 AND escalation_level = $2 AND status = 'active'`,
		alertID, fromTier, upd.Level, upd.NextEscalationAt, upd.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update alert tier: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (tx *postgresTx) UpdateAlertStatusConditional(ctx context.Context, alertID string, from, to domain.AlertStatus, actor string, at time.Time) (bool, error) {
	res, err := tx.q.ExecContext(ctx, `UPDATE alerts SET
			status = $3::text,
			next_escalation_at = NULL,
			updated_at = $5::timestamptz,
			acknowledged_by = CASE WHEN $3::text = 'acknowledged' THEN $4::text ELSE acknowledged_by END,
			acknowledged_at = CASE WHEN $3::text = 'acknowledged' THEN $5::timestamptz ELSE acknowledged_at END,
			resolved_by = CASE WHEN $3::text = 'resolved' THEN $4::text ELSE resolved_by END,
			resolved_at = CASE WHEN $3::text = 'resolved' THEN $5::timestamptz ELSE resolved_at END
		WHERE id = $1 AND status = $2`,
		alertID, string(from), string(to), actor, at,
	)
	if err != nil {
		return false, fmt.Errorf("update alert status: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (tx *postgresTx) InsertEscalationRecord(ctx context.Context, r domain.EscalationRecord) error {
	_, err := tx.q.ExecContext(ctx, `INSERT INTO alert_escalations
		(id, alert_id, from_tier, to_tier, from_role, to_role, reason, escalated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.AlertID, r.FromTier, r.ToTier, string(r.FromRole), string(r.ToRole), string(r.Reason), r.EscalatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicateID, err)
	}
	if err != nil {
		return fmt.Errorf("insert escalation record: %w", err)
	}
	return nil
}

func (tx *postgresTx) GetUsersByRole(ctx context.Context, q RecipientQuery) ([]domain.User, error) {
	return usersByRole(ctx, tx.q, q)
}

func (tx *postgresTx) InsertDeliveryLogs(ctx context.Context, logs ...domain.DeliveryLog) error {
	return insertDeliveryLogs(ctx, tx.q, logs)
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func batchLimit(limit int) int {
	if limit <= 0 {
		return defaultBatch
	}
	return limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

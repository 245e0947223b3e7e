package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
	"github.com/wardwatch/wardwatch/pkg/pg"
)

const queueColumns = `id, notification_id, user_id, channel, type, priority, payload, status,
	attempts, max_attempts, next_attempt_at, scheduled_for, last_error, locked_until, created_at, updated_at`

func scanQueueEntry(row scanner) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var channel, typ, priority, status string
	var payload []byte
	err := row.Scan(
		&e.ID, &e.NotificationID, &e.UserID, &channel, &typ, &priority, &payload, &status,
		&e.Attempts, &e.MaxAttempts, &e.NextAttemptAt, &e.ScheduledFor, &e.LastError, &e.LockedUntil, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return e, err
	}
	e.Channel, e.Type, e.Status = domain.Channel(channel), domain.NotificationType(typ), domain.QueueStatus(status)
	e.Payload = payload
	if e.Priority, err = domain.ParsePriority(priority); err != nil {
		return e, err
	}
	return e, nil
}

func (s *PostgresStore) EnqueueNotification(ctx context.Context, e domain.QueueEntry) error {
	if e.ID == "" {
		return ErrQueueEntryID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO notification_queue (`+queueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.NotificationID, e.UserID, string(e.Channel), string(e.Type), e.Priority.String(), []byte(e.Payload),
		string(e.Status), e.Attempts, e.MaxAttempts, e.NextAttemptAt, e.ScheduledFor, e.LastError, e.LockedUntil, e.CreatedAt, e.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicateID, err)
	}
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQueueEntry(ctx context.Context, id string) (domain.QueueEntry, error) {
	e, err := scanQueueEntry(s.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM notification_queue WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return domain.QueueEntry{}, fmt.Errorf("%w: %s", domain.ErrQueueEntryNotFound, id)
	}
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}

// ClaimDueQueueEntries uses SKIP LOCKED so concurrent workers never claim the
// same entry. Processing rows whose lock ran out are taken over.
func (s *PostgresStore) ClaimDueQueueEntries(ctx context.Context, now time.Time, lockFor time.Duration, limit int) ([]domain.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `UPDATE notification_queue
		SET status = 'processing', locked_until = $2, updated_at = $1
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE (status = 'pending' AND next_attempt_at <= $1)
				OR (status = 'processing' AND locked_until <= $1)
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns,
		now, now.Add(lockFor), batchLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("claim queue entries: %w", err)
	}
	entries, err := collect(rows, scanQueueEntry)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].NextAttemptAt.Before(entries[j].NextAttemptAt) })
	return entries, nil
}

func (s *PostgresStore) UpdateQueueEntry(ctx context.Context, e domain.QueueEntry) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notification_queue
		SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5, locked_until = $6, updated_at = $7
		WHERE id = $1`,
		e.ID, string(e.Status), e.Attempts, e.NextAttemptAt, e.LastError, e.LockedUntil, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrQueueEntryNotFound, e.ID)
	}
	return nil
}

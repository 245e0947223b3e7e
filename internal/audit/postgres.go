package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wardwatch/wardwatch/pkg/pg"
)

// PostgresStorage persists events in the audit_events table.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage wraps db.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const insertEvent = `INSERT INTO audit_events
	(id, action, actor_id, hospital_id, resource, resource_id, result, error, metadata, prev_hash, hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const eventColumns = `id, action, actor_id, hospital_id, resource, resource_id, result, error, metadata, prev_hash, hash, created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, e Event) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(e.Metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	_, err := db.ExecContext(ctx, insertEvent,
		e.ID, e.Action, e.ActorID, e.HospitalID, e.Resource, e.ResourceID,
		string(e.Result), e.Error, meta, e.PrevHash, e.Hash, e.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	return insert(ctx, s.db, event)
}

// StoreBatch inserts every event in one transaction.
func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	return pg.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for _, e := range events {
			if err := insert(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func where(c Criteria) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if c.ActorID != "" {
		add("actor_id = $%d", c.ActorID)
	}
	if c.HospitalID != "" {
		add("hospital_id = $%d", c.HospitalID)
	}
	if c.Resource != "" {
		add("resource = $%d", c.Resource)
	}
	if c.ResourceID != "" {
		add("resource_id = $%d", c.ResourceID)
	}
	if c.Result != "" {
		add("result = $%d", string(c.Result))
	}
	if !c.StartTime.IsZero() {
		add("created_at >= $%d", c.StartTime)
	}
	if !c.EndTime.IsZero() {
		add("created_at < $%d", c.EndTime)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *PostgresStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	clause, args := where(criteria)
	query := `SELECT ` + eventColumns + ` FROM audit_events` + clause + ` ORDER BY seq`
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			result string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorID, &e.HospitalID, &e.Resource, &e.ResourceID,
			&result, &e.Error, &meta, &e.PrevHash, &e.Hash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Result = Result(result)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	clause, args := where(criteria)
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+clause, args...).Scan(&n); err != nil {
		return 0, errors.Join(ErrStorageNotAvailable, err)
	}
	return n, nil
}

func (s *PostgresStorage) LastHash(ctx context.Context) (string, error) {
	var h string
	err := s.db.QueryRowContext(ctx, `SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`).Scan(&h)
	if pg.IsNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Join(ErrStorageNotAvailable, err)
	}
	return h, nil
}

package audit

import (
	"context"
	"log/slog"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

// MultiStorage writes to a primary storage and mirrors every stored event
// to secondaries. Only primary failures are returned; queries go to the
// primary.
type MultiStorage struct {
	primary     Storage
	secondaries []Storage
	log         *slog.Logger
}

// NewMultiStorage panics on a nil primary.
func NewMultiStorage(log *slog.Logger, primary Storage, secondaries ...Storage) *MultiStorage {
	if primary == nil {
		panic("audit: primary storage cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &MultiStorage{primary: primary, secondaries: secondaries, log: log}
}

func (m *MultiStorage) Store(ctx context.Context, event Event) error {
	if err := m.primary.Store(ctx, event); err != nil {
		return err
	}
	for _, s := range m.secondaries {
		if err := s.Store(ctx, event); err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "audit mirror write failed",
				logger.Component("audit"),
				slog.String("event_id", event.ID),
				slog.String("action", event.Action),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (m *MultiStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	return m.primary.Query(ctx, criteria)
}

func (m *MultiStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	return NewReader(m.primary, nil).Count(ctx, criteria)
}

func (m *MultiStorage) LastHash(ctx context.Context) (string, error) {
	if lh, ok := m.primary.(lastHasher); ok {
		return lh.LastHash(ctx)
	}
	return "", nil
}

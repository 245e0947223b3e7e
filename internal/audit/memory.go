package audit

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage keeps events in insertion order.
type MemoryStorage struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.Metadata = maps.Clone(event.Metadata)
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStorage) StoreBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		_ = s.Store(ctx, e)
	}
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, criteria Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	skipped := 0
	for _, e := range s.events {
		if !criteria.matches(e) {
			continue
		}
		if skipped < criteria.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStorage) Count(ctx context.Context, criteria Criteria) (int64, error) {
	criteria.Limit, criteria.Offset = 0, 0
	events, _ := s.Query(ctx, criteria)
	return int64(len(events)), nil
}

func (s *MemoryStorage) LastHash(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return "", nil
	}
	return s.events[len(s.events)-1].Hash, nil
}

// Events returns a copy of every stored event.
func (s *MemoryStorage) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/wardwatch/wardwatch/internal/domain"
)

// MemoryStore keeps everything in process memory. Transactions hold the
// write lock for their whole duration and stage writes until fn succeeds.
type MemoryStore struct {
	mu          sync.RWMutex
	alerts      map[string]domain.Alert
	records     []domain.EscalationRecord
	users       map[string]domain.User
	preferences map[string]domain.Preferences
	logs        []domain.DeliveryLog
	queue       map[string]domain.QueueEntry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:      make(map[string]domain.Alert),
		users:       make(map[string]domain.User),
		preferences: make(map[string]domain.Preferences),
		queue:       make(map[string]domain.QueueEntry),
	}
}

func (s *MemoryStore) CreateAlert(_ context.Context, alert domain.Alert) error {
	if alert.ID == "" {
		return ErrNilAlertID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; ok {
		return ErrDuplicateID
	}
	s.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id string) (domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return domain.Alert{}, fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	return cloneAlert(a), nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, f AlertFilter) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Alert
	for _, a := range s.alerts {
		if f.HospitalID != "" && a.HospitalID != f.HospitalID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitSlice(out, f.Limit), nil
}

func (s *MemoryStore) GetAlertsDueForEscalation(_ context.Context, now time.Time, maxTier, limit int) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Alert
	for _, a := range s.alerts {
		if a.DueForEscalation(now, maxTier) {
			out = append(out, cloneAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextEscalationAt.Before(*out[j].NextEscalationAt) })
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) ListEscalationRecords(_ context.Context, alertID string) ([]domain.EscalationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EscalationRecord
	for _, r := range s.records {
		if r.AlertID == alertID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpsertUser(_ context.Context, u domain.User) error {
	if u.ID == "" {
		return ErrNilUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.PushTokens = slices.Clone(u.PushTokens)
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	u.PushTokens = slices.Clone(u.PushTokens)
	return u, nil
}

func (s *MemoryStore) GetUsersByRole(_ context.Context, q RecipientQuery) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersByRole(q), nil
}

func (s *MemoryStore) usersByRole(q RecipientQuery) []domain.User {
	var out []domain.User
	for _, u := range s.users {
		if u.HospitalID != q.HospitalID || !slices.Contains(q.Roles, u.Role) {
			continue
		}
		if q.OnDutyOnly && !u.OnDuty {
			continue
		}
		u.PushTokens = slices.Clone(u.PushTokens)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) GetUserPreferences(_ context.Context, userID string) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.preferences[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) SetUserPreferences(_ context.Context, userID string, prefs domain.Preferences) error {
	if userID == "" {
		return ErrNilUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[userID] = prefs
	return nil
}

func (s *MemoryStore) InsertDeliveryLogs(_ context.Context, logs ...domain.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logs...)
	return nil
}

func (s *MemoryStore) ListDeliveryLogs(_ context.Context, f DeliveryLogFilter) ([]domain.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DeliveryLog
	for _, l := range s.logs {
		switch {
		case f.AlertID != "" && l.AlertID != f.AlertID,
			f.UserID != "" && l.UserID != f.UserID,
			f.NotificationID != "" && l.NotificationID != f.NotificationID,
			f.Status != "" && l.Status != f.Status:
			continue
		}
		out = append(out, l)
	}
	return limitSlice(out, f.Limit), nil
}

func (s *MemoryStore) MarkDeliveryLogsDelivered(_ context.Context, notificationIDs []string, messageID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i, l := range s.logs {
		if l.Status == domain.DeliveryBatched && slices.Contains(notificationIDs, l.NotificationID) {
			s.logs[i].Status = domain.DeliveryDelivered
			s.logs[i].MessageID = messageID
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SettlePendingDeliveryLogs(_ context.Context, notificationID string, status domain.DeliveryStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i, l := range s.logs {
		if l.Status == domain.DeliveryPending && l.NotificationID == notificationID {
			s.logs[i].Status = status
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) EnqueueNotification(_ context.Context, entry domain.QueueEntry) error {
	if entry.ID == "" {
		return ErrQueueEntryID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[entry.ID]; ok {
		return ErrDuplicateID
	}
	s.queue[entry.ID] = entry
	return nil
}

func (s *MemoryStore) GetQueueEntry(_ context.Context, id string) (domain.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.queue[id]
	if !ok {
		return domain.QueueEntry{}, fmt.Errorf("%w: %s", domain.ErrQueueEntryNotFound, id)
	}
	return e, nil
}

func (s *MemoryStore) ClaimDueQueueEntries(_ context.Context, now time.Time, lockFor time.Duration, limit int) ([]domain.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.QueueEntry
	for _, e := range s.queue {
		if e.Claimable(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	due = limitSlice(due, limit)

	lockedUntil := now.Add(lockFor)
	for i := range due {
		due[i].Status = domain.QueueProcessing
		due[i].LockedUntil = &lockedUntil
		due[i].UpdatedAt = now
		s.queue[due[i].ID] = due[i]
	}
	return due, nil
}

func (s *MemoryStore) UpdateQueueEntry(_ context.Context, entry domain.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[entry.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrQueueEntryNotFound, entry.ID)
	}
	s.queue[entry.ID] = entry
	return nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s, alerts: make(map[string]domain.Alert)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, a := range tx.alerts {
		s.alerts[id] = a
	}
	s.records = append(s.records, tx.records...)
	s.logs = append(s.logs, tx.logs...)
	return nil
}

// memoryTx runs with MemoryStore.mu held.
type memoryTx struct {
	s       *MemoryStore
	alerts  map[string]domain.Alert
	records []domain.EscalationRecord
	logs    []domain.DeliveryLog
}

func (tx *memoryTx) alert(id string) (domain.Alert, bool) {
	if a, ok := tx.alerts[id]; ok {
		return a, true
	}
	a, ok := tx.s.alerts[id]
	return a, ok
}

func (tx *memoryTx) UpdateAlertTierConditional(_ context.Context, alertID string, fromTier int, upd domain.EscalationUpdate) (bool, error) {
	a, ok := tx.alert(alertID)
	if !ok || a.Status != domain.AlertActive || a.EscalationLevel != fromTier {
		return false, nil
	}
	a.EscalationLevel = upd.Level
	a.NextEscalationAt = cloneTime(upd.NextEscalationAt)
	a.UpdatedAt = upd.UpdatedAt
	tx.alerts[alertID] = a
	return true, nil
}

func (tx *memoryTx) UpdateAlertStatusConditional(_ context.Context, alertID string, from, to domain.AlertStatus, actor string, at time.Time) (bool, error) {
	a, ok := tx.alert(alertID)
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	a.NextEscalationAt = nil
	a.UpdatedAt = at
	switch to {
	case domain.AlertAcknowledged:
		a.AcknowledgedBy = actor
		a.AcknowledgedAt = &at
	case domain.AlertResolved:
		a.ResolvedBy = actor
		a.ResolvedAt = &at
	}
	tx.alerts[alertID] = a
	return true, nil
}

func (tx *memoryTx) InsertEscalationRecord(_ context.Context, rec domain.EscalationRecord) error {
	tx.records = append(tx.records, rec)
	return nil
}

func (tx *memoryTx) GetUsersByRole(_ context.Context, q RecipientQuery) ([]domain.User, error) {
	return tx.s.usersByRole(q), nil
}

func (tx *memoryTx) InsertDeliveryLogs(_ context.Context, logs ...domain.DeliveryLog) error {
	tx.logs = append(tx.logs, logs...)
	return nil
}

func cloneAlert(a domain.Alert) domain.Alert {
	a.NextEscalationAt = cloneTime(a.NextEscalationAt)
	a.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	a.ResolvedAt = cloneTime(a.ResolvedAt)
	return a
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func limitSlice[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

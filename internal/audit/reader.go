package audit

import "context"

// Reader queries stored events.
type Reader struct {
	storage Storage
	hasher  Hasher
}

// NewReader creates a new audit reader. hasher must match the one the
// events were written with; nil means the default unkeyed hasher.
func NewReader(storage Storage, hasher Hasher) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	if hasher == nil {
		hasher, _ = NewBlake2bHasher(nil)
	}
	return &Reader{storage: storage, hasher: hasher}
}

// Find retrieves audit events based on the criteria
func (r *Reader) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	return r.storage.Query(ctx, criteria)
}

// Count uses the storage's own count when it has one and otherwise loads
// the matching events.
func (r *Reader) Count(ctx context.Context, criteria Criteria) (int64, error) {
	if counter, ok := r.storage.(StorageCounter); ok {
		return counter.Count(ctx, criteria)
	}

	events, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

// Verify loads events in a time window and checks their chain. Filtering by
// anything other than time makes gaps look like tampering, so only the
// window and paging fields of criteria are used.
func (r *Reader) Verify(ctx context.Context, criteria Criteria) error {
	events, err := r.storage.Query(ctx, Criteria{
		StartTime: criteria.StartTime,
		EndTime:   criteria.EndTime,
		Limit:     criteria.Limit,
		Offset:    criteria.Offset,
	})
	if err != nil {
		return err
	}
	return Verify(r.hasher, events)
}

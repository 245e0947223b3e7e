package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor extracts string values from context.
// It returns (value, found) where found indicates if extraction succeeded.
type contextExtractor func(context.Context) (string, bool)

// lastHasher is implemented by storages that can report the newest hash so
// a restarted process continues the existing chain.
type lastHasher interface {
	LastHash(ctx context.Context) (string, error)
}

// Logger writes sealed audit events.
type Logger struct {
	storage             Storage
	chain               *chain
	filter              *MetadataFilter
	now                 func() time.Time
	actorIDExtractor    contextExtractor
	hospitalIDExtractor contextExtractor
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	h, _ := NewBlake2bHasher(nil)
	l := &Logger{
		storage: storage,
		chain:   &chain{hasher: h},
		filter:  NewMetadataFilter(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Hasher returns the hasher events are sealed with.
func (l *Logger) Hasher() Hasher {
	return l.chain.hasher
}

// Resume links the next event to the newest stored one, when the storage
// can tell which one that is.
func (l *Logger) Resume(ctx context.Context) error {
	lh, ok := l.storage.(lastHasher)
	if !ok {
		return nil
	}
	h, err := lh.LastHash(ctx)
	if err != nil {
		return err
	}
	l.chain.resume(h)
	return nil
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultSuccess)
	for _, opt := range opts {
		opt(&event)
	}
	return l.store(ctx, event)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := l.newEvent(ctx, action, ResultError)
	if err != nil {
		event.Error = err.Error()
	}
	for _, opt := range opts {
		opt(&event)
	}
	return l.store(ctx, event)
}

func (l *Logger) newEvent(ctx context.Context, action string, result Result) Event {
	event := Event{
		ID:     uuid.NewString(),
		Action: action,
		Result: result,
		// Postgres keeps microseconds; hashing must survive the round trip.
		CreatedAt: l.now().UTC().Truncate(time.Microsecond),
	}

	if l.actorIDExtractor != nil {
		if id, ok := l.actorIDExtractor(ctx); ok {
			event.ActorID = id
		}
	}
	if l.hospitalIDExtractor != nil {
		if id, ok := l.hospitalIDExtractor(ctx); ok {
			event.HospitalID = id
		}
	}

	return event
}

func (l *Logger) store(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	if l.filter != nil {
		event.Metadata = l.filter.Filter(event.Metadata)
	}

	commit := l.chain.seal(&event)
	err := l.storage.Store(ctx, event)
	commit(err)
	return err
}

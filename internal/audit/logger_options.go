package audit

import "time"

// Option configures Logger behavior during initialization
type Option func(*Logger)

// WithHasher replaces the default unkeyed BLAKE2b hasher.
func WithHasher(h Hasher) Option {
	return func(l *Logger) {
		if h != nil {
			l.chain.hasher = h
		}
	}
}

// WithMetadataFilter replaces the default filter. Nil disables filtering.
func WithMetadataFilter(f *MetadataFilter) Option {
	return func(l *Logger) {
		l.filter = f
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// Context extractors populate events from the request context. An explicit
// WithActor or WithHospital event option wins over the extracted value.

func WithActorIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.actorIDExtractor = fn
	}
}

func WithHospitalIDExtractor(fn contextExtractor) Option {
	return func(l *Logger) {
		l.hospitalIDExtractor = fn
	}
}

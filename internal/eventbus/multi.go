package eventbus

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

type namedPublisher struct {
	name string
	pub  Publisher
}

// Multi publishes each event to every registered sink. A failing sink is
// logged and the remaining sinks still receive the event.
type Multi struct {
	sinks []namedPublisher
	log   *slog.Logger
}

// NewMulti creates an empty fan-out publisher.
func NewMulti(log *slog.Logger) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{log: log}
}

// Add registers a sink under name. Nil publishers are ignored.
func (m *Multi) Add(name string, p Publisher) *Multi {
	if p != nil {
		m.sinks = append(m.sinks, namedPublisher{name: name, pub: p})
	}
	return m
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Publish returns the joined errors of the sinks that failed.
func (m *Multi) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.pub.Publish(ctx, ev); err != nil {
			m.log.LogAttrs(ctx, slog.LevelWarn, "event sink publish failed",
				logger.Component(s.name),
				slog.String("event_type", string(ev.Type)),
				logger.HospitalID(ev.HospitalID),
				logger.AlertID(ev.AlertID),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the analytics stream.
type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`                  // Brokers; empty disables the stream.
	Topic        string        `env:"KAFKA_TOPIC" envDefault:"wardwatch.alert-events"` // Topic receiving every event.
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"50ms"`           // BatchTimeout caps producer batching latency.
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`            // WriteTimeout bounds each write.
}

// Enabled reports whether brokers are configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewKafkaWriter builds a writer that keys messages by alert so that every
// event of one alert lands on the same partition in order.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: KAFKA_BROKERS is required", ErrInvalidConfig)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: KAFKA_TOPIC is required", ErrInvalidConfig)
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, nil
}

// messageWriter is the part of kafka.Writer the bus uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBus writes every event to a single topic.
type KafkaBus struct {
	writer messageWriter
}

func NewKafkaBus(w messageWriter) *KafkaBus {
	return &KafkaBus{writer: w}
}

func (b *KafkaBus) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	value, err := encode(ev)
	if err != nil {
		return err
	}

	key := ev.AlertID
	if key == "" {
		key = ev.HospitalID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
			{Key: "hospital-id", Value: []byte(ev.HospitalID)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

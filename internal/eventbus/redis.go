package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/wardwatch/wardwatch/pkg/logger"
)

const defaultRedisPrefix = "wardwatch:events:"

// RedisBus publishes events on one Redis channel per hospital.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// RedisOption configures a RedisBus.
type RedisOption func(*RedisBus)

// WithRedisPrefix sets the channel name prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(b *RedisBus) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(b *RedisBus) {
		if l != nil {
			b.log = l
		}
	}
}

// NewRedisBus creates a bus over client.
func NewRedisBus(client redis.UniversalClient, opts ...RedisOption) *RedisBus {
	b := &RedisBus{
		client: client,
		prefix: defaultRedisPrefix,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Channel returns the Redis channel carrying events for hospitalID.
func (b *RedisBus) Channel(hospitalID string) string {
	return b.prefix + hospitalID
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.Channel(ev.HospitalID), payload).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Subscribe listens to hospitalID's channel, or to every hospital when
// hospitalID is empty. Events that do not fit the buffer are dropped. The
// subscription ends when ctx is cancelled or the returned value is closed.
func (b *RedisBus) Subscribe(ctx context.Context, hospitalID string, bufferSize int) (*Subscription, error) {
	var ps *redis.PubSub
	if hospitalID == "" {
		ps = b.client.PSubscribe(ctx, b.prefix+"*")
	} else {
		ps = b.client.Subscribe(ctx, b.Channel(hospitalID))
	}

	// Wait for the confirmation so no event published after Subscribe
	// returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Join(ErrPublishFailed, err)
	}

	sub := newSubscription(hospitalID, max(bufferSize, 1))
	msgs := ps.Channel()

	go func() {
		defer func() {
			_ = ps.Close()
			_ = sub.Close()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, err := decode([]byte(msg.Payload))
				if err != nil {
					b.log.WarnContext(ctx, "dropping undecodable event",
						logger.HospitalID(strings.TrimPrefix(msg.Channel, b.prefix)),
						logger.Error(err))
					continue
				}
				sub.send(ev)
			}
		}
	}()

	return sub, nil
}

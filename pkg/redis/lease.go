package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single-holder lock stored under one key with a TTL.
type Lease struct {
	client redis.UniversalClient
	key    string
}

// NewLease returns a lease bound to key.
func NewLease(client redis.UniversalClient, key string) *Lease {
	return &Lease{client: client, key: key}
}

// Acquire tries to take the lease for ttl. ok is false when another holder
// owns it. The returned release func is a no-op when ok is false.
func (l *Lease) Acquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return noopRelease, false, errors.Join(ErrLeaseFailed, err)
	}
	if !ok {
		return noopRelease, false, nil
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return errors.Join(ErrLeaseFailed, err)
		}
		return nil
	}, true, nil
}

func noopRelease(context.Context) error { return nil }

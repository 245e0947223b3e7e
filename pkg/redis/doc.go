// Package redis connects to Redis through github.com/redis/go-redis/v9 and
// provides a small distributed lease used to keep periodic jobs from running on
// more than one replica at a time.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	lease := redis.NewLease(client, "wardwatch:escalation:tick")
//	release, ok, err := lease.Acquire(ctx, 50*time.Second)
//	if err != nil || !ok {
//	    return err
//	}
//	defer release(ctx)
package redis

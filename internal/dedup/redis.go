package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oversite/domainwatch/internal/logging"
)

// Redis suppresses duplicate alerts across restarts and across multiple
// monitor instances watching the same fleet.
type Redis struct {
	cli *redis.Client
	ttl time.Duration
	log *logging.Logger
}

func NewRedis(addr string, ttl time.Duration, log *logging.Logger) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})
	if err := cli.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Redis{cli: cli, ttl: ttl, log: log}, nil
}

// Ping exposes connectivity for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *Redis) Seen(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := r.cli.SetNX(ctx, "alert:"+key, 1, r.ttl).Result()
	if err != nil {
		// Err on the side of alerting rather than suppressing.
		r.log.Warnw("redis dedup unavailable", "err", err)
		return false
	}
	return !ok
}

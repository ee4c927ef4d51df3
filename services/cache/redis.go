package cachesvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/NaveenRoman/AI-TUTor/core"
)

const keyPrefix = "tutor:"

// NewClient connects to the configured redis server. It returns nil when redis is disabled.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Disabled {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        conf.Redis.Addr,
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultTickLockKey = "postflow:dispatch:tick"

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTickLock lets one process at a time run a dispatch tick.
type RedisTickLock struct {
	client *redis.Client
	key    string
}

func NewRedisTickLock(client *redis.Client, key string) *RedisTickLock {
	if key == "" {
		key = DefaultTickLockKey
	}
	return &RedisTickLock{client: client, key: key}
}

// Acquire takes the lock for at most ttl. The returned release only deletes
// the key while this holder still owns it.
func (l *RedisTickLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	if !acquired {
		return func() {}, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			slog.Warn("failed to release tick lock", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}

// NewRedisClient connects to a redis:// or rediss:// URI.
func NewRedisClient(ctx context.Context, uri string) (*redis.Client, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing redis uri: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

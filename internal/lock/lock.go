// Package lock provides a Redis-backed per-task lock so that two processes
// never step the same task at once.
//
// A lock is a key set with SET NX and a TTL, holding a random token. Release
// deletes the key only if it still holds the caller's token, so a lock that
// expired and was taken by another process is never released by mistake.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder keeps a task locked.
const DefaultTTL = 5 * time.Minute

// DefaultPrefix namespaces lock keys.
const DefaultPrefix = "tasksync:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements engine.TaskLocker on a Redis client.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker creates a locker using client. A non-positive ttl uses DefaultTTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: DefaultPrefix}
}

// Connect opens a client from a redis:// URL, falling back to a bare
// host:port address.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (l *RedisLocker) key(task string) string {
	return l.prefix + task
}

// TryLock takes the lock for task without waiting. It reports ok=false when
// another holder has it.
func (l *RedisLocker) TryLock(ctx context.Context, task string) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	key := l.key(task)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("unlock %s: %w", key, err)
		}
		return nil
	}
	return unlock, true, nil
}

// Holder returns the token currently holding task's lock, or "" if free.
func (l *RedisLocker) Holder(ctx context.Context, task string) (string, error) {
	v, err := l.client.Get(ctx, l.key(task)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lock holder %s: %w", task, err)
	}
	return v, nil
}

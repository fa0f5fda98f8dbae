package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Veraticus/spice-insights/internal/common"
	"github.com/Veraticus/spice-insights/internal/service"
)

const defaultPrefix = "spice:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Redis is a Locker shared by every process using the same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing client. An empty prefix uses "spice:lock:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to connect to redis: %w", common.ErrTransport, err)
	}
	return client, nil
}

// TryLock sets the key with NX and a TTL.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (service.Unlocker, error) {
	token := uuid.NewString()
	fullKey := r.prefix + key

	ok, err := r.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire lock: %w", common.ErrTransport, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrJobInProgress, key)
	}
	return &redisUnlocker{client: r.client, key: fullKey, token: token}, nil
}

type redisUnlocker struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (u *redisUnlocker) Unlock(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, u.client, []string{u.key}, u.token).Int64()
	if err != nil {
		return fmt.Errorf("%w: failed to release lock: %w", common.ErrTransport, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

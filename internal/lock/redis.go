package lock

import (
	"context"
	"fmt"
	"time"

	"clinic/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript удаляет ключ, только если значение совпадает с токеном владельца.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance Redis lock: SET NX PX with a random owner token.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*domain.Lease, bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &domain.Lease{Key: key, Owner: owner, AcquiredAt: time.Now(), TTL: ttl}, true, nil
}

func (l *RedisLocker) Release(ctx context.Context, lease *domain.Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lease.Key, err)
	}
	return nil
}

func (l *RedisLocker) Health(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lubeqc/internal/kv/domain"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) domain.Store {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return "", false, err
	}
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string) error {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, s.prefix+key).Err()
}

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockTimeout = errors.New("lock_timeout")

// RedisLocker is a SET NX lock with token-checked release.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		prefix: prefix + "lock:",
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Acquire spins until the lock is taken, the ttl elapses or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, error) {
	key, err := domain.NormalizeKey(key)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}

package redis

import (
	"context"
	"errors"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLocked is returned by Acquire when another holder owns the key.
var ErrLocked = errors.New("lock already held")

var releaseScript = redisv8.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = redisv8.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a single-holder lease on a key. It expires on its own after the ttl
// given to Acquire so a crashed holder cannot wedge the key.
type Lock struct {
	client *redisv8.Client
	key    string
	token  string
}

func (s *Service) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{client: s.client, key: key, token: token}, nil
}

// Key returns the locked key.
func (l *Lock) Key() string { return l.key }

// Token identifies this holder; it is needed to release the lock from
// another process.
func (l *Lock) Token() string { return l.token }

// Release deletes the key if it is still held by this lock.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Extend resets the lock's ttl if it is still held by this lock, and returns
// ErrLocked when it expired or passed to another holder.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLocked
	}
	return nil
}

// Resume rebuilds a lock handed over from another process.
func (s *Service) Resume(key, token string) *Lock {
	return &Lock{client: s.client, key: key, token: token}
}

package scrape

import (
	"context"
	"errors"
	"time"

	"profilescraper/internal/core/model"
	rds "profilescraper/internal/platform/redis"
)

// Lease is a held per-profile reservation.
type Lease interface {
	Token() string
	// Extend resets the lease ttl, failing with model.ErrConflict when the
	// lease was lost.
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Locker enforces at most one in-flight job per profile.
type Locker interface {
	Acquire(ctx context.Context, profile string, ttl time.Duration) (Lease, error)
	// Resume rebuilds a lease handed to a background task.
	Resume(profile, token string) Lease
}

type RedisLocker struct {
	redis *rds.Service
}

func NewRedisLocker(redis *rds.Service) *RedisLocker {
	return &RedisLocker{redis: redis}
}

func lockKey(profile string) string { return "lock:scrape:" + profile }

func (l *RedisLocker) Acquire(ctx context.Context, profile string, ttl time.Duration) (Lease, error) {
	lock, err := l.redis.Acquire(ctx, lockKey(profile), ttl)
	if errors.Is(err, rds.ErrLocked) {
		return nil, model.NewError(model.ErrConflict, profile, nil)
	}
	if err != nil {
		return nil, model.NewError(model.ErrStorage, "locking "+profile, err)
	}
	return redisLease{lock}, nil
}

func (l *RedisLocker) Resume(profile, token string) Lease {
	return redisLease{l.redis.Resume(lockKey(profile), token)}
}

type redisLease struct {
	*rds.Lock
}

func (l redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	err := l.Lock.Extend(ctx, ttl)
	if errors.Is(err, rds.ErrLocked) {
		return model.NewError(model.ErrConflict, "lease on "+l.Key()+" was lost", nil)
	}
	if err != nil {
		return model.NewError(model.ErrStorage, "extending "+l.Key(), err)
	}
	return nil
}

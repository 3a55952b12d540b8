package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv8 "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"profilescraper/internal/platform/redis"
)

func newService(t *testing.T) (*redis.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc := redis.NewFromClient(redisv8.NewClient(&redisv8.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestCache(t *testing.T) {
	t.Parallel()
	svc, mr := newService(t)
	ctx := context.Background()

	type doc struct {
		Name string `json:"name"`
	}
	var got doc
	require.ErrorIs(t, svc.CacheGet(ctx, "k", &got), redis.ErrMiss)

	require.NoError(t, svc.CacheSet(ctx, "k", doc{Name: "alice"}, time.Minute))
	require.NoError(t, svc.CacheGet(ctx, "k", &got))
	require.Equal(t, "alice", got.Name)
	require.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, svc.CacheSet(ctx, "forever", doc{}, 0))
	require.Zero(t, mr.TTL("forever"))
}

func TestLock(t *testing.T) {
	t.Parallel()
	svc, mr := newService(t)
	ctx := context.Background()

	first, err := svc.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)

	_, err = svc.Acquire(ctx, "lock:a", time.Minute)
	require.ErrorIs(t, err, redis.ErrLocked)

	// a stale holder must not release someone else's lock
	stale := svc.Resume("lock:a", "not-the-token")
	require.NoError(t, stale.Release(ctx))
	require.True(t, mr.Exists("lock:a"))

	require.NoError(t, svc.Resume(first.Key(), first.Token()).Release(ctx))
	require.False(t, mr.Exists("lock:a"))

	second, err := svc.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.Acquire(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLockExtend(t *testing.T) {
	t.Parallel()
	svc, mr := newService(t)
	ctx := context.Background()

	l, err := svc.Acquire(ctx, "lock:b", time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.Resume(l.Key(), l.Token()).Extend(ctx, 10*time.Minute))
	require.Equal(t, 10*time.Minute, mr.TTL("lock:b"))

	require.ErrorIs(t, svc.Resume("lock:b", "not-the-token").Extend(ctx, time.Hour), redis.ErrLocked)
	require.Equal(t, 10*time.Minute, mr.TTL("lock:b"))

	mr.FastForward(11 * time.Minute)
	require.ErrorIs(t, l.Extend(ctx, time.Minute), redis.ErrLocked)
	require.False(t, mr.Exists("lock:b"))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	svc, mr := newService(t)
	require.NoError(t, svc.HealthCheck(context.Background()))
	mr.SetError("LOADING")
	require.Error(t, svc.HealthCheck(context.Background()))
}

func TestAsynqRedisOpt(t *testing.T) {
	t.Parallel()
	svc, mr := newService(t)
	require.Equal(t, mr.Addr(), svc.AsynqRedisOpt().Addr)
}

package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"profilescraper/internal/core/model"
	"profilescraper/internal/poller"
)

type fakeSleep struct {
	calls []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.calls = append(f.calls, d)
	return ctx.Err()
}

func policy(s *fakeSleep) poller.Policy[int] {
	p := poller.DefaultPolicy(func(n int) bool { return n > 0 })
	p.Sleep = s.sleep
	return p
}

func TestAwaitExhausted(t *testing.T) {
	t.Parallel()
	s := &fakeSleep{}
	fetches := 0
	_, err := poller.Await(context.Background(), policy(s), func(context.Context) (int, error) {
		fetches++
		return 0, model.NewError(model.ErrNoData, "none", nil)
	})
	require.ErrorIs(t, err, model.ErrExhausted)
	require.Equal(t, 12, fetches)
	require.Len(t, s.calls, 11)
	for _, d := range s.calls {
		require.Equal(t, 5*time.Second, d)
	}
}

func TestAwaitReturnsFirstFound(t *testing.T) {
	t.Parallel()
	s := &fakeSleep{}
	fetches := 0
	v, err := poller.Await(context.Background(), policy(s), func(context.Context) (int, error) {
		fetches++
		if fetches < 3 {
			return 0, nil
		}
		return fetches, nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, v)
	require.Equal(t, 3, fetches)
	require.Len(t, s.calls, 2)
}

func TestAwaitImmediate(t *testing.T) {
	t.Parallel()
	s := &fakeSleep{}
	v, err := poller.Await(context.Background(), policy(s), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Empty(t, s.calls)
}

func TestAwaitAbortsOnError(t *testing.T) {
	t.Parallel()
	s := &fakeSleep{}
	boom := errors.New("connection refused")
	fetches := 0
	_, err := poller.Await(context.Background(), policy(s), func(context.Context) (int, error) {
		fetches++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, model.ErrExhausted)
	require.Equal(t, 1, fetches)
}

func TestAwaitToleratesStorageErrors(t *testing.T) {
	t.Parallel()
	s := &fakeSleep{}
	fetches := 0
	v, err := poller.Await(context.Background(), policy(s), func(context.Context) (int, error) {
		fetches++
		if fetches < 3 {
			return 0, model.NewError(model.ErrStorage, "redis down", nil)
		}
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Len(t, s.calls, 2)

	fetches = 0
	_, err = poller.Await(context.Background(), policy(s), func(context.Context) (int, error) {
		fetches++
		return 0, model.NewError(model.ErrStorage, "redis down", nil)
	})
	require.ErrorIs(t, err, model.ErrExhausted)
	require.Equal(t, 12, fetches)
}

func TestAwaitCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeSleep{}
	fetches := 0
	_, err := poller.Await(ctx, policy(s), func(context.Context) (int, error) {
		fetches++
		cancel()
		return 0, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, fetches)
}

func TestSleep(t *testing.T) {
	t.Parallel()
	require.NoError(t, poller.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, poller.Sleep(ctx, time.Hour), context.Canceled)
}

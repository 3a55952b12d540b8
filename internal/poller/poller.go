// Package poller waits for the posts of a backgrounded scrape to show up.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profilescraper/internal/core/model"
)

const (
	DefaultMaxAttempts = 12
	DefaultInterval    = 5 * time.Second
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy bounds a poll: at most MaxAttempts fetches, Interval apart. Found
// decides whether a fetched value ends the poll.
type Policy[T any] struct {
	MaxAttempts int
	Interval    time.Duration
	Found       func(T) bool
	Sleep       SleepFunc
}

// DefaultPolicy polls 12 times, 5 seconds apart.
func DefaultPolicy[T any](found func(T) bool) Policy[T] {
	return Policy[T]{
		MaxAttempts: DefaultMaxAttempts,
		Interval:    DefaultInterval,
		Found:       found,
		Sleep:       Sleep,
	}
}

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Await calls fetch until Found accepts its result or the attempts run out.
// A fetch reporting ErrNoData or a transient ErrStorage counts as an empty
// attempt; any other error ends the poll. Running out of attempts returns ErrExhausted, which means
// nothing arrived yet rather than that the job failed.
func Await[T any](ctx context.Context, p Policy[T], fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	found := p.Found
	if found == nil {
		found = func(T) bool { return true }
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := fetch(ctx)
		switch {
		case err == nil && found(v):
			return v, nil
		case err != nil && !empty(err):
			return zero, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.Sleep(ctx, p.Interval); err != nil {
			return zero, err
		}
	}
	return zero, model.NewError(model.ErrExhausted,
		fmt.Sprintf("no data after %d attempts", p.MaxAttempts), nil)
}

func empty(err error) bool {
	return errors.Is(err, model.ErrNoData) || errors.Is(err, model.ErrStorage)
}

package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"profilescraper/internal/platform/tasks"
)

const TaskTypeScrape = "scrape:profile"

// TaskPayload carries a reserved profile to the background worker together
// with the lease token needed to release it.
type TaskPayload struct {
	Profile   string `json:"profile"`
	LockToken string `json:"lock_token"`
}

type AsynqDispatcher struct {
	client  *tasks.Client
	timeout time.Duration
}

// NewAsynqDispatcher enqueues scrape tasks whose handler context is bounded
// by timeout.
func NewAsynqDispatcher(client *tasks.Client, timeout time.Duration) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, timeout: timeout}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, p TaskPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = d.client.Enqueue(ctx, asynq.NewTask(TaskTypeScrape, b), tasks.DefaultQueue, d.timeout)
	return err
}

// HandleTask runs a queued scrape and stores its posts. Failures are final:
// the task is never retried.
func (s *Service) HandleTask(ctx context.Context, task *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decoding scrape payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := ValidateProfile(p.Profile); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	// the lease may have lapsed while queued; another run could own the
	// profile by now
	lease := s.Locks.Resume(p.Profile, p.LockToken)
	if err := lease.Extend(ctx, s.leaseTTL()); err != nil {
		s.log.LogWarnf("dropping queued scrape of %s: %v", p.Profile, err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	defer s.release(ctx, lease)

	if _, err := s.execute(ctx, p.Profile, nil, true); err != nil {
		return fmt.Errorf("scraping %s: %w: %w", p.Profile, err, asynq.SkipRetry)
	}
	return nil
}

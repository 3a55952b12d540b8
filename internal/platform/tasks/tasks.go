package tasks

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"profilescraper/internal/platform/redis"
)

const DefaultQueue = "default"

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

// Enqueue submits task without retries; a failed scrape is reported, never
// silently re-run. timeout bounds the handler's context.
func (t *Client) Enqueue(ctx context.Context, task *asynq.Task, queue string, timeout time.Duration) (string, error) {
	info, err := t.c.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(0), asynq.Timeout(timeout))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (t *Client) Close() error { return t.c.Close() }
